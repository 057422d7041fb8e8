package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core/enrollment"
)

type enrollmentApi struct {
	svc *enrollment.Service
}

func registerEnrollmentAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := enrollmentApi{svc: deps.EnrollmentSvc}

	eg := g.Group("/enrollments", authed...)
	eg.GET("", api.query)
	eg.POST("", api.request, studentMiddleware())
	eg.GET("/pending-count", api.pendingCount, adminMiddleware())
	eg.POST("/:id/approve", api.approve, adminMiddleware())
	eg.POST("/:id/reject", api.reject, adminMiddleware())
}

type EnrollmentRequest struct {
	ClassID string `json:"class_id"`
}

// Handlers

func (api *enrollmentApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter enrollment.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []enrollment.Enrollment{})
	}
	if !usr.IsAdmin() {
		filter.UserID = usr.ID
	}

	enrs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrs == nil {
		enrs = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *enrollmentApi) request(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data EnrollmentRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollmentRequest")
	}

	enr, created, err := api.svc.Request(ctx.Request().Context(), usr.ID, data.ClassID)
	if err != nil {
		return errors.Wrap(err, "requesting enrollment")
	}
	if created {
		return ctx.JSON(http.StatusCreated, enr)
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) pendingCount(ctx echo.Context) error {
	n, err := api.svc.PendingCount(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "counting pending enrollments")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *enrollmentApi) approve(ctx echo.Context) error {
	enr, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) reject(ctx echo.Context) error {
	enr, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "rejecting enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}
