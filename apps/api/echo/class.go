package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/content"
	"github.com/quransn/academy/core/user"
)

type classApi struct {
	svc      *class.Service
	contents *content.Service
}

func registerClassAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := classApi{svc: deps.ClassSvc, contents: deps.ContentSvc}

	cg := g.Group("/classes", authed...)
	cg.GET("", api.query)
	cg.POST("", api.create, adminMiddleware())

	dg := cg.Group("/:id", ctxClassMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.GET("/progress", api.progress, studentMiddleware())
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
}

type (
	ClassQuery struct {
		class.QueryFilter
		Mine bool `query:"mine"`
	}

	ProgressResponse struct {
		ClassID  string `json:"class_id"`
		Progress int    `json:"progress"` // percent of the class contents viewed
	}
)

// memberClassIDs returns the classes a student belongs to. Admins see every class: the result is nil.
func memberClassIDs(ctx echo.Context, svc *class.Service, usr user.User) ([]string, error) {
	if usr.IsAdmin() {
		return nil, nil
	}
	classes, err := svc.Query(ctx.Request().Context(), class.QueryFilter{StudentID: usr.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying student classes")
	}
	ids := make([]string, 0, len(classes))
	for _, cls := range classes {
		ids = append(ids, cls.ID)
	}
	return ids, nil
}

// checkClassMember refuses students who are not on the roster of the class `classID`.
func checkClassMember(ctx echo.Context, svc *class.Service, usr user.User, classID string) error {
	if usr.IsAdmin() {
		return nil
	}
	cls, err := svc.GetByID(ctx.Request().Context(), classID)
	if err != nil {
		return errors.Wrap(err, "finding class by ID")
	}
	if !cls.HasStudent(usr.ID) {
		return errHttpForbidden
	}
	return nil
}

// Handlers

func (api *classApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var q ClassQuery
	if err = ctx.Bind(&q); err != nil {
		return ctx.JSON(http.StatusOK, []class.Class{})
	}
	filter := q.QueryFilter
	if !usr.IsAdmin() {
		filter.VisibleTo = usr.Gender
		if q.Mine {
			filter.StudentID = usr.ID
		}
	}

	classes, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) create(ctx echo.Context) error {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	cls, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctx.Get("object"))
}

func (api *classApi) update(ctx echo.Context) error {
	cls := ctx.Get("object").(class.Class)
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	cls, err := api.svc.Update(ctx.Request().Context(), cls.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) destroy(ctx echo.Context) error {
	cls := ctx.Get("object").(class.Class)
	if err := api.svc.Delete(ctx.Request().Context(), cls.ID); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) progress(ctx echo.Context) error {
	cls := ctx.Get("object").(class.Class)
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !cls.HasStudent(usr.ID) {
		return errHttpForbidden
	}
	pct, err := api.contents.ClassProgress(ctx.Request().Context(), usr.ID, cls.ID)
	if err != nil {
		return errors.Wrap(err, "computing class progress")
	}
	return ctx.JSON(http.StatusOK, ProgressResponse{ClassID: cls.ID, Progress: pct})
}

// ctxClassMiddleware sets the class addressed by `:id` as the context "object".
// Students do not see the classes closed to their gender, unless they are on the roster.
func ctxClassMiddleware(svc *class.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			cls, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding class by ID")
			}
			if !usr.IsAdmin() && !cls.VisibleTo(usr.Gender) && !cls.HasStudent(usr.ID) {
				return errHttpNotFound
			}
			ctx.Set("object", cls)
			return next(ctx)
		}
	}
}
