package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/live"
)

type liveApi struct {
	svc     *live.Service
	classes *class.Service
}

func registerLiveAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := liveApi{svc: deps.LiveSvc, classes: deps.ClassSvc}

	lg := g.Group("/lives", authed...)
	lg.GET("", api.query)
	lg.POST("", api.schedule, adminMiddleware())
	lg.PUT("/:id", api.update, adminMiddleware())
	lg.DELETE("/:id", api.destroy, adminMiddleware())
}

// Handlers

func (api *liveApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter live.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []live.Session{})
	}
	if !usr.IsAdmin() {
		if filter.ClassID != "" {
			if err = checkClassMember(ctx, api.classes, usr, filter.ClassID); err != nil {
				return err
			}
		}
		if filter.ClassIDs, err = memberClassIDs(ctx, api.classes, usr); err != nil {
			return err
		}
	}

	sessions, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying live sessions")
	}
	if sessions == nil {
		sessions = []live.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *liveApi) schedule(ctx echo.Context) error {
	var data live.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	s, err := api.svc.Schedule(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "scheduling live session")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *liveApi) update(ctx echo.Context) error {
	var data live.UpdateSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	s, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating live session")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *liveApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting live session")
	}
	return ctx.NoContent(http.StatusNoContent)
}
