package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core/report"
)

type reportApi struct {
	svc *report.Service
}

func registerReportAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := reportApi{svc: deps.ReportSvc}

	ag := g.Group("", authed...)
	ag.GET("/stats", api.stats, adminMiddleware())
	ag.GET("/search", api.search)
}

// Handlers

func (api *reportApi) stats(ctx echo.Context) error {
	st, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *reportApi) search(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	results, err := api.svc.Search(ctx.Request().Context(), ctx.QueryParam("q"), usr)
	if err != nil {
		return errors.Wrap(err, "searching")
	}
	if results == nil {
		results = []report.SearchResult{}
	}
	return ctx.JSON(http.StatusOK, results)
}
