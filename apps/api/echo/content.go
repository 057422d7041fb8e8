package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/content"
)

type contentApi struct {
	svc     *content.Service
	classes *class.Service
}

func registerContentAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := contentApi{svc: deps.ContentSvc, classes: deps.ClassSvc}

	cg := g.Group("/contents", authed...)
	cg.GET("", api.query)
	cg.POST("", api.upload, adminMiddleware())
	cg.GET("/viewed", api.viewed, studentMiddleware())

	dg := cg.Group("/:id", ctxContentMiddleware(api.svc, api.classes))
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.POST("/comments", api.comment)
	dg.POST("/view", api.markViewed, studentMiddleware())
}

type ViewResponse struct {
	ContentID string `json:"content_id"`
	FirstView bool   `json:"first_view"`
}

// Handlers

func (api *contentApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter content.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []content.Content{})
	}
	if filter.ClassID != "" {
		if err = checkClassMember(ctx, api.classes, usr, filter.ClassID); err != nil {
			return err
		}
	}
	classIDs, err := memberClassIDs(ctx, api.classes, usr)
	if err != nil {
		return err
	}

	contents, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying contents")
	}
	visible := make([]content.Content, 0, len(contents))
	for _, c := range contents {
		if classIDs == nil || containsString(classIDs, c.ClassID) {
			visible = append(visible, c)
		}
	}
	return ctx.JSON(http.StatusOK, visible)
}

func (api *contentApi) upload(ctx echo.Context) error {
	var data content.NewContent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContent")
	}
	c, err := api.svc.Upload(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "uploading content")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *contentApi) viewed(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ids, err := api.svc.ViewedContentIDs(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing viewed contents")
	}
	if ids == nil {
		ids = []string{}
	}
	return ctx.JSON(http.StatusOK, ids)
}

func (api *contentApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctx.Get("object"))
}

func (api *contentApi) destroy(ctx echo.Context) error {
	c := ctx.Get("object").(content.Content)
	if err := api.svc.Delete(ctx.Request().Context(), c.ID); err != nil {
		return errors.Wrap(err, "deleting content")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentApi) comment(ctx echo.Context) error {
	c := ctx.Get("object").(content.Content)
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data content.NewComment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}

	cmt, err := api.svc.AddComment(ctx.Request().Context(), c.ID, usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding comment")
	}
	return ctx.JSON(http.StatusCreated, cmt)
}

func (api *contentApi) markViewed(ctx echo.Context) error {
	c := ctx.Get("object").(content.Content)
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	first, err := api.svc.MarkViewed(ctx.Request().Context(), usr.ID, c.ID)
	if err != nil {
		return errors.Wrap(err, "marking content viewed")
	}
	return ctx.JSON(http.StatusOK, ViewResponse{ContentID: c.ID, FirstView: first})
}

// ctxContentMiddleware sets the content addressed by `:id` as the context "object".
// Students only reach the contents of their classes.
func ctxContentMiddleware(svc *content.Service, classes *class.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			c, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding content by ID")
			}
			if err = checkClassMember(ctx, classes, usr, c.ClassID); err != nil {
				return err
			}
			ctx.Set("object", c)
			return next(ctx)
		}
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
