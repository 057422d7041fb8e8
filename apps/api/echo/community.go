package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core/forum"
	"github.com/quransn/academy/core/library"
)

type communityApi struct {
	forum   *forum.Service
	library *library.Service
}

func registerForumAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := communityApi{forum: deps.ForumSvc}

	fg := g.Group("/forum", authed...)
	fg.GET("", api.listPosts)
	fg.POST("", api.createPost)
	fg.GET("/:id", api.retrievePost)
	fg.DELETE("/:id", api.destroyPost, adminMiddleware())
	fg.POST("/:id/replies", api.reply)
	fg.POST("/:id/like", api.like)
}

func registerLibraryAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := communityApi{library: deps.LibrarySvc}

	rg := g.Group("/resources", authed...)
	rg.GET("", api.listResources)
	rg.POST("", api.createResource, adminMiddleware())
	rg.DELETE("/:id", api.destroyResource, adminMiddleware())
}

// Forum handlers

func (api *communityApi) listPosts(ctx echo.Context) error {
	var filter forum.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []forum.Post{})
	}
	posts, err := api.forum.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing forum posts")
	}
	if posts == nil {
		posts = []forum.Post{}
	}
	return ctx.JSON(http.StatusOK, posts)
}

func (api *communityApi) createPost(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data forum.NewPost
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPost")
	}
	post, err := api.forum.Create(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating forum post")
	}
	return ctx.JSON(http.StatusCreated, post)
}

func (api *communityApi) retrievePost(ctx echo.Context) error {
	post, err := api.forum.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding forum post by ID")
	}
	return ctx.JSON(http.StatusOK, post)
}

func (api *communityApi) destroyPost(ctx echo.Context) error {
	if err := api.forum.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting forum post")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *communityApi) reply(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data forum.NewReply
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReply")
	}
	rep, err := api.forum.Reply(ctx.Request().Context(), ctx.Param("id"), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "replying to forum post")
	}
	return ctx.JSON(http.StatusCreated, rep)
}

func (api *communityApi) like(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	post, err := api.forum.Like(ctx.Request().Context(), ctx.Param("id"), usr.ID)
	if err != nil {
		return errors.Wrap(err, "liking forum post")
	}
	return ctx.JSON(http.StatusOK, post)
}

// Library handlers

func (api *communityApi) listResources(ctx echo.Context) error {
	category := library.Category(ctx.QueryParam("category"))
	resources, err := api.library.List(ctx.Request().Context(), category)
	if err != nil {
		return errors.Wrap(err, "listing resources")
	}
	if resources == nil {
		resources = []library.Resource{}
	}
	return ctx.JSON(http.StatusOK, resources)
}

func (api *communityApi) createResource(ctx echo.Context) error {
	var data library.NewResource
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResource")
	}
	res, err := api.library.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating resource")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *communityApi) destroyResource(ctx echo.Context) error {
	if err := api.library.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	return ctx.NoContent(http.StatusNoContent)
}
