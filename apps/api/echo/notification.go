package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core/notification"
	"github.com/quransn/academy/core/user"
)

type notificationApi struct {
	svc *notification.Service
}

func registerNotificationAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := notificationApi{svc: deps.NotificationSvc}

	ng := g.Group("/notifications", authed...)
	ng.GET("", api.list)
	ng.GET("/unread-count", api.unreadCount)
	ng.POST("/read-all", api.markAllRead)
	ng.POST("/:id/read", api.markRead)
}

// recipients are the inboxes of usr: their own, plus the admin channel for admins.
func recipients(usr user.User) []string {
	if usr.IsAdmin() {
		return []string{usr.ID, notification.AdminChannel}
	}
	return []string{usr.ID}
}

// Handlers

func (api *notificationApi) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	notifs, err := api.svc.List(ctx.Request().Context(), recipients(usr)...)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.UnreadCount(ctx.Request().Context(), recipients(usr)...)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	notif, err := api.svc.MarkRead(ctx.Request().Context(), ctx.Param("id"), recipients(usr)...)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, notif)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.MarkAllRead(ctx.Request().Context(), recipients(usr)...)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}
