package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/user"
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

type userApi struct {
	svc *user.Service
}

func registerUserAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{svc: deps.UserSvc}

	g.GET("/gamification", api.gamification)

	ag := g.Group("", authed...)
	ag.GET("/leaderboard", api.leaderboard)

	ug := ag.Group("/users")
	ug.GET("", api.query, adminMiddleware())

	// detail endpoints
	dg := ug.Group("/:id", ctxUserOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.PUT("/subscription", api.upgradeSubscription)
	dg.POST("/xp", api.addXP, adminMiddleware())
}

type (
	GamificationResponse struct {
		Badges      []user.Badge    `json:"badges"`
		LevelTitles []string        `json:"level_titles"`
		XPPerLevel  int             `json:"xp_per_level"`
		Plans       []user.PlanInfo `json:"plans"`
	}

	XPRequest struct {
		Delta int `json:"delta"`
	}

	SubscriptionRequest struct {
		Plan user.Plan `json:"plan"`
	}
)

// Handlers

func (api *userApi) gamification(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, GamificationResponse{
		Badges:      user.Badges,
		LevelTitles: user.LevelTitles,
		XPPerLevel:  user.XPPerLevel,
		Plans:       user.Plans,
	})
}

func (api *userApi) leaderboard(ctx echo.Context) error {
	entries, err := api.svc.Leaderboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "ranking students")
	}
	if entries == nil {
		entries = []user.LeaderboardEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	usr, err := api.svc.Update(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) upgradeSubscription(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data SubscriptionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubscriptionRequest")
	}

	usr, err := api.svc.UpgradeSubscription(ctx.Request().Context(), usr.ID, data.Plan)
	if err != nil {
		return errors.Wrap(err, "upgrading subscription")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) addXP(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data XPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to XPRequest")
	}

	usr, err := api.svc.AddXP(ctx.Request().Context(), usr.ID, data.Delta)
	if err != nil {
		return errors.Wrap(err, "adding xp")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// ctxUserOrAdminMiddleware sets the user addressed by `:id` as the context "object".
// Students only reach their own account.
func ctxUserOrAdminMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			id := ctx.Param("id")
			if id == "me" {
				id = ctxUsr.ID
			}
			if id == ctxUsr.ID || ctxUsr.IsAdmin() {
				if usr, err := svc.GetByID(ctx.Request().Context(), id); err == nil {
					ctx.Set("object", usr)
					return next(ctx)
				} else if !core.IsNotFound(err) {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}
