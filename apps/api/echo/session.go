package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/auth"
	"github.com/quransn/academy/core/user"
)

type sessionApi struct {
	conf     *core.Config
	auth     *auth.Service
	users    *user.Service
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := sessionApi{
		conf:     deps.Conf,
		auth:     deps.AuthSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/login` & `/password-reset`
	sg.POST("/register", api.register)
	sg.POST("/login", api.login)
	sg.POST("/google", api.loginWithGoogle)
	sg.POST("/password-reset", api.resetPassword)
	sg.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := sg.Group("", authed...)
	ag.GET("/me", api.me)
	ag.POST("/logout", api.logout)
}

type (
	LoginResponse struct {
		Token     string    `json:"token"`
		ExpiresAt int64     `json:"expires_at"`
		User      user.User `json:"user"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email)
	return validate.Struct(pr)
}

func (api *sessionApi) loginResponse(ctx echo.Context, sess auth.Session, usr user.User) error {
	token, err := GenerateToken(api.conf, sess)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: sess.ExpiresAt.Unix(), User: usr})
}

func (api *sessionApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	usr, err := api.users.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *sessionApi) login(ctx echo.Context) error {
	var data auth.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	sess, usr, err := api.auth.Login(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	return api.loginResponse(ctx, sess, usr)
}

func (api *sessionApi) loginWithGoogle(ctx echo.Context) error {
	var data auth.GoogleCredentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GoogleCredentials")
	}
	sess, usr, err := api.auth.LoginWithGoogle(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "logging in with google")
	}
	return api.loginResponse(ctx, sess, usr)
}

func (api *sessionApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.users.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || core.IsNotFound(err)) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *sessionApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := api.users.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *sessionApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *sessionApi) logout(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	if err = api.auth.Logout(ctx.Request().Context(), sess.ID); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return ctx.NoContent(http.StatusNoContent)
}
