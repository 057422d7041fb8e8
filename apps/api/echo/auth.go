package echoapi

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/auth"
	"github.com/quransn/academy/core/user"
)

const (
	contextTokenKey   = "userToken"
	contextUserKey    = "user"
	contextSessionKey = "session"
)

// Claims represents the authorization claims transmitted via a JWT.
// Id is the session id and Subject the user id.
type Claims struct {
	jwt.StandardClaims
	Role user.Role `json:"role,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func newSessionClaims(conf *core.Config, sess auth.Session) *Claims {
	expiresAt := sess.ExpiresAt
	if delta := conf.Server.JWTExpirationDelta; delta > 0 && sess.CreatedAt.Add(delta).Before(expiresAt) {
		expiresAt = sess.CreatedAt.Add(delta)
	}
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sess.ID,
			Issuer:    conf.AppName,
			Subject:   sess.UserID,
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  sess.CreatedAt.Unix(),
		},
		Role: sess.Role,
	}
}

// GenerateToken generates a signed JWT token string for the session.
func GenerateToken(conf *core.Config, sess auth.Session) (string, error) {
	jwtConf := newJWTConfig(conf)
	token := jwt.NewWithClaims(jwt.GetSigningMethod(jwtConf.SigningMethod), newSessionClaims(conf, sess))

	ss, err := token.SignedString(jwtConf.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// sessionMiddleware loads the session named by the token: tokens of closed or expired sessions are refused.
func sessionMiddleware(svc *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			sess, usr, err := svc.Authenticate(ctx.Request().Context(), claims.Id)
			if err != nil {
				return errors.Wrap(err, "authenticating session")
			}
			ctx.Set(contextSessionKey, sess)
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

func getContextSession(ctx echo.Context) (auth.Session, error) {
	if sess, ok := ctx.Get(contextSessionKey).(auth.Session); ok {
		return sess, nil
	}
	return auth.Session{}, errUnauthorized
}
