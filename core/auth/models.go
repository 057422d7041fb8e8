package auth

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/user"
)

const Collection = "sessions"

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// Session is an authenticated login. It references the user and never copies its secrets.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      user.Role `json:"role"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Credentials are submitted on the login form of a portal.
type Credentials struct {
	Email    string    `json:"email" validate:"required"`
	Password string    `json:"password" validate:"required"`
	Portal   user.Role `json:"portal" validate:"required,oneof=ADMIN STUDENT"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Email = core.CleanString(c.Email)
	return validate.Struct(c)
}

type GoogleCredentials struct {
	IDToken string    `json:"id_token" validate:"required"`
	Portal  user.Role `json:"portal" validate:"omitempty,oneof=ADMIN STUDENT"`
}

func (c *GoogleCredentials) Validate(validate *validator.Validate) error {
	if c.Portal == "" {
		c.Portal = user.RoleStudent
	}
	return validate.Struct(c)
}
