package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/auth"
	"github.com/quransn/academy/services/quran"
	testutil "github.com/quransn/academy/tests"
)

func Test_appHTTPErrorHandler(t *testing.T) {
	env := testutil.NewEnv(t)

	type NewThing struct {
		Name string `json:"name" validate:"required"`
	}
	vErr := env.Validate.Struct(NewThing{})

	tests := []struct {
		name         string
		err          error
		wantCode     int
		wantBody     string
		wantShutdown bool
	}{
		{"http error", echo.NewHTTPError(http.StatusTeapot, "tea"), http.StatusTeapot, `{"error":"tea"}`, false},
		{"missing jwt", middleware.ErrJWTMissing, http.StatusUnauthorized, `{"error":"missing or malformed jwt"}`, false},
		{"wrapped forbidden", errors.Wrap(errHttpForbidden, "checking role"), http.StatusForbidden, `{"error":"permission denied"}`, false},
		{"validator", vErr, http.StatusBadRequest, `{"name":"name is a required field"}`, false},
		{
			"field errors",
			core.NewValidationError(errors.New("bad date"), core.FieldError{Field: "date", Error: "bad date"}),
			http.StatusBadRequest, `{"date":"bad date"}`, false,
		},
		{"validation", core.NewValidationError(errors.New("nope")), http.StatusBadRequest, `{"error":"nope"}`, false},
		{"not found", errors.Wrap(core.NewNotFoundError("class not found"), "finding"), http.StatusNotFound, `{"error":"class not found"}`, false},
		{"permission", core.NewPermissionError("admins only"), http.StatusForbidden, `{"error":"admins only"}`, false},
		{"conflict", core.NewConflictError("already decided"), http.StatusConflict, `{"error":"already decided"}`, false},
		{"session expired", errors.Wrap(auth.ErrSessionExpired, "authenticating"), http.StatusUnauthorized, "", false},
		{"quota", core.ErrQuotaExceeded, http.StatusInsufficientStorage, "", false},
		{"quran api down", errors.Wrap(quran.ErrUnavailable, "reading surah"), http.StatusServiceUnavailable, "", false},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, `{"error":"Internal Server Error"}`, false},
		{"shutdown", core.NewShutdownError("disk is gone"), http.StatusInternalServerError, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var shutdown bool
			handler := newAppHTTPErrorHandler(env.Logger, env.Translator, func() { shutdown = true })

			e := echo.New()
			rec := httptest.NewRecorder()
			ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			handler(tt.err, ctx)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
			assert.Equal(t, tt.wantShutdown, shutdown)
		})
	}
}

func Test_bodyLimit(t *testing.T) {
	assert.Equal(t, "6890K", bodyLimit(5*1024*1024))
	assert.Equal(t, "64K", bodyLimit(0))
}
