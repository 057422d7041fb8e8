package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/auth"
	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/content"
	"github.com/quransn/academy/core/enrollment"
	"github.com/quransn/academy/core/forum"
	"github.com/quransn/academy/core/library"
	"github.com/quransn/academy/core/live"
	"github.com/quransn/academy/core/notification"
	"github.com/quransn/academy/core/quiz"
	"github.com/quransn/academy/core/report"
	"github.com/quransn/academy/core/user"
	"github.com/quransn/academy/services/chat"
	"github.com/quransn/academy/services/prayer"
	"github.com/quransn/academy/services/quran"
	"github.com/quransn/academy/services/scheduler"
)

type (
	// PrayerTimes serves the daily prayer schedule.
	PrayerTimes interface {
		Timings(ctx context.Context, date time.Time) prayer.Schedule
	}

	QuranReader interface {
		Editions() []string
		Surah(ctx context.Context, number int, edition string) (quran.Surah, error)
	}

	// Assistant answers the chat messages of a user.
	Assistant interface {
		Reply(ctx context.Context, usr user.User, history []chat.Message, text string) (chat.Message, error)
	}

	// JobMonitor reports the background jobs.
	JobMonitor interface {
		Status(ctx context.Context) ([]scheduler.JobRun, error)
		RunNow(name string) (scheduler.JobRun, error)
	}

	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		AuthSvc         *auth.Service
		UserSvc         *user.Service
		ClassSvc        *class.Service
		EnrollmentSvc   *enrollment.Service
		ContentSvc      *content.Service
		QuizSvc         *quiz.Service
		LiveSvc         *live.Service
		NotificationSvc *notification.Service
		ForumSvc        *forum.Service
		LibrarySvc      *library.Service
		ReportSvc       *report.Service

		Prayer PrayerTimes
		Quran  QuranReader
		Chat   Assistant
		Jobs   JobMonitor // may be nil
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if conf.Content.MaxUploadBytes > 0 {
		s.app.Use(middleware.BodyLimit(bodyLimit(conf.Content.MaxUploadBytes)))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	authed := []echo.MiddlewareFunc{jwt, sessionMiddleware(s.deps.AuthSvc)}

	registerAuthAPI(v1, authed, s.deps)
	registerUserAPI(v1, authed, s.deps)
	registerClassAPI(v1, authed, s.deps)
	registerEnrollmentAPI(v1, authed, s.deps)
	registerContentAPI(v1, authed, s.deps)
	registerQuizAPI(v1, authed, s.deps)
	registerLiveAPI(v1, authed, s.deps)
	registerNotificationAPI(v1, authed, s.deps)
	registerForumAPI(v1, authed, s.deps)
	registerLibraryAPI(v1, authed, s.deps)
	registerReportAPI(v1, authed, s.deps)
	registerToolsAPI(v1, authed, s.deps)
}

// Start serves until Shutdown is called. Listener failures are sent on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// bodyLimit leaves room for the base64 encoding of an upload and the JSON around it.
func bodyLimit(maxUpload int64) string {
	return fmt.Sprintf("%dK", (maxUpload*4/3)/1024+64)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
