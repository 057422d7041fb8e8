// Package di builds the dependency graph of the API server.
package di

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"
	"github.com/pkg/errors"

	echoapi "github.com/quransn/academy/apps/api/echo"
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
	"github.com/quransn/academy/services/calendar"
	"github.com/quransn/academy/services/chat"
	emailsvc "github.com/quransn/academy/services/email"
	"github.com/quransn/academy/services/googleauth"
	logsvc "github.com/quransn/academy/services/logger"
	"github.com/quransn/academy/services/prayer"
	"github.com/quransn/academy/services/quran"
	"github.com/quransn/academy/services/scheduler"
	"github.com/quransn/academy/storage/database"
)

// Container holds every long-lived dependency of the API.
type Container struct {
	Conf    *core.Config
	Logger  core.Logger
	DB      core.DB
	MailSvc core.EmailService

	Validate   *validator.Validate
	Translator ut.Translator
	Dispatcher *notification.Dispatcher
	Scheduler  *scheduler.Scheduler

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

	Prayer *prayer.Client
	Quran  *quran.Client
	Chat   *chat.Client
}

// NewLogger returns a colourised console logger in debug mode, a Rollbar logger otherwise.
func NewLogger(prefix string, conf *core.Config) core.Logger {
	if conf.Debug {
		return logsvc.NewConsoleLogger(os.Stdout, true)
	}
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(conf.RollbarToken != "")
	return logger
}

func newVerifier(conf *core.Config) auth.IDTokenVerifier {
	if conf.GoogleClientID == "" {
		return nil
	}
	return googleauth.NewVerifier(conf.GoogleClientID)
}

func newMeetingProvider(conf *core.Config) live.MeetingProvider {
	if !calendar.Configured(conf) {
		return nil
	}
	return calendar.NewService(conf)
}

// New opens the storage engine and builds every service on top of it.
// The caller owns c.DB and must close it.
func New(conf *core.Config) (*Container, error) {
	c := &Container{Conf: conf, Logger: NewLogger("API : ", conf)}

	db, err := database.Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("opening %s storage", conf.Storage.Engine))
	}
	c.DB = db

	c.MailSvc = emailsvc.NewService(conf, c.Logger)
	c.Validate, c.Translator = core.NewValidator()
	user.InitValidators(c.Validate, c.Translator)
	c.Dispatcher = notification.NewDispatcher(db, c.MailSvc, c.Logger, conf)

	c.UserSvc = user.NewService(db, c.Validate, c.Dispatcher, c.MailSvc, conf)
	c.AuthSvc = auth.NewService(db, c.UserSvc, newVerifier(conf), c.Dispatcher, c.Validate, conf)
	c.ClassSvc = class.NewService(db, c.Validate)
	c.EnrollmentSvc = enrollment.NewService(db, c.Dispatcher, conf)
	c.ContentSvc = content.NewService(db, c.Validate, c.Dispatcher, conf)
	c.QuizSvc = quiz.NewService(db, c.Validate, c.Dispatcher, conf)
	c.LiveSvc = live.NewService(db, c.Validate, c.Dispatcher, newMeetingProvider(conf), c.Logger, conf)
	c.NotificationSvc = notification.NewService(db)
	c.ForumSvc = forum.NewService(db, c.Validate, conf)
	c.LibrarySvc = library.NewService(db, c.Validate)
	c.ReportSvc = report.NewService(db)

	c.Prayer = prayer.NewClient(conf, c.Logger)
	c.Quran = quran.NewClient(conf, c.Logger)
	c.Chat = chat.NewClient(conf, c.Logger)

	if conf.Jobs.Enabled {
		if c.Scheduler, err = c.newScheduler(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Container) newScheduler() (*scheduler.Scheduler, error) {
	jobs := c.Conf.Jobs
	sendReminders := func(ctx context.Context) (int, error) {
		return c.LiveSvc.SendReminders(ctx, jobs.ReminderWindow)
	}

	s := scheduler.New(c.DB, c.Logger)
	for _, job := range []scheduler.Job{
		{Name: "outbox", Spec: jobs.OutboxFlush, Run: c.Dispatcher.Flush},
		{Name: "pending-enrollments", Spec: jobs.PendingEnrollments, Run: c.EnrollmentSvc.NotifyPending},
		{Name: "live-reminders", Spec: jobs.LiveReminders, Run: sendReminders},
		{Name: "subscription-expiry", Spec: jobs.SubscriptionExpiry, Run: c.UserSvc.ExpireSubscriptions},
		{Name: "session-cleanup", Spec: jobs.SessionCleanup, Run: c.AuthSvc.PurgeExpired},
	} {
		if err := s.Add(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ServerDeps returns the dependencies of the echo server.
func (c *Container) ServerDeps() echoapi.ServerDeps {
	deps := echoapi.ServerDeps{
		Conf:       c.Conf,
		Logger:     c.Logger,
		Validate:   c.Validate,
		Translator: c.Translator,

		AuthSvc:         c.AuthSvc,
		UserSvc:         c.UserSvc,
		ClassSvc:        c.ClassSvc,
		EnrollmentSvc:   c.EnrollmentSvc,
		ContentSvc:      c.ContentSvc,
		QuizSvc:         c.QuizSvc,
		LiveSvc:         c.LiveSvc,
		NotificationSvc: c.NotificationSvc,
		ForumSvc:        c.ForumSvc,
		LibrarySvc:      c.LibrarySvc,
		ReportSvc:       c.ReportSvc,

		Prayer: c.Prayer,
		Quran:  c.Quran,
		Chat:   c.Chat,
	}
	// a nil *Scheduler must stay an untyped nil interface
	if c.Scheduler != nil {
		deps.Jobs = c.Scheduler
	}
	return deps
}

// Seed creates the default admin on first start, then the library resources and the forum welcome post.
func Seed(ctx context.Context, db core.DB, users *user.Service, logger core.Logger) error {
	admin, created, err := users.EnsureAdmin(ctx)
	if err != nil {
		return errors.Wrap(err, "ensuring admin")
	}
	if created {
		logger.Warn(fmt.Sprintf("default admin %s created, change its password", admin.Email))
	}

	return db.Update(ctx, func(tx core.DBTx) error {
		n, err := library.Seed(tx)
		if err != nil {
			return errors.Wrap(err, "seeding library")
		}
		if n > 0 {
			logger.Info(fmt.Sprintf("library seeded with %d resources", n))
		}
		if _, err = forum.Seed(tx, admin); err != nil {
			return errors.Wrap(err, "seeding forum")
		}
		return nil
	})
}
