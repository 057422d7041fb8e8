package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/notification"
	"github.com/quransn/academy/core/user"
	emailsvc "github.com/quransn/academy/services/email"
	logsvc "github.com/quransn/academy/services/logger"
	inmemdb "github.com/quransn/academy/storage/database/inmem"
)

// Env bundles the dependencies shared by service tests.
type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Mail       *emailsvc.ConsoleServiceMock
	Logger     core.Logger
	Dispatcher *notification.Dispatcher
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	conf := core.NewTestConfig()
	db := OpenDB(t)
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	logger := logsvc.NewDiscardLogger()
	return &Env{
		Conf:       conf,
		DB:         db,
		Validate:   validate,
		Translator: translator,
		Mail:       mailSvc,
		Logger:     logger,
		Dispatcher: notification.NewDispatcher(db, mailSvc, logger, conf),
	}
}

// OpenDB returns an empty in-memory database closed at the end of the test.
func OpenDB(t *testing.T) *inmemdb.DB {
	t.Helper()
	db := inmemdb.NewDB(0)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// FreezeTime makes core.NowFunc return now until the end of the test.
func FreezeTime(t *testing.T, now time.Time) {
	t.Helper()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })
}

type UserOption func(*user.User)

func WithXP(xp int) UserOption {
	return func(u *user.User) {
		u.XP = xp
		u.Level = user.LevelForXP(xp)
	}
}

func WithPlan(plan user.Plan, expiry time.Time) UserOption {
	return func(u *user.User) {
		u.SubscriptionPlan = plan
		u.SubscriptionExpiry = &expiry
	}
}

func WithRole(role user.Role) UserOption {
	return func(u *user.User) { u.Role = role }
}

func WithGender(gender user.Gender) UserOption {
	return func(u *user.User) { u.Gender = gender }
}

// CreateUser stores a student named `firstName` (email `<firstName>@test.sn` unless given).
func CreateUser(t *testing.T, db core.DB, firstName, pwd string, opts ...UserOption) user.User {
	t.Helper()
	now := core.NowFunc()
	usr := user.User{
		ID:               core.NewID(),
		FirstName:        firstName,
		LastName:         "Test",
		Email:            firstName + "@test.sn",
		Role:             user.RoleStudent,
		Gender:           user.GenderMale,
		Level:            1,
		Badges:           []user.Badge{},
		SubscriptionPlan: user.PlanFree,
		JoinedAt:         now,
		UpdatedAt:        now,
	}
	usr.ReferralCode = strings.ToUpper(usr.ID[len(usr.ID)-8:])
	for _, opt := range opts {
		opt(&usr)
	}
	if pwd != "" {
		require.NoError(t, usr.SetPassword(pwd))
	}
	err := db.Update(context.Background(), func(tx core.DBTx) error {
		return user.Put(tx, usr)
	})
	require.NoError(t, err, "createUser()")
	return usr
}

// Notifications lists the notifications of recipient, newest first.
func Notifications(t *testing.T, db core.DB, recipient string) []notification.Notification {
	t.Helper()
	notifs, err := notification.NewService(db).List(context.Background(), recipient)
	require.NoError(t, err)
	return notifs
}

// CountNotifications counts the notifications of recipient with the given title.
func CountNotifications(t *testing.T, db core.DB, recipient, title string) int {
	t.Helper()
	var n int
	for _, notif := range Notifications(t, db, recipient) {
		if notif.Title == title {
			n++
		}
	}
	return n
}
