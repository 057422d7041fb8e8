package enrollment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/enrollment"
	"github.com/quransn/academy/core/notification"
	"github.com/quransn/academy/core/user"
	testutil "github.com/quransn/academy/tests"
)

type fixture struct {
	env     *testutil.Env
	svc     *enrollment.Service
	classes *class.Service
}

func newFixture(t *testing.T, capacity bool) fixture {
	env := testutil.NewEnv(t)
	env.Conf.EnforceClassCapacity = capacity
	return fixture{
		env:     env,
		svc:     enrollment.NewService(env.DB, env.Dispatcher, env.Conf),
		classes: class.NewService(env.DB, env.Validate),
	}
}

func (f fixture) createClass(t *testing.T, name, level string, gender user.Gender, capacity int) class.Class {
	cls, err := f.classes.Create(context.Background(), class.NewClass{Name: name, Level: level, Gender: gender, Capacity: capacity})
	require.NoError(t, err)
	return cls
}

func (f fixture) roster(t *testing.T, classID string) []string {
	cls, err := f.classes.GetByID(context.Background(), classID)
	require.NoError(t, err)
	return cls.StudentIDs
}

func TestService_Request(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	beginners := f.createClass(t, "Débutants", user.LevelTitles[1], user.GenderMixed, 0)
	advanced := f.createClass(t, "Avancés", user.LevelTitles[5], user.GenderMixed, 0)
	women := f.createClass(t, "Soeurs", user.LevelTitles[0], user.GenderFemale, 0)

	moussa := testutil.CreateUser(t, f.env.DB, "moussa", "")
	admin := testutil.CreateUser(t, f.env.DB, "admin", "", testutil.WithRole(user.RoleAdmin))
	premium := testutil.CreateUser(t, f.env.DB, "awa", "",
		testutil.WithGender(user.GenderFemale), testutil.WithPlan(user.PlanPremiumMonthly, core.NowFunc().AddDate(0, 1, 0)))

	enr, created, err := f.svc.Request(ctx, moussa.ID, beginners.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, enrollment.StatusPending, enr.Status)
	assert.Equal(t, "moussa Test", enr.UserName)
	assert.Equal(t, "Débutants", enr.ClassName)
	assert.Equal(t, 1, testutil.CountNotifications(t, f.env.DB, notification.AdminChannel, "New enrollment request"))

	t.Run("duplicate returns the existing request", func(t *testing.T) {
		again, created, err := f.svc.Request(ctx, moussa.ID, beginners.ID)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, enr.ID, again.ID)
		assert.Equal(t, 1, testutil.CountNotifications(t, f.env.DB, notification.AdminChannel, "New enrollment request"))
	})

	tests := []struct {
		name    string
		userID  string
		classID string
		wantErr error
	}{
		{"premium required", moussa.ID, advanced.ID, enrollment.ErrPremiumRequired},
		{"gender restricted", moussa.ID, women.ID, enrollment.ErrGenderRestricted},
		{"admins do not enroll", admin.ID, beginners.ID, enrollment.ErrNotStudent},
		{"unknown class", moussa.ID, "nope", class.ErrNotFound},
		{"unknown user", "nope", beginners.ID, user.ErrNotFound},
		{"premium student", premium.ID, advanced.ID, nil},
		{"gender match", premium.ID, women.ID, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.Request(ctx, tt.userID, tt.classID)
			assert.Equal(t, tt.wantErr, err)
		})
	}

	pending, err := f.svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, pending)
}

func TestService_Approve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	cls := f.createClass(t, "Hifz", user.LevelTitles[0], user.GenderMixed, 0)
	student := testutil.CreateUser(t, f.env.DB, "fatou", "")

	enr, _, err := f.svc.Request(ctx, student.ID, cls.ID)
	require.NoError(t, err)

	got, err := f.svc.Approve(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusApproved, got.Status)
	require.NotNil(t, got.DecidedAt)
	assert.Equal(t, []string{student.ID}, f.roster(t, cls.ID))
	assert.Len(t, testutil.Notifications(t, f.env.DB, student.ID), 1)
	require.Len(t, f.env.Mail.Sent(), 1)
	assert.Equal(t, student.Email, f.env.Mail.Sent()[0].To[0].Address)

	t.Run("idempotent", func(t *testing.T) {
		again, err := f.svc.Approve(ctx, enr.ID)
		require.NoError(t, err)
		assert.Equal(t, enrollment.StatusApproved, again.Status)
		assert.Equal(t, []string{student.ID}, f.roster(t, cls.ID))
		assert.Len(t, testutil.Notifications(t, f.env.DB, student.ID), 1)
		assert.Len(t, f.env.Mail.Sent(), 1)
	})

	t.Run("no reversal", func(t *testing.T) {
		_, err := f.svc.Reject(ctx, enr.ID)
		assert.Equal(t, enrollment.ErrInvalidTransition, err)
		assert.Equal(t, []string{student.ID}, f.roster(t, cls.ID))
	})

	t.Run("student already in the roster", func(t *testing.T) {
		other := f.createClass(t, "Tajwid", user.LevelTitles[0], user.GenderMixed, 0)
		err := f.env.DB.Update(ctx, func(tx core.DBTx) error {
			c, err := class.Get(tx, other.ID)
			if err != nil {
				return err
			}
			c.StudentIDs = append(c.StudentIDs, student.ID)
			return class.Save(tx, c)
		})
		require.NoError(t, err)

		enr, _, err := f.svc.Request(ctx, student.ID, other.ID)
		require.NoError(t, err)
		_, err = f.svc.Approve(ctx, enr.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{student.ID}, f.roster(t, other.ID))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := f.svc.Approve(ctx, "nope")
		assert.Equal(t, enrollment.ErrNotFound, err)
	})
}

func TestService_Reject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	cls := f.createClass(t, "Hifz", user.LevelTitles[0], user.GenderMixed, 0)
	student := testutil.CreateUser(t, f.env.DB, "fatou", "")

	enr, _, err := f.svc.Request(ctx, student.ID, cls.ID)
	require.NoError(t, err)

	got, err := f.svc.Reject(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusRejected, got.Status)
	assert.Empty(t, f.roster(t, cls.ID))
	assert.Equal(t, 1, testutil.CountNotifications(t, f.env.DB, student.ID, "Enrollment rejected"))
	assert.Empty(t, f.env.Mail.Sent())

	_, err = f.svc.Reject(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CountNotifications(t, f.env.DB, student.ID, "Enrollment rejected"))

	_, err = f.svc.Approve(ctx, enr.ID)
	assert.Equal(t, enrollment.ErrInvalidTransition, err)
	assert.Empty(t, f.roster(t, cls.ID))

	// a rejected student cannot file a new request for the same class
	again, created, err := f.svc.Request(ctx, student.ID, cls.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, enrollment.StatusRejected, again.Status)
}

func TestService_Capacity(t *testing.T) {
	ctx := context.Background()

	for _, enforce := range []bool{false, true} {
		f := newFixture(t, enforce)
		cls := f.createClass(t, "Petit groupe", user.LevelTitles[0], user.GenderMixed, 1)
		first := testutil.CreateUser(t, f.env.DB, "first", "")
		second := testutil.CreateUser(t, f.env.DB, "second", "")

		e1, _, err := f.svc.Request(ctx, first.ID, cls.ID)
		require.NoError(t, err)
		e2, _, err := f.svc.Request(ctx, second.ID, cls.ID)
		require.NoError(t, err)

		_, err = f.svc.Approve(ctx, e1.ID)
		require.NoError(t, err)
		_, err = f.svc.Approve(ctx, e2.ID)
		if !enforce {
			require.NoError(t, err)
			assert.Len(t, f.roster(t, cls.ID), 2)
			continue
		}
		assert.Equal(t, enrollment.ErrClassFull, err)
		assert.Len(t, f.roster(t, cls.ID), 1)
		got, err := f.svc.GetByID(ctx, e2.ID)
		require.NoError(t, err)
		assert.Equal(t, enrollment.StatusPending, got.Status, "the failed approval is rolled back")
	}
}

func TestService_NotifyPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	cls := f.createClass(t, "Hifz", user.LevelTitles[0], user.GenderMixed, 0)
	a := testutil.CreateUser(t, f.env.DB, "a", "")
	b := testutil.CreateUser(t, f.env.DB, "b", "")

	summaries := func() int {
		return testutil.CountNotifications(t, f.env.DB, notification.AdminChannel, "Pending enrollments")
	}

	n, err := f.svc.NotifyPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, summaries())

	ea, _, err := f.svc.Request(ctx, a.ID, cls.ID)
	require.NoError(t, err)
	n, err = f.svc.NotifyPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, summaries())

	// unchanged count: no new summary
	_, err = f.svc.NotifyPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summaries())

	_, err = f.svc.Approve(ctx, ea.ID)
	require.NoError(t, err)
	_, err = f.svc.NotifyPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summaries())

	_, _, err = f.svc.Request(ctx, b.ID, cls.ID)
	require.NoError(t, err)
	_, err = f.svc.NotifyPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summaries())
}
