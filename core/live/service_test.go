package live_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/live"
	"github.com/quransn/academy/core/user"
	testutil "github.com/quransn/academy/tests"
)

type meetingsMock struct {
	link  string
	err   error
	block bool
	calls []live.Meeting
}

func (m *meetingsMock) CreateMeeting(ctx context.Context, mt live.Meeting) (string, error) {
	m.calls = append(m.calls, mt)
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.link, m.err
}

type fixture struct {
	env     *testutil.Env
	cls     class.Class
	student user.User
}

func newFixture(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	env.Conf.Calendar.Timeout = 20 * time.Millisecond
	student := testutil.CreateUser(t, env.DB, "mariama", "")
	cls, err := class.NewService(env.DB, env.Validate).Create(context.Background(),
		class.NewClass{Name: "Tajwid avancé", Level: user.LevelTitles[2], Gender: user.GenderMixed})
	require.NoError(t, err)
	err = env.DB.Update(context.Background(), func(tx core.DBTx) error {
		cls.StudentIDs = []string{student.ID}
		return class.Save(tx, cls)
	})
	require.NoError(t, err)
	return fixture{env: env, cls: cls, student: student}
}

func (f fixture) service(meetings live.MeetingProvider) *live.Service {
	return live.NewService(f.env.DB, f.env.Validate, f.env.Dispatcher, meetings, f.env.Logger, f.env.Conf)
}

func TestService_Schedule(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 9, 6, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		meetings  *meetingsMock
		ns        live.NewSession
		wantLink  string
		wantCalls int
	}{
		{"generated meet link", &meetingsMock{link: "https://meet.google.com/abc-defg-hij"},
			live.NewSession{Title: "Sourate Yasin"}, "https://meet.google.com/abc-defg-hij", 1},
		{"manual link kept", &meetingsMock{link: "https://meet.google.com/abc-defg-hij"},
			live.NewSession{Title: "Sourate Yasin", MeetingLink: "https://meet.google.com/xyz"}, "https://meet.google.com/xyz", 0},
		{"provider failure", &meetingsMock{err: errors.New("401")},
			live.NewSession{Title: "Sourate Yasin"}, live.FallbackMeetingLink, 1},
		{"provider timeout", &meetingsMock{block: true},
			live.NewSession{Title: "Sourate Yasin"}, live.FallbackMeetingLink, 1},
		{"zoom without link", &meetingsMock{link: "https://meet.google.com/abc"},
			live.NewSession{Title: "Sourate Yasin", Platform: live.PlatformZoom}, live.FallbackMeetingLink, 0},
		{"zoom with link", &meetingsMock{},
			live.NewSession{Title: "Sourate Yasin", Platform: live.PlatformZoom, MeetingLink: "https://zoom.us/j/1"}, "https://zoom.us/j/1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.ns.ClassID = f.cls.ID
			tt.ns.ScheduledAt = start
			s, err := f.service(tt.meetings).Schedule(ctx, tt.ns)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLink, s.MeetingLink)
			assert.Len(t, tt.meetings.calls, tt.wantCalls)
			assert.Equal(t, live.DefaultDurationMinutes, s.DurationMinutes)

			assert.Equal(t, 1, testutil.CountNotifications(t, f.env.DB, f.student.ID, "New live session"))
			sent := f.env.Mail.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, f.student.Email, sent[0].To[0].Address)
			assert.Equal(t, s.MeetingLink, sent[0].Link)
		})
	}

	t.Run("defaults", func(t *testing.T) {
		f := newFixture(t)
		now := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
		testutil.FreezeTime(t, now)
		s, err := f.service(nil).Schedule(ctx, live.NewSession{ClassID: f.cls.ID, Title: "Hadith du jour"})
		require.NoError(t, err)
		assert.Equal(t, live.PlatformMeet, s.Platform)
		assert.Equal(t, now, s.ScheduledAt)
		assert.Equal(t, live.FallbackMeetingLink, s.MeetingLink)
	})

	t.Run("invalid", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service(nil)
		for _, ns := range []live.NewSession{
			{ClassID: f.cls.ID},
			{ClassID: f.cls.ID, Title: "x", Platform: "Teams"},
			{ClassID: f.cls.ID, Title: "x", MeetingLink: "not a link"},
			{ClassID: f.cls.ID, Title: "x", DurationMinutes: -5},
		} {
			_, err := svc.Schedule(ctx, ns)
			assert.Error(t, err)
		}
		_, err := svc.Schedule(ctx, live.NewSession{ClassID: "nope", Title: "x"})
		assert.Equal(t, class.ErrNotFound, err)
	})
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(nil)
	now := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)

	schedule := func(title string, at time.Time) live.Session {
		s, err := svc.Schedule(ctx, live.NewSession{ClassID: f.cls.ID, Title: title, ScheduledAt: at, DurationMinutes: 60})
		require.NoError(t, err)
		return s
	}
	later := schedule("later", now.Add(48*time.Hour))
	past := schedule("past", now.Add(-3*time.Hour))
	ongoing := schedule("ongoing", now.Add(-30*time.Minute))

	all, err := svc.Query(ctx, live.QueryFilter{ClassID: f.cls.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{past.ID, ongoing.ID, later.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	upcoming, err := svc.Query(ctx, live.QueryFilter{Upcoming: true})
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, ongoing.ID, upcoming[0].ID)

	none, err := svc.Query(ctx, live.QueryFilter{ClassIDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	t.Run("update and delete", func(t *testing.T) {
		s, err := svc.Update(ctx, past.ID, live.UpdateSession{RecordingURL: "https://youtu.be/abc"})
		require.NoError(t, err)
		assert.True(t, s.IsRecorded)
		assert.Equal(t, "https://youtu.be/abc", s.RecordingURL)
		assert.Equal(t, "past", s.Title)

		_, err = svc.Update(ctx, past.ID, live.UpdateSession{Platform: "Teams"})
		assert.Error(t, err)
		_, err = svc.Update(ctx, "nope", live.UpdateSession{})
		assert.Equal(t, live.ErrNotFound, err)

		require.NoError(t, svc.Delete(ctx, past.ID))
		assert.Equal(t, live.ErrNotFound, svc.Delete(ctx, past.ID))
	})
}

func TestService_SendReminders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(nil)
	now := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)

	soon, err := svc.Schedule(ctx, live.NewSession{ClassID: f.cls.ID, Title: "soon", ScheduledAt: now.Add(10 * time.Minute)})
	require.NoError(t, err)
	_, err = svc.Schedule(ctx, live.NewSession{ClassID: f.cls.ID, Title: "tomorrow", ScheduledAt: now.Add(24 * time.Hour)})
	require.NoError(t, err)
	_, err = svc.Schedule(ctx, live.NewSession{ClassID: f.cls.ID, Title: "started", ScheduledAt: now.Add(-time.Minute)})
	require.NoError(t, err)
	f.env.Mail.Reset()

	n, err := svc.SendReminders(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, testutil.CountNotifications(t, f.env.DB, f.student.ID, "Live starting soon"))
	assert.Len(t, f.env.Mail.Sent(), 1)

	n, err = svc.SendReminders(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n, "reminded once")

	// moving the session re-arms the reminder
	moved := now.Add(5 * time.Minute)
	_, err = svc.Update(ctx, soon.ID, live.UpdateSession{ScheduledAt: &moved})
	require.NoError(t, err)
	n, err = svc.SendReminders(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
