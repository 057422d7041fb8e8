package live

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/notification"
	"github.com/quransn/academy/core/user"
)

var ErrNotFound = core.NewNotFoundError("live session not found")

// MeetingProvider opens a video meeting and returns its link.
type MeetingProvider interface {
	CreateMeeting(ctx context.Context, m Meeting) (string, error)
}

func Get(tx core.DBTx, id string) (Session, error) {
	s, err := core.GetRecord[Session](tx, Collection, id)
	if err == core.ErrRecordNotFound {
		return Session{}, ErrNotFound
	}
	return s, err
}

func List(tx core.DBTx, keep func(Session) bool) ([]Session, error) {
	return core.ListRecords(tx, Collection, keep)
}

type Service struct {
	db          core.DB
	validate    *validator.Validate
	notifier    notification.Notifier
	meetings    MeetingProvider // may be nil
	meetTimeout time.Duration
	logger      core.Logger
}

func NewService(db core.DB, validate *validator.Validate, notifier notification.Notifier, meetings MeetingProvider, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		db:          db,
		validate:    validate,
		notifier:    notifier,
		meetings:    meetings,
		meetTimeout: conf.Calendar.Timeout,
		logger:      logger,
	}
}

// meetingLink asks the provider for a Google Meet room. Failures fall back to FallbackMeetingLink.
func (svc *Service) meetingLink(ctx context.Context, ns NewSession) string {
	if svc.meetings == nil {
		return FallbackMeetingLink
	}
	if svc.meetTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, svc.meetTimeout)
		defer cancel()
	}
	link, err := svc.meetings.CreateMeeting(ctx, Meeting{
		Title:       ns.Title,
		Description: ns.Description,
		Start:       ns.ScheduledAt,
		Duration:    time.Duration(ns.DurationMinutes) * time.Minute,
	})
	if err != nil || link == "" {
		svc.logger.Warn(fmt.Sprintf("creating meeting for %q: %v", ns.Title, err))
		return FallbackMeetingLink
	}
	return link
}

func rosterRecipients(tx core.DBTx, cls class.Class) ([]notification.Recipient, error) {
	rcpts := make([]notification.Recipient, 0, len(cls.StudentIDs))
	for _, id := range cls.StudentIDs {
		usr, err := user.Get(tx, id)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		rcpts = append(rcpts, user.Recipient(usr))
	}
	return rcpts, nil
}

// Schedule plans a live session and invites the students of its class.
// A Google Meet session without a link gets one from the meeting provider.
func (svc *Service) Schedule(ctx context.Context, ns NewSession) (Session, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Session{}, err
	}
	if err := svc.db.View(ctx, func(tx core.DBTx) error {
		_, err := class.Get(tx, ns.ClassID)
		return err
	}); err != nil {
		return Session{}, err
	}

	link := ns.MeetingLink
	if link == "" {
		if ns.Platform == PlatformMeet {
			link = svc.meetingLink(ctx, ns)
		} else {
			link = FallbackMeetingLink
		}
	}

	var s Session
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		cls, err := class.Get(tx, ns.ClassID)
		if err != nil {
			return err
		}
		s = Session{
			ID:              core.NewID(),
			ClassID:         cls.ID,
			Title:           ns.Title,
			Description:     ns.Description,
			Platform:        ns.Platform,
			MeetingLink:     link,
			ScheduledAt:     ns.ScheduledAt,
			DurationMinutes: ns.DurationMinutes,
			IsRecorded:      ns.IsRecorded,
			CreatedAt:       core.NowFunc(),
		}
		if err = core.PutRecord(tx, Collection, s.ID, s); err != nil {
			return err
		}
		rcpts, err := rosterRecipients(tx, cls)
		if err != nil || len(rcpts) == 0 {
			return err
		}
		return notification.Publish(tx, notification.Event{
			Kind:       notification.KindLiveScheduled,
			Recipients: rcpts,
			Subject:    s.Title,
			Context:    cls.Name,
			At:         s.ScheduledAt,
			Link:       s.MeetingLink,
		})
	})
	if err != nil {
		return Session{}, err
	}
	svc.notifier.Notify(ctx)
	return s, nil
}

// Update edits a session, typically to attach its recording. Moving a session re-arms its reminder.
func (svc *Service) Update(ctx context.Context, id string, us UpdateSession) (Session, error) {
	if err := us.Validate(svc.validate); err != nil {
		return Session{}, err
	}
	var s Session
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		var err error
		if s, err = Get(tx, id); err != nil {
			return err
		}
		us.apply(&s)
		return core.PutRecord(tx, Collection, s.ID, s)
	})
	return s, err
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.db.Update(ctx, func(tx core.DBTx) error {
		if _, err := Get(tx, id); err != nil {
			return err
		}
		return tx.Delete(Collection, id)
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Session, error) {
	var s Session
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		s, err = Get(tx, id)
		return err
	})
	return s, err
}

// Query returns the matching sessions, soonest first.
func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Session, error) {
	var sessions []Session
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		sessions, err = List(tx, filter.match(core.NowFunc()))
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].ScheduledAt.Before(sessions[j].ScheduledAt)
	})
	return sessions, nil
}

// SendReminders tells the students of every session starting within `window` that it is about to begin.
// Each session is reminded once. It returns the number of sessions reminded.
func (svc *Service) SendReminders(ctx context.Context, window time.Duration) (int, error) {
	var reminded int
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		reminded = 0
		now := core.NowFunc()
		limit := now.Add(window)
		due, err := List(tx, func(s Session) bool {
			return s.ReminderSentAt == nil && !s.ScheduledAt.Before(now) && !s.ScheduledAt.After(limit)
		})
		if err != nil {
			return err
		}
		for _, s := range due {
			s.ReminderSentAt = &now
			if err = core.PutRecord(tx, Collection, s.ID, s); err != nil {
				return err
			}
			cls, err := class.Get(tx, s.ClassID)
			if err != nil {
				if core.IsNotFound(err) {
					continue
				}
				return err
			}
			rcpts, err := rosterRecipients(tx, cls)
			if err != nil {
				return err
			}
			if len(rcpts) == 0 {
				continue
			}
			if err = notification.Publish(tx, notification.Event{
				Kind:       notification.KindLiveReminder,
				Recipients: rcpts,
				Subject:    s.Title,
				Context:    cls.Name,
				At:         s.ScheduledAt,
				Link:       s.MeetingLink,
			}); err != nil {
				return err
			}
			reminded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if reminded > 0 {
		svc.notifier.Notify(ctx)
	}
	return reminded, nil
}
