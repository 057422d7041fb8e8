package live

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core"
)

const (
	Collection = "lives"

	PlatformMeet  = "Google Meet"
	PlatformZoom  = "Zoom"
	PlatformOther = "Autre"

	DefaultDurationMinutes = 60
	// FallbackMeetingLink opens a new Meet room when no link could be obtained.
	FallbackMeetingLink = "https://meet.google.com/new"
)

var Platforms = []string{PlatformMeet, PlatformZoom, PlatformOther}

var errUnknownPlatform = errors.New("unknown platform")

type Session struct {
	ID              string     `json:"id"`
	ClassID         string     `json:"class_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Platform        string     `json:"platform"`
	MeetingLink     string     `json:"meeting_link"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes"`
	IsRecorded      bool       `json:"is_recorded"`
	RecordingURL    string     `json:"recording_url,omitempty"`
	ReminderSentAt  *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (s Session) EndsAt() time.Time {
	return s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// Meeting is what a MeetingProvider needs to open a room.
type Meeting struct {
	Title       string
	Description string
	Start       time.Time
	Duration    time.Duration
}

func checkPlatform(platform string) error {
	for _, p := range Platforms {
		if p == platform {
			return nil
		}
	}
	return core.NewValidationError(errUnknownPlatform, core.FieldError{Field: "platform", Error: errUnknownPlatform.Error()})
}

type NewSession struct {
	ClassID         string    `json:"class_id" validate:"required"`
	Title           string    `json:"title" validate:"required,max=200"`
	Description     string    `json:"description" validate:"max=2000"`
	Platform        string    `json:"platform"`
	MeetingLink     string    `json:"meeting_link" validate:"omitempty,url"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes" validate:"min=0,max=1440"`
	IsRecorded      bool      `json:"is_recorded"`
}

// Validate cleans the input and fills the defaults: a Google Meet session of 60 minutes starting now.
func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	ns.Description = core.CleanString(ns.Description)
	ns.MeetingLink = core.CleanString(ns.MeetingLink)
	if ns.Platform = core.CleanString(ns.Platform); ns.Platform == "" {
		ns.Platform = PlatformMeet
	}
	if ns.DurationMinutes == 0 {
		ns.DurationMinutes = DefaultDurationMinutes
	}
	if ns.ScheduledAt.IsZero() {
		ns.ScheduledAt = core.NowFunc()
	}
	if err := validate.Struct(ns); err != nil {
		return err
	}
	return checkPlatform(ns.Platform)
}

// UpdateSession holds the editable fields of a session. Empty fields are left unchanged.
type UpdateSession struct {
	Title           string     `json:"title" validate:"max=200"`
	Description     string     `json:"description" validate:"max=2000"`
	Platform        string     `json:"platform"`
	MeetingLink     string     `json:"meeting_link" validate:"omitempty,url"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes" validate:"min=0,max=1440"`
	IsRecorded      *bool      `json:"is_recorded"`
	RecordingURL    string     `json:"recording_url" validate:"omitempty,url"`
}

func (us *UpdateSession) Validate(validate *validator.Validate) error {
	us.Title = core.CleanString(us.Title)
	us.Description = core.CleanString(us.Description)
	us.Platform = core.CleanString(us.Platform)
	us.MeetingLink = core.CleanString(us.MeetingLink)
	us.RecordingURL = core.CleanString(us.RecordingURL)
	if err := validate.Struct(us); err != nil {
		return err
	}
	if us.Platform != "" {
		return checkPlatform(us.Platform)
	}
	return nil
}

func (us UpdateSession) apply(s *Session) {
	if us.Title != "" {
		s.Title = us.Title
	}
	if us.Description != "" {
		s.Description = us.Description
	}
	if us.Platform != "" {
		s.Platform = us.Platform
	}
	if us.MeetingLink != "" {
		s.MeetingLink = us.MeetingLink
	}
	if us.ScheduledAt != nil && !us.ScheduledAt.Equal(s.ScheduledAt) {
		s.ScheduledAt = *us.ScheduledAt
		s.ReminderSentAt = nil
	}
	if us.DurationMinutes > 0 {
		s.DurationMinutes = us.DurationMinutes
	}
	if us.IsRecorded != nil {
		s.IsRecorded = *us.IsRecorded
	}
	if us.RecordingURL != "" {
		s.RecordingURL = us.RecordingURL
		s.IsRecorded = true
	}
}

type QueryFilter struct {
	ClassID  string `query:"class_id"`
	Upcoming bool   `query:"upcoming"` // not over yet
	// ClassIDs restricts the result to these classes when not nil.
	ClassIDs []string
}

func (qf QueryFilter) match(now time.Time) func(Session) bool {
	return func(s Session) bool {
		if qf.ClassID != "" && s.ClassID != qf.ClassID {
			return false
		}
		if qf.Upcoming && !s.EndsAt().After(now) {
			return false
		}
		if qf.ClassIDs != nil {
			for _, id := range qf.ClassIDs {
				if id == s.ClassID {
					return true
				}
			}
			return false
		}
		return true
	}
}
