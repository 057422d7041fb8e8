package notification

import (
	"time"

	"github.com/quransn/academy/core"
)

type Kind string

const (
	KindUserRegistered        Kind = "user.registered"
	KindLevelUp               Kind = "gamification.level_up"
	KindBadgeUnlocked         Kind = "gamification.badge_unlocked"
	KindSubscriptionActivated Kind = "subscription.activated"
	KindSubscriptionExpired   Kind = "subscription.expired"
	KindEnrollmentRequested   Kind = "enrollment.requested"
	KindEnrollmentApproved    Kind = "enrollment.approved"
	KindEnrollmentRejected    Kind = "enrollment.rejected"
	KindEnrollmentsPending    Kind = "enrollment.pending_summary"
	KindContentPublished      Kind = "content.published"
	KindCommentPosted         Kind = "content.comment_posted"
	KindQuizGraded            Kind = "quiz.graded"
	KindQuizReviewed          Kind = "quiz.reviewed"
	KindLiveScheduled         Kind = "live.scheduled"
	KindLiveReminder          Kind = "live.reminder"
)

// Recipient is a user an event is addressed to. Email is only needed by events that send mails.
type Recipient struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Event is a domain event waiting in the outbox. Producers fill the fields their Kind needs.
type Event struct {
	ID         string      `json:"id"`
	Kind       Kind        `json:"kind"`
	Recipients []Recipient `json:"recipients,omitempty"` // empty: admin channel
	Actor      string      `json:"actor,omitempty"`      // display name of whoever triggered the event
	Subject    string      `json:"subject,omitempty"`    // class, content, quiz, badge, plan or live title
	Context    string      `json:"context,omitempty"`    // e.g. the class a content belongs to
	Detail     string      `json:"detail,omitempty"`
	Level      int         `json:"level,omitempty"`
	Count      int         `json:"count,omitempty"`
	Percent    int         `json:"percent,omitempty"`
	Passed     bool        `json:"passed,omitempty"`
	Pending    bool        `json:"pending,omitempty"`
	Link       string      `json:"link,omitempty"`
	At         time.Time   `json:"at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Publish appends ev to the outbox as part of tx: it is only dispatched if tx commits.
func Publish(tx core.DBTx, ev Event) error {
	ev.ID = core.NewID()
	ev.CreatedAt = core.NowFunc()
	return core.PutRecord(tx, OutboxCollection, ev.ID, ev)
}

// PendingEvents lists the events not yet dispatched, oldest first.
func PendingEvents(tx core.DBTx) ([]Event, error) {
	return core.ListRecords[Event](tx, OutboxCollection, nil)
}
