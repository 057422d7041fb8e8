package notification

import (
	"time"
)

const (
	Collection       = "notifications"
	OutboxCollection = "outbox"

	// AdminChannel is the recipient id of notifications addressed to every admin.
	AdminChannel = "ADMIN"
)

type Type string

const (
	TypeInfo    Type = "INFO"
	TypeSuccess Type = "SUCCESS"
	TypeWarning Type = "WARNING"
	TypeError   Type = "ERROR"
)

// Views of the front-end a notification can link to.
const (
	LinkStudents     = "students"
	LinkEnrollments  = "enrollments"
	LinkMyClasses    = "my-classes"
	LinkProfile      = "profile"
	LinkSubscription = "subscription"
	LinkLives        = "lives"
	LinkContents     = "contents"
	LinkQuizzes      = "quizzes"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"` // user id or AdminChannel
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	IsRead    bool      `json:"is_read"`
	LinkTo    string    `json:"link_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
