package enrollment

import "time"

const Collection = "enrollments"

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Enrollment is the request of a student to join a class. It is decided once.
type Enrollment struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	UserName    string     `json:"user_name"`
	ClassID     string     `json:"class_id"`
	ClassName   string     `json:"class_name"`
	Status      Status     `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

type QueryFilter struct {
	Status  Status `query:"status"`
	UserID  string `query:"user_id"`
	ClassID string `query:"class_id"`
}

func (qf QueryFilter) match(e Enrollment) bool {
	return (qf.Status == "" || e.Status == qf.Status) &&
		(qf.UserID == "" || e.UserID == qf.UserID) &&
		(qf.ClassID == "" || e.ClassID == qf.ClassID)
}
