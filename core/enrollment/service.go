package enrollment

import (
	"context"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/notification"
	"github.com/quransn/academy/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("enrollment not found")
	ErrInvalidTransition = core.NewConflictError("this enrollment has already been decided")
	ErrClassFull         = core.NewConflictError("the class is full")
	ErrPremiumRequired   = core.NewPermissionError("this class requires a premium subscription")
	ErrGenderRestricted  = core.NewPermissionError("this class is not open to your gender")
	ErrNotStudent        = core.NewPermissionError("only students can enroll in a class")
)

const (
	metaCollection = "meta"
	pendingMetaKey = "enrollments.pending"
)

type pendingMeta struct {
	Count int `json:"count"`
}

// Get loads the enrollment `id` within tx.
func Get(tx core.DBTx, id string) (Enrollment, error) {
	enr, err := core.GetRecord[Enrollment](tx, Collection, id)
	if err == core.ErrRecordNotFound {
		return Enrollment{}, ErrNotFound
	}
	return enr, err
}

func List(tx core.DBTx, keep func(Enrollment) bool) ([]Enrollment, error) {
	return core.ListRecords(tx, Collection, keep)
}

type Service struct {
	db              core.DB
	notifier        notification.Notifier
	enforceCapacity bool
}

func NewService(db core.DB, notifier notification.Notifier, conf *core.Config) *Service {
	return &Service{
		db:              db,
		notifier:        notifier,
		enforceCapacity: conf.EnforceClassCapacity,
	}
}

// Request asks for the student `userID` to join `classID`. A request for the same pair is returned unchanged.
func (svc *Service) Request(ctx context.Context, userID, classID string) (Enrollment, bool, error) {
	var (
		enr     Enrollment
		created bool
	)
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		created = false
		existing, err := List(tx, func(e Enrollment) bool { return e.UserID == userID && e.ClassID == classID })
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			enr = existing[0]
			return nil
		}

		usr, err := user.Get(tx, userID)
		if err != nil {
			return err
		}
		cls, err := class.Get(tx, classID)
		if err != nil {
			return err
		}
		switch {
		case !usr.IsStudent():
			return ErrNotStudent
		case !cls.VisibleTo(usr.Gender):
			return ErrGenderRestricted
		case cls.RequiresPremium() && !usr.IsPremium():
			return ErrPremiumRequired
		}

		enr = Enrollment{
			ID:          core.NewID(),
			UserID:      usr.ID,
			UserName:    usr.FullName(),
			ClassID:     cls.ID,
			ClassName:   cls.Name,
			Status:      StatusPending,
			RequestedAt: core.NowFunc(),
		}
		if err = core.PutRecord(tx, Collection, enr.ID, enr); err != nil {
			return err
		}
		created = true
		return notification.Publish(tx, notification.Event{
			Kind:    notification.KindEnrollmentRequested,
			Actor:   enr.UserName,
			Subject: enr.ClassName,
		})
	})
	if err != nil {
		return Enrollment{}, false, err
	}
	if created {
		svc.notifier.Notify(ctx)
	}
	return enr, created, nil
}

// Approve accepts a pending request and adds the student to the class roster, in one transaction.
// Approving an approved request is a no-op.
func (svc *Service) Approve(ctx context.Context, id string) (Enrollment, error) {
	return svc.decide(ctx, id, StatusApproved)
}

// Reject refuses a pending request. Rejecting a rejected request is a no-op.
func (svc *Service) Reject(ctx context.Context, id string) (Enrollment, error) {
	return svc.decide(ctx, id, StatusRejected)
}

func (svc *Service) decide(ctx context.Context, id string, status Status) (Enrollment, error) {
	var (
		enr     Enrollment
		changed bool
	)
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		var err error
		changed = false
		if enr, err = Get(tx, id); err != nil {
			return err
		}
		switch enr.Status {
		case status:
			return nil
		case StatusPending:
		default:
			return ErrInvalidTransition
		}

		kind := notification.KindEnrollmentRejected
		if status == StatusApproved {
			kind = notification.KindEnrollmentApproved
			if err = svc.addToRoster(tx, enr); err != nil {
				return err
			}
		}

		now := core.NowFunc()
		enr.Status = status
		enr.DecidedAt = &now
		if err = core.PutRecord(tx, Collection, enr.ID, enr); err != nil {
			return err
		}
		changed = true

		rcpt := notification.Recipient{UserID: enr.UserID, Name: enr.UserName}
		if usr, err := user.Get(tx, enr.UserID); err == nil {
			rcpt = user.Recipient(usr)
		}
		return notification.Publish(tx, notification.Event{
			Kind:       kind,
			Recipients: []notification.Recipient{rcpt},
			Subject:    enr.ClassName,
		})
	})
	if err != nil {
		return Enrollment{}, err
	}
	if changed {
		svc.notifier.Notify(ctx)
	}
	return enr, nil
}

func (svc *Service) addToRoster(tx core.DBTx, enr Enrollment) error {
	cls, err := class.Get(tx, enr.ClassID)
	if err != nil {
		return err
	}
	if cls.HasStudent(enr.UserID) {
		return nil
	}
	if svc.enforceCapacity && cls.IsFull() {
		return ErrClassFull
	}
	cls.StudentIDs = append(cls.StudentIDs, enr.UserID)
	cls.UpdatedAt = core.NowFunc()
	return class.Save(tx, cls)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Enrollment, error) {
	var enr Enrollment
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		enr, err = Get(tx, id)
		return err
	})
	return enr, err
}

// Query returns the matching enrollments in request order.
func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Enrollment, error) {
	var enrs []Enrollment
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		enrs, err = List(tx, filter.match)
		return err
	})
	return enrs, err
}

func (svc *Service) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		n, err = core.CountRecords(tx, Collection, func(e Enrollment) bool { return e.Status == StatusPending })
		return err
	})
	return n, err
}

// NotifyPending tells the admins how many requests await review whenever that number grew
// since the previous check. It returns the current pending count.
func (svc *Service) NotifyPending(ctx context.Context) (int, error) {
	var (
		count    int
		notified bool
	)
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		var err error
		notified = false
		count, err = core.CountRecords(tx, Collection, func(e Enrollment) bool { return e.Status == StatusPending })
		if err != nil {
			return err
		}

		last, err := core.GetRecord[pendingMeta](tx, metaCollection, pendingMetaKey)
		if err != nil && err != core.ErrRecordNotFound {
			return err
		}
		if count == last.Count {
			return nil
		}
		if count > last.Count {
			if err = notification.Publish(tx, notification.Event{
				Kind:  notification.KindEnrollmentsPending,
				Count: count,
			}); err != nil {
				return err
			}
			notified = true
		}
		return core.PutRecord(tx, metaCollection, pendingMetaKey, pendingMeta{Count: count})
	})
	if err != nil {
		return 0, err
	}
	if notified {
		svc.notifier.Notify(ctx)
	}
	return count, nil
}
