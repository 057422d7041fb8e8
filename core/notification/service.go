package notification

import (
	"context"

	"github.com/quransn/academy/core"
)

var ErrNotFound = core.NewNotFoundError("notification not found")

type Service struct {
	db core.DB
}

func NewService(db core.DB) *Service {
	return &Service{db: db}
}

func addressedTo(recipients []string) func(Notification) bool {
	return func(n Notification) bool {
		for _, r := range recipients {
			if n.UserID == r {
				return true
			}
		}
		return false
	}
}

// List returns the notifications of the given recipients (a user id and/or AdminChannel), newest first.
func (svc *Service) List(ctx context.Context, recipients ...string) ([]Notification, error) {
	var notifs []Notification
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		notifs, err = core.ListRecords(tx, Collection, addressedTo(recipients))
		return err
	})
	if err != nil {
		return nil, err
	}
	// ids are time ordered
	for i, j := 0, len(notifs)-1; i < j; i, j = i+1, j-1 {
		notifs[i], notifs[j] = notifs[j], notifs[i]
	}
	return notifs, nil
}

func (svc *Service) UnreadCount(ctx context.Context, recipients ...string) (int, error) {
	var count int
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		match := addressedTo(recipients)
		count, err = core.CountRecords(tx, Collection, func(n Notification) bool { return !n.IsRead && match(n) })
		return err
	})
	return count, err
}

// MarkRead marks the notification `id` as read. It must be addressed to one of `recipients`.
func (svc *Service) MarkRead(ctx context.Context, id string, recipients ...string) (Notification, error) {
	var notif Notification
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		var err error
		notif, err = core.GetRecord[Notification](tx, Collection, id)
		if err != nil {
			if err == core.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		if !addressedTo(recipients)(notif) {
			return ErrNotFound
		}
		if notif.IsRead {
			return nil
		}
		notif.IsRead = true
		return core.PutRecord(tx, Collection, notif.ID, notif)
	})
	return notif, err
}

// MarkAllRead marks every notification of `recipients` as read and returns how many changed.
func (svc *Service) MarkAllRead(ctx context.Context, recipients ...string) (int, error) {
	var changed int
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		match := addressedTo(recipients)
		unread, err := core.ListRecords(tx, Collection, func(n Notification) bool { return !n.IsRead && match(n) })
		if err != nil {
			return err
		}
		for _, n := range unread {
			n.IsRead = true
			if err = core.PutRecord(tx, Collection, n.ID, n); err != nil {
				return err
			}
		}
		changed = len(unread)
		return nil
	})
	return changed, err
}
