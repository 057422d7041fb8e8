package notification

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/quransn/academy/core"
)

// maxConcurrentMails bounds the email fan-out of a single flush.
const maxConcurrentMails = 8

// Notifier is told that the outbox may hold new events.
type Notifier interface {
	Notify(ctx context.Context)
}

// Dispatcher drains the outbox: every event becomes notifications (same transaction) and
// emails (sent after commit). Events left by a failed flush are retried by the next one.
type Dispatcher struct {
	db          core.DB
	mailSvc     core.EmailService
	logger      core.Logger
	frontendURL string
}

var _ Notifier = (*Dispatcher)(nil)

func NewDispatcher(db core.DB, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Dispatcher {
	return &Dispatcher{
		db:          db,
		mailSvc:     mailSvc,
		logger:      logger,
		frontendURL: conf.FrontendBaseURL,
	}
}

// Flush dispatches every pending event and returns the number of notifications created.
func (d *Dispatcher) Flush(ctx context.Context) (int, error) {
	var (
		created int
		emails  []*core.EmailMessage
	)
	err := d.db.Update(ctx, func(tx core.DBTx) error {
		created, emails = 0, nil

		events, err := PendingEvents(tx)
		if err != nil {
			return errors.Wrap(err, "listing outbox")
		}
		for _, ev := range events {
			out := render(ev, d.frontendURL)
			for _, n := range out.notifications {
				n.ID = core.NewID()
				n.CreatedAt = ev.CreatedAt
				if err = core.PutRecord(tx, Collection, n.ID, n); err != nil {
					return errors.Wrap(err, "saving notification")
				}
				created++
			}
			emails = append(emails, out.emails...)
			if err = tx.Delete(OutboxCollection, ev.ID); err != nil {
				return errors.Wrap(err, "deleting outbox event")
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	d.sendEmails(ctx, emails)
	return created, nil
}

// Notify flushes the outbox and logs failures: notifying never fails the caller's operation.
func (d *Dispatcher) Notify(ctx context.Context) {
	if _, err := d.Flush(ctx); err != nil {
		d.logger.Error(fmt.Sprintf("flushing outbox: %v", err), err)
	}
}

func (d *Dispatcher) sendEmails(ctx context.Context, emails []*core.EmailMessage) {
	if len(emails) == 0 || d.mailSvc == nil {
		return
	}
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentMails)
	for _, msg := range emails {
		msg := msg
		g.Go(func() error {
			d.mailSvc.SendMessages(msg)
			return nil
		})
	}
	_ = g.Wait()
}

// NopNotifier ignores notifications, leaving events in the outbox.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context) {}
