package notification

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/quransn/academy/core"
)

const dateLayout = "02/01/2006 15:04"

type rendered struct {
	notifications []Notification
	emails        []*core.EmailMessage
}

func (r *rendered) notify(userID string, typ Type, title, message, link string) {
	r.notifications = append(r.notifications, Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    typ,
		LinkTo:  link,
	})
}

func (r *rendered) notifyAll(rcpts []Recipient, typ Type, title, message, link string) {
	for _, rcpt := range rcpts {
		r.notify(rcpt.UserID, typ, title, message, link)
	}
}

func (r *rendered) mail(rcpts []Recipient, subject, body, link string) {
	for _, rcpt := range rcpts {
		if rcpt.Email == "" {
			continue
		}
		hello := "Hello,\n\n"
		if rcpt.Name != "" {
			hello = "Hello " + rcpt.Name + ",\n\n"
		}
		r.emails = append(r.emails, &core.EmailMessage{
			To:      []mail.Address{{Name: rcpt.Name, Address: rcpt.Email}},
			Subject: subject,
			BodyStr: hello + body,
			Link:    link,
		})
	}
}

// render turns an event into the notifications and emails it triggers.
func render(ev Event, frontendURL string) rendered {
	var r rendered
	link := func(view string) string { return strings.TrimRight(frontendURL, "/") + "/" + view }

	switch ev.Kind {
	case KindUserRegistered:
		r.notify(AdminChannel, TypeInfo, "New registration",
			fmt.Sprintf("%s just joined the platform.", ev.Actor), LinkStudents)

	case KindLevelUp:
		r.notifyAll(ev.Recipients, TypeSuccess, "Level up!",
			fmt.Sprintf("Congratulations, you reached level %d.", ev.Level), LinkProfile)

	case KindBadgeUnlocked:
		r.notifyAll(ev.Recipients, TypeSuccess, "New badge!",
			fmt.Sprintf("You unlocked the %q badge.", ev.Subject), LinkProfile)

	case KindSubscriptionActivated:
		msg := fmt.Sprintf("Your %s plan is now active.", ev.Subject)
		if !ev.At.IsZero() {
			msg = fmt.Sprintf("Your %s plan is active until %s.", ev.Subject, ev.At.Format("02/01/2006"))
		}
		r.notifyAll(ev.Recipients, TypeSuccess, "Subscription activated", msg, LinkSubscription)

	case KindSubscriptionExpired:
		msg := fmt.Sprintf("Your %s plan has expired, you are back on the free plan.", ev.Subject)
		r.notifyAll(ev.Recipients, TypeWarning, "Subscription expired", msg, LinkSubscription)
		r.mail(ev.Recipients, "Your subscription has expired", msg, link(LinkSubscription))

	case KindEnrollmentRequested:
		r.notify(AdminChannel, TypeWarning, "New enrollment request",
			fmt.Sprintf("%s asked to join %s.", ev.Actor, ev.Subject), LinkEnrollments)

	case KindEnrollmentApproved:
		msg := fmt.Sprintf("Your enrollment in %s has been approved.", ev.Subject)
		r.notifyAll(ev.Recipients, TypeSuccess, "Enrollment approved", msg, LinkMyClasses)
		r.mail(ev.Recipients, "Enrollment approved - "+ev.Subject,
			msg+"\n\nYou can now access the class contents.", link(LinkMyClasses))

	case KindEnrollmentRejected:
		r.notifyAll(ev.Recipients, TypeError, "Enrollment rejected",
			fmt.Sprintf("Your enrollment in %s has been rejected.", ev.Subject), LinkMyClasses)

	case KindEnrollmentsPending:
		r.notify(AdminChannel, TypeInfo, "Pending enrollments",
			fmt.Sprintf("%d enrollment request(s) awaiting review.", ev.Count), LinkEnrollments)

	case KindContentPublished:
		r.notifyAll(ev.Recipients, TypeInfo, "New content",
			fmt.Sprintf("%q was added to %s.", ev.Subject, ev.Context), LinkMyClasses)

	case KindCommentPosted:
		r.notify(AdminChannel, TypeInfo, "New comment",
			fmt.Sprintf("%s commented on %q.", ev.Actor, ev.Subject), LinkContents)

	case KindQuizGraded:
		switch {
		case ev.Pending:
			r.notifyAll(ev.Recipients, TypeInfo, "Quiz submitted",
				fmt.Sprintf("Your answers to %q are awaiting review by your teacher.", ev.Subject), LinkQuizzes)
		case ev.Passed:
			r.notifyAll(ev.Recipients, TypeSuccess, "Quiz result",
				fmt.Sprintf("You scored %d%% on %q.", ev.Percent, ev.Subject), LinkQuizzes)
		default:
			r.notifyAll(ev.Recipients, TypeWarning, "Quiz result",
				fmt.Sprintf("You scored %d%% on %q.", ev.Percent, ev.Subject), LinkQuizzes)
		}

	case KindQuizReviewed:
		typ := TypeWarning
		if ev.Passed {
			typ = TypeSuccess
		}
		msg := fmt.Sprintf("Your teacher reviewed %q: %d%%.", ev.Subject, ev.Percent)
		if ev.Detail != "" {
			msg += " " + ev.Detail
		}
		r.notifyAll(ev.Recipients, typ, "Quiz reviewed", msg, LinkQuizzes)

	case KindLiveScheduled:
		when := ev.At.Format(dateLayout)
		r.notifyAll(ev.Recipients, TypeInfo, "New live session",
			fmt.Sprintf("%q (%s) is scheduled on %s.", ev.Subject, ev.Context, when), LinkLives)
		r.mail(ev.Recipients, "Live session: "+ev.Subject,
			fmt.Sprintf("A live session of %s is scheduled on %s.\n\nJoin it with the link below.", ev.Context, when),
			ev.Link)

	case KindLiveReminder:
		when := ev.At.Format(dateLayout)
		r.notifyAll(ev.Recipients, TypeWarning, "Live starting soon",
			fmt.Sprintf("%q starts at %s.", ev.Subject, when), LinkLives)
		r.mail(ev.Recipients, "Reminder: "+ev.Subject,
			fmt.Sprintf("Your live session %q starts at %s.", ev.Subject, when), ev.Link)
	}
	return r
}
