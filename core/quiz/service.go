package quiz

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/content"
	"github.com/quransn/academy/core/notification"
	"github.com/quransn/academy/core/user"
)

var (
	ErrNotFound         = core.NewNotFoundError("quiz not found")
	ErrAttemptNotFound  = core.NewNotFoundError("quiz attempt not found")
	ErrMaxAttempts      = core.NewConflictError("no attempt left for this quiz")
	errPointsOutOfRange = errors.New("points out of range")
)

func Get(tx core.DBTx, id string) (Quiz, error) {
	qz, err := core.GetRecord[Quiz](tx, Collection, id)
	if err == core.ErrRecordNotFound {
		return Quiz{}, ErrNotFound
	}
	return qz, err
}

func List(tx core.DBTx, keep func(Quiz) bool) ([]Quiz, error) {
	return core.ListRecords(tx, Collection, keep)
}

func GetAttempt(tx core.DBTx, id string) (Attempt, error) {
	a, err := core.GetRecord[Attempt](tx, AttemptCollection, id)
	if err == core.ErrRecordNotFound {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, err
}

func ListAttempts(tx core.DBTx, keep func(Attempt) bool) ([]Attempt, error) {
	return core.ListRecords(tx, AttemptCollection, keep)
}

type Service struct {
	db              core.DB
	validate        *validator.Validate
	notifier        notification.Notifier
	policies        Policies
	passXP          int
	maxUpload       int64
	enforceAttempts bool
}

func NewService(db core.DB, validate *validator.Validate, notifier notification.Notifier, conf *core.Config) *Service {
	return &Service{
		db:              db,
		validate:        validate,
		notifier:        notifier,
		policies:        PoliciesFromConfig(conf.Quiz),
		passXP:          conf.Gamification.QuizPassXP,
		maxUpload:       conf.Content.MaxUploadBytes,
		enforceAttempts: conf.Quiz.EnforceMaxAttempts,
	}
}

// Create stores a new quiz. Quizzes cannot be edited afterwards.
func (svc *Service) Create(ctx context.Context, nq NewQuiz) (Quiz, error) {
	if err := nq.Validate(svc.validate); err != nil {
		return Quiz{}, err
	}
	var qz Quiz
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		if _, err := class.Get(tx, nq.ClassID); err != nil {
			return err
		}
		qz = Quiz{
			ID:               core.NewID(),
			ClassID:          nq.ClassID,
			Title:            nq.Title,
			Description:      nq.Description,
			Questions:        nq.Questions,
			TimeLimitMinutes: nq.TimeLimitMinutes,
			PassingScore:     nq.PassingScore,
			MaxAttempts:      nq.MaxAttempts,
			CreatedAt:        core.NowFunc(),
		}
		return core.PutRecord(tx, Collection, qz.ID, qz)
	})
	if err != nil {
		return Quiz{}, err
	}
	return qz, nil
}

// Delete removes a quiz along with its attempts.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.db.Update(ctx, func(tx core.DBTx) error {
		if _, err := Get(tx, id); err != nil {
			return err
		}
		attempts, err := ListAttempts(tx, func(a Attempt) bool { return a.QuizID == id })
		if err != nil {
			return err
		}
		for _, a := range attempts {
			if err = tx.Delete(AttemptCollection, a.ID); err != nil {
				return err
			}
		}
		return tx.Delete(Collection, id)
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Quiz, error) {
	var qz Quiz
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		qz, err = Get(tx, id)
		return err
	})
	return qz, err
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Quiz, error) {
	var quizzes []Quiz
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		quizzes, err = List(tx, filter.match)
		return err
	})
	return quizzes, err
}

func (svc *Service) checkAnswers(qz Quiz, answers map[string]Answer) error {
	var flds []core.FieldError
	for _, q := range qz.Questions {
		a, ok := answers[q.ID]
		if !ok {
			continue
		}
		field := "answers." + q.ID
		switch q.Type {
		case TypeSingleChoice, TypeMultiChoice:
			if q.Type == TypeSingleChoice && len(a.Choices) > 1 {
				flds = append(flds, core.FieldError{Field: field, Error: "only one option may be chosen"})
			}
			for _, idx := range a.Choices {
				if idx < 0 || idx >= len(q.Choice.Options) {
					flds = append(flds, core.FieldError{Field: field, Error: fmt.Sprintf("option %d does not exist", idx)})
					break
				}
			}
		case TypeRecitation:
			if a.AudioDataURL != "" {
				if err := content.CheckAudio(a.AudioDataURL, svc.maxUpload); err != nil {
					flds = append(flds, core.FieldError{Field: field, Error: err.Error()})
				}
			}
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid answers"), flds...)
	}
	return nil
}

// Submit grades the answers of `userID` to `quizID` and records the attempt.
// Passing the quiz awards the quiz xp. Answers to unknown questions are dropped.
func (svc *Service) Submit(ctx context.Context, quizID, userID string, sub Submission) (Attempt, error) {
	var att Attempt
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		qz, err := Get(tx, quizID)
		if err != nil {
			return err
		}
		usr, err := user.Get(tx, userID)
		if err != nil {
			return err
		}
		if err = svc.checkAnswers(qz, sub.Answers); err != nil {
			return err
		}
		if svc.enforceAttempts && qz.MaxAttempts > 0 {
			n, err := core.CountRecords(tx, AttemptCollection, func(a Attempt) bool {
				return a.QuizID == qz.ID && a.UserID == usr.ID
			})
			if err != nil {
				return err
			}
			if n >= qz.MaxAttempts {
				return ErrMaxAttempts
			}
		}

		now := core.NowFunc()
		att = Attempt{
			ID:          core.NewID(),
			QuizID:      qz.ID,
			UserID:      usr.ID,
			Answers:     make(map[string]Answer, len(qz.Questions)),
			StartedAt:   sub.StartedAt,
			CompletedAt: now,
		}
		if att.StartedAt.IsZero() || att.StartedAt.After(now) {
			att.StartedAt = now
		}
		for _, q := range qz.Questions {
			if a, ok := sub.Answers[q.ID]; ok {
				att.Answers[q.ID] = a
			}
		}
		svc.policies.gradeAttempt(qz, &att)
		if err = core.PutRecord(tx, AttemptCollection, att.ID, att); err != nil {
			return err
		}

		if err = notification.Publish(tx, notification.Event{
			Kind:       notification.KindQuizGraded,
			Recipients: []notification.Recipient{user.Recipient(usr)},
			Subject:    qz.Title,
			Percent:    att.Score,
			Passed:     att.Passed,
			Pending:    att.Status == StatusPendingReview,
		}); err != nil {
			return err
		}
		if att.Passed {
			if _, err = user.AwardXP(tx, usr.ID, svc.passXP); err != nil {
				return err
			}
		}
		return svc.rewardReciter(tx, qz, usr.ID, att)
	})
	if err != nil {
		return Attempt{}, err
	}
	svc.notifier.Notify(ctx)
	return att, nil
}

// rewardReciter unlocks the Reciter badge once the user has sent enough recitations.
func (svc *Service) rewardReciter(tx core.DBTx, qz Quiz, userID string, att Attempt) error {
	sent := func(qz Quiz, a Attempt) int {
		var n int
		for _, q := range qz.Questions {
			if q.Type == TypeRecitation && a.Answers[q.ID].given(TypeRecitation) {
				n++
			}
		}
		return n
	}
	if sent(qz, att) == 0 {
		return nil
	}

	attempts, err := ListAttempts(tx, func(a Attempt) bool { return a.UserID == userID })
	if err != nil {
		return err
	}
	quizzes := map[string]Quiz{qz.ID: qz}
	var total int
	for _, a := range attempts {
		aqz, ok := quizzes[a.QuizID]
		if !ok {
			found, err := Get(tx, a.QuizID)
			if err != nil {
				continue
			}
			aqz, quizzes[a.QuizID] = found, found
		}
		total += sent(aqz, a)
	}
	if total >= user.ReciterSubmissions {
		_, err = user.UnlockBadge(tx, userID, user.BadgeReciter)
	}
	return err
}

// Review records the teacher's grading of an attempt and recomputes its score.
// Points given for auto-graded questions override them. Every question pending review must be graded.
func (svc *Service) Review(ctx context.Context, attemptID string, rv Review) (Attempt, error) {
	rv.Feedback = core.CleanString(rv.Feedback)
	if err := svc.validate.Struct(rv); err != nil {
		return Attempt{}, err
	}

	var att Attempt
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		var err error
		att, err = GetAttempt(tx, attemptID)
		if err != nil {
			return err
		}
		qz, err := Get(tx, att.QuizID)
		if err != nil {
			return err
		}

		var flds []core.FieldError
		for _, qid := range att.PendingReview {
			if _, ok := rv.Points[qid]; !ok {
				flds = append(flds, core.FieldError{Field: "points." + qid, Error: "this question must be graded"})
			}
		}
		questions := make(map[string]Question, len(qz.Questions))
		for _, q := range qz.Questions {
			questions[q.ID] = q
		}
		for qid, pts := range rv.Points {
			q, ok := questions[qid]
			if !ok {
				flds = append(flds, core.FieldError{Field: "points." + qid, Error: "unknown question"})
				continue
			}
			if pts < 0 || pts > q.Points {
				flds = append(flds, core.FieldError{Field: "points." + qid, Error: fmt.Sprintf("must be between 0 and %d", q.Points)})
			}
		}
		if len(flds) > 0 {
			return core.NewValidationError(errPointsOutOfRange, flds...)
		}

		wasPassed := att.Passed
		if att.Points == nil {
			att.Points = make(map[string]int, len(qz.Questions))
		}
		var earned int
		for _, q := range qz.Questions {
			if pts, ok := rv.Points[q.ID]; ok {
				att.Points[q.ID] = pts
			}
			earned += att.Points[q.ID]
		}
		now := core.NowFunc()
		att.PendingReview = []string{}
		att.Score = scorePercent(earned, att.TotalPoints)
		att.Passed = att.Score >= qz.PassingScore
		att.Status = StatusGraded
		att.TeacherFeedback = rv.Feedback
		att.ReviewedAt = &now
		if err = core.PutRecord(tx, AttemptCollection, att.ID, att); err != nil {
			return err
		}

		usr, err := user.Get(tx, att.UserID)
		if err != nil {
			return err
		}
		if err = notification.Publish(tx, notification.Event{
			Kind:       notification.KindQuizReviewed,
			Recipients: []notification.Recipient{user.Recipient(usr)},
			Subject:    qz.Title,
			Percent:    att.Score,
			Passed:     att.Passed,
			Detail:     att.TeacherFeedback,
		}); err != nil {
			return err
		}
		if att.Passed && !wasPassed {
			_, err = user.AwardXP(tx, usr.ID, svc.passXP)
		}
		return err
	})
	if err != nil {
		return Attempt{}, err
	}
	svc.notifier.Notify(ctx)
	return att, nil
}

func (svc *Service) GetAttemptByID(ctx context.Context, id string) (Attempt, error) {
	var att Attempt
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		att, err = GetAttempt(tx, id)
		return err
	})
	return att, err
}

// Attempts lists the matching attempts in submission order.
func (svc *Service) Attempts(ctx context.Context, filter AttemptFilter) ([]Attempt, error) {
	var attempts []Attempt
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		attempts, err = ListAttempts(tx, filter.match)
		return err
	})
	return attempts, err
}
