package quiz

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core"
)

const (
	Collection        = "quizzes"
	AttemptCollection = "attempts"

	DefaultPassingScore = 50
	DefaultMaxAttempts  = 3
)

type QuestionType string

const (
	TypeSingleChoice QuestionType = "MCQ_SINGLE"
	TypeMultiChoice  QuestionType = "MCQ_MULTI"
	TypeTrueFalse    QuestionType = "TRUE_FALSE"
	TypeOpen         QuestionType = "OPEN"
	TypeRecitation   QuestionType = "AUDIO_RECITATION"
)

var QuestionTypes = []QuestionType{TypeSingleChoice, TypeMultiChoice, TypeTrueFalse, TypeOpen, TypeRecitation}

// Choice is the variant of MCQ_SINGLE and MCQ_MULTI questions. Correct holds option indexes.
type Choice struct {
	Options []string `json:"options"`
	Correct []int    `json:"correct,omitempty"`
}

// TrueFalse is the variant of TRUE_FALSE questions. A nil Correct means no answer key.
type TrueFalse struct {
	Correct *bool `json:"correct,omitempty"`
}

// Recitation is the variant of AUDIO_RECITATION questions.
type Recitation struct {
	AudioPromptURL string `json:"audio_prompt_url,omitempty"`
}

// Question carries the variant matching its Type, OPEN questions have none.
type Question struct {
	ID          string       `json:"id"`
	Type        QuestionType `json:"type" validate:"required,oneof=MCQ_SINGLE MCQ_MULTI TRUE_FALSE OPEN AUDIO_RECITATION"`
	Text        string       `json:"text" validate:"required,max=1000"`
	Points      int          `json:"points" validate:"min=0"`
	Explanation string       `json:"explanation,omitempty" validate:"max=2000"`
	Choice      *Choice      `json:"choice,omitempty"`
	TrueFalse   *TrueFalse   `json:"true_false,omitempty"`
	Recitation  *Recitation  `json:"recitation,omitempty"`
}

func (q Question) hasKey() bool {
	switch q.Type {
	case TypeSingleChoice, TypeMultiChoice:
		return len(q.Choice.Correct) > 0
	case TypeTrueFalse:
		return q.TrueFalse.Correct != nil
	}
	return false
}

// checkVariant verifies the question carries exactly the variant of its type.
func (q *Question) checkVariant() error {
	choice, tf, rec := q.Choice != nil, q.TrueFalse != nil, q.Recitation != nil
	switch q.Type {
	case TypeSingleChoice, TypeMultiChoice:
		if !choice || tf || rec {
			return errors.New("choice questions need options and nothing else")
		}
		if len(q.Choice.Options) < 2 {
			return errors.New("choice questions need at least 2 options")
		}
		for _, idx := range q.Choice.Correct {
			if idx < 0 || idx >= len(q.Choice.Options) {
				return errors.Errorf("correct option %d does not exist", idx)
			}
		}
		if q.Type == TypeSingleChoice && len(q.Choice.Correct) > 1 {
			return errors.New("single choice questions have one correct option")
		}
	case TypeTrueFalse:
		if choice || rec {
			return errors.New("true/false questions only take a true_false key")
		}
		if !tf {
			q.TrueFalse = &TrueFalse{}
		}
	case TypeRecitation:
		if choice || tf {
			return errors.New("recitation questions only take an audio prompt")
		}
		if !rec {
			q.Recitation = &Recitation{}
		}
	case TypeOpen:
		if choice || tf || rec {
			return errors.New("open questions take no options nor key")
		}
	}
	return nil
}

type Quiz struct {
	ID               string     `json:"id"`
	ClassID          string     `json:"class_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Questions        []Question `json:"questions"`
	TimeLimitMinutes int        `json:"time_limit_minutes"` // 0: unlimited
	PassingScore     int        `json:"passing_score"`      // percent
	MaxAttempts      int        `json:"max_attempts"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (qz Quiz) TotalPoints() int {
	var total int
	for _, q := range qz.Questions {
		total += q.Points
	}
	return total
}

// WithoutKeys returns a copy of the quiz stripped of its answer keys, as shown to students.
func (qz Quiz) WithoutKeys() Quiz {
	questions := make([]Question, len(qz.Questions))
	for i, q := range qz.Questions {
		if q.Choice != nil {
			q.Choice = &Choice{Options: q.Choice.Options}
		}
		if q.TrueFalse != nil {
			q.TrueFalse = &TrueFalse{}
		}
		questions[i] = q
	}
	qz.Questions = questions
	return qz
}

type NewQuiz struct {
	ClassID          string     `json:"class_id" validate:"required"`
	Title            string     `json:"title" validate:"required,max=200"`
	Description      string     `json:"description" validate:"max=2000"`
	TimeLimitMinutes int        `json:"time_limit_minutes" validate:"min=0"`
	PassingScore     int        `json:"passing_score" validate:"min=0,max=100"`
	MaxAttempts      int        `json:"max_attempts" validate:"min=0"`
	Questions        []Question `json:"questions" validate:"required,min=1,dive"`
}

// Validate cleans the input, fills the defaults and checks every question variant.
func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	if nq.PassingScore == 0 {
		nq.PassingScore = DefaultPassingScore
	}
	if nq.MaxAttempts == 0 {
		nq.MaxAttempts = DefaultMaxAttempts
	}
	for i := range nq.Questions {
		nq.Questions[i].Text = core.CleanString(nq.Questions[i].Text)
		if nq.Questions[i].ID == "" {
			nq.Questions[i].ID = fmt.Sprintf("q%d", i+1)
		}
	}
	if err := validate.Struct(nq); err != nil {
		return err
	}

	var flds []core.FieldError
	seen := make(map[string]bool, len(nq.Questions))
	for i := range nq.Questions {
		q := &nq.Questions[i]
		field := fmt.Sprintf("questions[%d]", i)
		if seen[q.ID] {
			flds = append(flds, core.FieldError{Field: field + ".id", Error: "duplicate question id"})
			continue
		}
		seen[q.ID] = true
		if err := q.checkVariant(); err != nil {
			flds = append(flds, core.FieldError{Field: field, Error: err.Error()})
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid questions"), flds...)
	}
	return nil
}

type QueryFilter struct {
	ClassID string `query:"class_id"`
}

func (qf QueryFilter) match(qz Quiz) bool {
	return qf.ClassID == "" || qz.ClassID == qf.ClassID
}

// Answer is the answer to one question: Choices for choice questions, Value for true/false,
// Text for open questions and AudioDataURL for recitations.
type Answer struct {
	Choices      []int  `json:"choices,omitempty"`
	Value        *bool  `json:"value,omitempty"`
	Text         string `json:"text,omitempty"`
	AudioDataURL string `json:"audio_data_url,omitempty"`
}

// given reports whether the answer holds something for a question of type t.
func (a Answer) given(t QuestionType) bool {
	switch t {
	case TypeSingleChoice, TypeMultiChoice:
		return len(a.Choices) > 0
	case TypeTrueFalse:
		return a.Value != nil
	case TypeOpen:
		return core.CleanString(a.Text) != ""
	case TypeRecitation:
		return a.AudioDataURL != ""
	}
	return false
}

type AttemptStatus string

const (
	StatusGraded        AttemptStatus = "GRADED"
	StatusPendingReview AttemptStatus = "PENDING_REVIEW"
)

type Attempt struct {
	ID              string            `json:"id"`
	QuizID          string            `json:"quiz_id"`
	UserID          string            `json:"user_id"`
	Answers         map[string]Answer `json:"answers"`
	Points          map[string]int    `json:"points"`         // question id -> points awarded
	PendingReview   []string          `json:"pending_review"` // question ids left to the teacher
	TotalPoints     int               `json:"total_points"`
	Score           int               `json:"score"` // percent
	Passed          bool              `json:"passed"`
	Status          AttemptStatus     `json:"status"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     time.Time         `json:"completed_at"`
	TeacherFeedback string            `json:"teacher_feedback,omitempty"`
	ReviewedAt      *time.Time        `json:"reviewed_at,omitempty"`
}

type Submission struct {
	Answers   map[string]Answer `json:"answers"`
	StartedAt time.Time         `json:"started_at"`
}

// Review is the teacher's grading of an attempt: points per question id and a feedback.
type Review struct {
	Points   map[string]int `json:"points"`
	Feedback string         `json:"feedback" validate:"max=2000"`
}

type AttemptFilter struct {
	QuizID string `query:"quiz_id"`
	UserID string `query:"user_id"`
	Status AttemptStatus
}

func (af AttemptFilter) match(a Attempt) bool {
	if af.QuizID != "" && a.QuizID != af.QuizID {
		return false
	}
	if af.UserID != "" && a.UserID != af.UserID {
		return false
	}
	if af.Status != "" && a.Status != af.Status {
		return false
	}
	return true
}
