package quiz

import (
	"math"
	"slices"

	"github.com/quransn/academy/core"
)

// Policy decides how the points of a question are awarded.
type Policy string

const (
	// AlwaysCredit grants the points whatever the answer.
	AlwaysCredit Policy = "always_credit"
	// OnPresence grants the points to any non-empty answer.
	OnPresence Policy = "on_presence"
	// AnswerKey compares the answer with the question key. Questions without a key go to review.
	AnswerKey Policy = "answer_key"
	// ManualReview leaves the points to the teacher.
	ManualReview Policy = "manual_review"
)

// Policies maps each question type to its grading policy.
type Policies map[QuestionType]Policy

// DefaultPolicies credits choice and true/false questions unconditionally and
// open and recitation questions on presence.
var DefaultPolicies = Policies{
	TypeSingleChoice: AlwaysCredit,
	TypeMultiChoice:  AlwaysCredit,
	TypeTrueFalse:    AlwaysCredit,
	TypeOpen:         OnPresence,
	TypeRecitation:   OnPresence,
}

func parsePolicy(s string, fallback Policy) Policy {
	switch p := Policy(s); p {
	case AlwaysCredit, OnPresence, AnswerKey, ManualReview:
		return p
	}
	return fallback
}

// PoliciesFromConfig reads the policy of each question family, unknown values keep the default.
func PoliciesFromConfig(conf core.QuizConfig) Policies {
	choice := parsePolicy(conf.ChoicePolicy, AlwaysCredit)
	return Policies{
		TypeSingleChoice: choice,
		TypeMultiChoice:  choice,
		TypeTrueFalse:    parsePolicy(conf.TrueFalsePolicy, AlwaysCredit),
		TypeOpen:         parsePolicy(conf.OpenPolicy, OnPresence),
		TypeRecitation:   parsePolicy(conf.RecitationPolicy, OnPresence),
	}
}

func (p Policies) of(t QuestionType) Policy {
	if policy, ok := p[t]; ok {
		return policy
	}
	return DefaultPolicies[t]
}

// grade awards the points of q for answer a. It reports false when the teacher has to decide.
func (p Policies) grade(q Question, a Answer) (int, bool) {
	switch p.of(q.Type) {
	case AlwaysCredit:
		return q.Points, true
	case OnPresence:
		if a.given(q.Type) {
			return q.Points, true
		}
		return 0, true
	case AnswerKey:
		if !q.hasKey() {
			return 0, false
		}
		if matchesKey(q, a) {
			return q.Points, true
		}
		return 0, true
	}
	return 0, false
}

func matchesKey(q Question, a Answer) bool {
	switch q.Type {
	case TypeSingleChoice, TypeMultiChoice:
		got := slices.Clone(a.Choices)
		want := slices.Clone(q.Choice.Correct)
		slices.Sort(got)
		slices.Sort(want)
		return slices.Equal(slices.Compact(got), slices.Compact(want))
	case TypeTrueFalse:
		return a.Value != nil && *a.Value == *q.TrueFalse.Correct
	}
	return false
}

// scorePercent is the rounded percentage of points earned, 100 for a quiz worth no points.
func scorePercent(points, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(points) * 100 / float64(total)))
}

// gradeAttempt fills the points, score and status of a from the answers it holds.
func (p Policies) gradeAttempt(qz Quiz, a *Attempt) {
	a.Points = make(map[string]int, len(qz.Questions))
	a.PendingReview = []string{}
	a.TotalPoints = qz.TotalPoints()

	var earned int
	for _, q := range qz.Questions {
		pts, decided := p.grade(q, a.Answers[q.ID])
		if !decided {
			a.PendingReview = append(a.PendingReview, q.ID)
			continue
		}
		a.Points[q.ID] = pts
		earned += pts
	}
	a.Score = scorePercent(earned, a.TotalPoints)
	a.Status = StatusGraded
	a.Passed = a.Score >= qz.PassingScore
	if len(a.PendingReview) > 0 {
		a.Status = StatusPendingReview
		a.Passed = false
	}
}
