package class

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/user"
)

const Collection = "classes"

// Class is a group of students following the same level.
type Class struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Level       string      `json:"level"` // one of user.LevelTitles, free text allowed
	Gender      user.Gender `json:"gender"`
	Capacity    int         `json:"capacity"`
	Schedule    string      `json:"schedule,omitempty"`
	StudentIDs  []string    `json:"student_ids"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (c Class) HasStudent(id string) bool {
	for _, sid := range c.StudentIDs {
		if sid == id {
			return true
		}
	}
	return false
}

// VisibleTo reports whether students of gender g may see and join the class.
func (c Class) VisibleTo(g user.Gender) bool {
	return c.Gender == user.GenderMixed || c.Gender == g
}

func (c Class) IsFull() bool {
	return c.Capacity > 0 && len(c.StudentIDs) >= c.Capacity
}

// RequiresPremium reports whether joining the class needs a premium plan.
func (c Class) RequiresPremium() bool {
	return LevelNumber(c.Level) > 1
}

// LevelNumber extracts the number of a level label: "Niveau 3 : Intermédiaire" is 3, "Niveau X : Expert" is 10.
// Labels without a number are level 0.
func LevelNumber(label string) int {
	var digits strings.Builder
	for _, r := range label {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() > 0 {
		n, err := strconv.Atoi(digits.String())
		if err == nil {
			return n
		}
	}
	for _, word := range strings.FieldsFunc(label, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if word == "X" {
			return 10
		}
	}
	return 0
}

// NewClass contains the information needed to create or edit a class.
type NewClass struct {
	Name        string      `json:"name" validate:"required,max=120"`
	Description string      `json:"description" validate:"max=2000"`
	Level       string      `json:"level" validate:"required,max=60"`
	Gender      user.Gender `json:"gender" validate:"required,oneof=Homme Femme Mixte"`
	Capacity    int         `json:"capacity" validate:"min=0"`
	Schedule    string      `json:"schedule" validate:"max=200"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.Level = core.CleanString(nc.Level)
	nc.Schedule = core.CleanString(nc.Schedule)
	return validate.Struct(nc)
}

type QueryFilter struct {
	Search    string      `query:"search"`
	VisibleTo user.Gender `query:"-"` // set for students
	StudentID string      `query:"-"` // classes the student belongs to
}

func (qf QueryFilter) match(c Class) bool {
	if qf.VisibleTo != "" && !c.VisibleTo(qf.VisibleTo) {
		return false
	}
	if qf.StudentID != "" && !c.HasStudent(qf.StudentID) {
		return false
	}
	if s := core.CleanString(qf.Search); s != "" && !core.ContainsFold(c.Name, s) && !core.ContainsFold(c.Description, s) {
		return false
	}
	return true
}
