// Package report computes the read-only views built from several collections.
package report

import (
	"context"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/content"
	"github.com/quransn/academy/core/enrollment"
	"github.com/quransn/academy/core/live"
	"github.com/quransn/academy/core/quiz"
	"github.com/quransn/academy/core/user"
)

// MaxSearchResults bounds the result of Search.
const MaxSearchResults = 10

type Stats struct {
	TotalStudents      int                  `json:"total_students"`
	TotalClasses       int                  `json:"total_classes"`
	PendingEnrollments int                  `json:"pending_enrollments"`
	TotalContent       int                  `json:"total_content"`
	ContentByType      map[content.Type]int `json:"content_by_type"`
	TotalQuizzes       int                  `json:"total_quizzes"`
	TotalLives         int                  `json:"total_lives"`
}

type ResultType string

const (
	ResultClass   ResultType = "Class"
	ResultContent ResultType = "Content"
	ResultStudent ResultType = "Student"
)

type SearchResult struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Subtitle string     `json:"subtitle,omitempty"`
}

type Service struct {
	db core.DB
}

func NewService(db core.DB) *Service {
	return &Service{db: db}
}

// Stats counts the platform's records, scanning every collection in a single snapshot.
func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ContentByType: make(map[content.Type]int, len(content.Types))}
	for _, t := range content.Types {
		st.ContentByType[t] = 0
	}

	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		if st.TotalStudents, err = core.CountRecords(tx, user.Collection, func(u user.User) bool { return u.IsStudent() }); err != nil {
			return err
		}
		if st.TotalClasses, err = core.CountRecords[class.Class](tx, class.Collection, nil); err != nil {
			return err
		}
		if st.PendingEnrollments, err = core.CountRecords(tx, enrollment.Collection, func(e enrollment.Enrollment) bool {
			return e.Status == enrollment.StatusPending
		}); err != nil {
			return err
		}
		contents, err := content.List(tx, nil)
		if err != nil {
			return err
		}
		st.TotalContent = len(contents)
		for _, c := range contents {
			st.ContentByType[c.Type]++
		}
		if st.TotalQuizzes, err = core.CountRecords[quiz.Quiz](tx, quiz.Collection, nil); err != nil {
			return err
		}
		st.TotalLives, err = core.CountRecords[live.Session](tx, live.Collection, nil)
		return err
	})
	return st, err
}

// Search looks up classes and contents by name or description, ignoring case.
// Admins also find students by name. At most MaxSearchResults are returned.
func (svc *Service) Search(ctx context.Context, query string, viewer user.User) ([]SearchResult, error) {
	query = core.CleanString(query)
	results := make([]SearchResult, 0, MaxSearchResults)
	if query == "" {
		return results, nil
	}

	full := func() bool { return len(results) >= MaxSearchResults }
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		classes, err := class.List(tx, func(c class.Class) bool {
			return core.ContainsFold(c.Name, query) || core.ContainsFold(c.Description, query)
		})
		if err != nil {
			return err
		}
		for _, c := range classes {
			if full() {
				return nil
			}
			results = append(results, SearchResult{Type: ResultClass, ID: c.ID, Title: c.Name, Subtitle: c.Level})
		}

		contents, err := content.List(tx, func(c content.Content) bool {
			return core.ContainsFold(c.Title, query) || core.ContainsFold(c.Description, query)
		})
		if err != nil {
			return err
		}
		for _, c := range contents {
			if full() {
				return nil
			}
			results = append(results, SearchResult{Type: ResultContent, ID: c.ID, Title: c.Title, Subtitle: string(c.Type)})
		}

		if !viewer.IsAdmin() {
			return nil
		}
		students, err := user.List(tx, func(u user.User) bool {
			return u.IsStudent() && (core.ContainsFold(u.FirstName, query) || core.ContainsFold(u.LastName, query))
		})
		if err != nil {
			return err
		}
		for _, u := range students {
			if full() {
				return nil
			}
			results = append(results, SearchResult{Type: ResultStudent, ID: u.ID, Title: u.FullName(), Subtitle: u.Email})
		}
		return nil
	})
	return results, err
}
