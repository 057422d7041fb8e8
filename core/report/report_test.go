package report_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/content"
	"github.com/quransn/academy/core/enrollment"
	"github.com/quransn/academy/core/live"
	"github.com/quransn/academy/core/report"
	"github.com/quransn/academy/core/user"
	testutil "github.com/quransn/academy/tests"
)

func put(t *testing.T, db core.DB, collection, id string, v interface{}) {
	err := db.Update(context.Background(), func(tx core.DBTx) error {
		return core.PutRecord(tx, collection, id, v)
	})
	require.NoError(t, err)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	svc := report.NewService(db)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.Stats{ContentByType: map[content.Type]int{
		content.TypeVideo: 0, content.TypeAudio: 0, content.TypeDocument: 0,
	}}, st)

	testutil.CreateUser(t, db, "awa", "")
	testutil.CreateUser(t, db, "bamba", "")
	testutil.CreateUser(t, db, "admin", "", testutil.WithRole(user.RoleAdmin))
	put(t, db, class.Collection, "c1", class.Class{ID: "c1", Name: "Tajwid"})
	put(t, db, enrollment.Collection, "e1", enrollment.Enrollment{ID: "e1", Status: enrollment.StatusPending})
	put(t, db, enrollment.Collection, "e2", enrollment.Enrollment{ID: "e2", Status: enrollment.StatusApproved})
	put(t, db, content.Collection, "v1", content.Content{ID: "v1", Type: content.TypeVideo})
	put(t, db, content.Collection, "a1", content.Content{ID: "a1", Type: content.TypeAudio})
	put(t, db, content.Collection, "a2", content.Content{ID: "a2", Type: content.TypeAudio})
	put(t, db, live.Collection, "l1", live.Session{ID: "l1"})

	st, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalStudents)
	assert.Equal(t, 1, st.TotalClasses)
	assert.Equal(t, 1, st.PendingEnrollments)
	assert.Equal(t, 3, st.TotalContent)
	assert.Equal(t, map[content.Type]int{content.TypeVideo: 1, content.TypeAudio: 2, content.TypeDocument: 0}, st.ContentByType)
	assert.Zero(t, st.TotalQuizzes)
	assert.Equal(t, 1, st.TotalLives)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	svc := report.NewService(db)

	admin := testutil.CreateUser(t, db, "admin", "", testutil.WithRole(user.RoleAdmin))
	student := testutil.CreateUser(t, db, "Tajwidi", "")
	put(t, db, class.Collection, "c1", class.Class{ID: "c1", Name: "Tajwid débutant"})
	put(t, db, class.Collection, "c2", class.Class{ID: "c2", Name: "Hifz", Description: "Mémorisation et TAJWID"})
	put(t, db, content.Collection, "k1", content.Content{ID: "k1", Title: "Règles de tajwid", Type: content.TypeDocument})
	put(t, db, content.Collection, "k2", content.Content{ID: "k2", Title: "Fiqh"})

	tests := []struct {
		name   string
		query  string
		viewer user.User
		want   []string
	}{
		{"student", "tajwid", student, []string{"c1", "c2", "k1"}},
		{"admin also finds students", " TAJWID ", admin, []string{"c1", "c2", "k1", student.ID}},
		{"admins are not students", "admin", admin, []string{}},
		{"blank", "  ", admin, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := svc.Search(ctx, tt.query, tt.viewer)
			require.NoError(t, err)
			ids := make([]string, 0, len(results))
			for _, r := range results {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	t.Run("at most 10 results", func(t *testing.T) {
		for i := 0; i < 12; i++ {
			id := fmt.Sprintf("z%02d", i)
			put(t, db, class.Collection, id, class.Class{ID: id, Name: "Tajwid " + id})
		}
		results, err := svc.Search(ctx, "tajwid", admin)
		require.NoError(t, err)
		assert.Len(t, results, report.MaxSearchResults)
		assert.Equal(t, report.ResultClass, results[9].Type)
	})
}
