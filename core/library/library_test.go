package library_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/library"
	testutil "github.com/quransn/academy/tests"
)

func TestLibrary(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	svc := library.NewService(env.DB, env.Validate)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)

	seed := func() int {
		var n int
		err := env.DB.Update(ctx, func(tx core.DBTx) error {
			var err error
			n, err = library.Seed(tx)
			return err
		})
		require.NoError(t, err)
		return n
	}
	assert.Equal(t, 4, seed())
	assert.Zero(t, seed(), "seeded once")

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"r1", "r2", "r3", "r4"}, []string{all[0].ID, all[1].ID, all[2].ID, all[3].ID})

	testutil.FreezeTime(t, now.Add(time.Hour))
	r, err := svc.Create(ctx, library.NewResource{Title: "Ayat al-Kursi", Category: library.CategoryDua, Content: "Allahu la ilaha illa huwa..."})
	require.NoError(t, err)

	duas, err := svc.List(ctx, library.CategoryDua)
	require.NoError(t, err)
	require.Len(t, duas, 2)
	assert.Equal(t, "r3", duas[0].ID)
	assert.Equal(t, r.ID, duas[1].ID)

	tests := []struct {
		name string
		nr   library.NewResource
	}{
		{"missing title", library.NewResource{Category: library.CategoryDua, Content: "x"}},
		{"unknown category", library.NewResource{Title: "x", Category: "FIQH", Content: "x"}},
		{"missing content", library.NewResource{Title: "x", Category: library.CategoryDua}},
		{"bad media url", library.NewResource{Title: "x", Category: library.CategoryDua, Content: "x", MediaURL: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.nr)
			assert.Error(t, err)
		})
	}

	require.NoError(t, svc.Delete(ctx, "r1"))
	assert.Equal(t, library.ErrNotFound, svc.Delete(ctx, "r1"))
}
