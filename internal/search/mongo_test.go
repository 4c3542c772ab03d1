package search_test

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/Flopsa/digital-doc/common/metrics"
	"github.com/Flopsa/digital-doc/internal/search"
	"github.com/Flopsa/digital-doc/testing/testmongo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMongoIndex(t *testing.T) {
	mc := testmongo.SetupSharedMongo(t)
	defer mc.Cleanup(t)

	ctx := context.Background()

	newIndex := func(t *testing.T) *search.MongoIndex {
		name := strings.ReplaceAll(t.Name(), "/", "_")
		t.Cleanup(func() { mc.DropDatabase(t, name) })
		idx := search.NewMongoIndex(mc.Client, name, discardLogger(), metrics.NewMock())
		require.NoError(t, idx.EnsureTextIndex(ctx, "notes", []string{"body"}))
		return idx
	}

	t.Run("query ranks and paginates", func(t *testing.T) {
		idx := newIndex(t)

		require.NoError(t, idx.Add(ctx, "notes", &note{ID: 1, Body: "fever"}))
		require.NoError(t, idx.Add(ctx, "notes", &note{ID: 2, Body: "fever fever headache"}))
		require.NoError(t, idx.Add(ctx, "notes", &note{ID: 3, Body: "broken arm"}))

		ids, total, err := idx.Query(ctx, "notes", "fever", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.ElementsMatch(t, []int64{1, 2}, ids)

		first, total, err := idx.Query(ctx, "notes", "fever", 1, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, first, 1)

		second, _, err := idx.Query(ctx, "notes", "fever", 2, 1)
		require.NoError(t, err)
		require.Len(t, second, 1)
		assert.Equal(t, ids, append(first, second...))
	})

	t.Run("zero matches", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Add(ctx, "notes", &note{ID: 1, Body: "fever"}))

		ids, total, err := idx.Query(ctx, "notes", "nonexistent", 1, 10)
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.Equal(t, 0, total)
	})

	t.Run("add replaces and remove deletes", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Add(ctx, "notes", &note{ID: 1, Body: "fever"}))
		require.NoError(t, idx.Add(ctx, "notes", &note{ID: 1, Body: "migraine"}))

		_, total, err := idx.Query(ctx, "notes", "fever", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 0, total)

		ids, _, err := idx.Query(ctx, "notes", "migraine", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, ids)

		require.NoError(t, idx.Remove(ctx, "notes", 1))
		require.NoError(t, idx.Remove(ctx, "notes", 1))

		_, total, err = idx.Query(ctx, "notes", "migraine", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 0, total)
	})

	t.Run("huge page is an empty page, not an error", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Add(ctx, "notes", &note{ID: 1, Body: "fever"}))

		ids, total, err := idx.Query(ctx, "notes", "fever", math.MaxInt, 20)
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.Equal(t, 1, total)
	})

	t.Run("changed fields rebuild the text index", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Add(ctx, "notes", &note{ID: 1, Body: "fever"}))

		require.NoError(t, idx.EnsureTextIndex(ctx, "notes", []string{"title"}))
		require.NoError(t, idx.EnsureTextIndex(ctx, "notes", []string{"title"}))

		_, total, err := idx.Query(ctx, "notes", "fever", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 0, total)

		require.NoError(t, idx.EnsureTextIndex(ctx, "notes", []string{"body"}))
		ids, _, err := idx.Query(ctx, "notes", "fever", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, ids)
	})
}
