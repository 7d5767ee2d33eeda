package client

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/featlog/internal/feature"
	"github.com/roach88/featlog/internal/store"
	"github.com/roach88/featlog/internal/testutil"
)

// createTestStore opens a client store with the schema applied.
func createTestStore(t *testing.T) (*store.Store, *Manager) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	m := NewManager()
	require.NoError(t, s.InTx(context.Background(), func(tc store.TxContext) error {
		return m.CreateSchema(context.Background(), tc)
	}))
	return s, m
}

func entry(contextName, name string, steps ...string) feature.Entry {
	e := feature.Entry{
		Context:   contextName,
		Name:      name,
		Details:   "details",
		TimeSpent: 120 * time.Millisecond,
		CreatedAt: testutil.Epoch,
	}
	for _, s := range steps {
		e.Steps = append(e.Steps, feature.StepEntry{Name: s, TimeSpent: 10 * time.Millisecond})
	}
	return e
}

func saveFeature(t *testing.T, s *store.Store, m *Manager, e feature.Entry) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tc store.TxContext) error {
		return m.SaveFeature(ctx, tc, e)
	}))
}

func counts(t *testing.T, s *store.Store) map[string]int64 {
	t.Helper()
	var out map[string]int64
	require.NoError(t, s.InTx(context.Background(), func(tc store.TxContext) error {
		var err error
		out, err = Stats(context.Background(), tc)
		return err
	}))
	return out
}

func TestSaveFeature_CreatesDimensionsAndFacts(t *testing.T) {
	s, m := createTestStore(t)

	saveFeature(t, s, m, entry("Agenda", "Load", "query", "render"))

	c := counts(t, s)
	assert.Equal(t, int64(1), c[TableContexts])
	assert.Equal(t, int64(1), c[TableFeatures])
	assert.Equal(t, int64(2), c[TableSteps])
	assert.Equal(t, int64(1), c[TableFeatureEntries])
	assert.Equal(t, int64(2), c[TableFeatureEntrySteps])

	var details string
	var spent int64
	var createdAt string
	require.NoError(t, s.DB().QueryRow(`SELECT details, time_spent, created_at FROM feature_entries`).
		Scan(&details, &spent, &createdAt))
	assert.Equal(t, "details", details)
	assert.Equal(t, int64(120), spent)
	assert.Equal(t, "2024-03-01T09:00:00Z", createdAt)
}

func TestSaveFeature_ZeroSteps(t *testing.T) {
	s, m := createTestStore(t)

	saveFeature(t, s, m, entry("Agenda", "Load"))

	c := counts(t, s)
	assert.Equal(t, int64(1), c[TableFeatureEntries])
	assert.Equal(t, int64(0), c[TableFeatureEntrySteps])
	assert.Equal(t, int64(0), c[TableSteps])
}

func TestSaveFeature_StepNameReusedAcrossSaves(t *testing.T) {
	s, m := createTestStore(t)

	saveFeature(t, s, m, entry("Agenda", "Load", "query"))
	saveFeature(t, s, m, entry("Login", "Submit", "query", "QUERY"))

	c := counts(t, s)
	assert.Equal(t, int64(1), c[TableSteps], "one global step row per folded name")
	assert.Equal(t, int64(3), c[TableFeatureEntrySteps], "one fact row per recorded step")
}

func TestSaveFeature_ContextIsCaseInsensitive(t *testing.T) {
	s, m := createTestStore(t)

	saveFeature(t, s, m, entry("Login", "Submit"))
	saveFeature(t, s, m, entry("LOGIN", "submit"))

	c := counts(t, s)
	assert.Equal(t, int64(1), c[TableContexts])
	assert.Equal(t, int64(1), c[TableFeatures])
	assert.Equal(t, int64(2), c[TableFeatureEntries])
}

func TestSaveFeature_SameFeatureNameInDifferentContexts(t *testing.T) {
	s, m := createTestStore(t)

	saveFeature(t, s, m, entry("Agenda", "Load"))
	saveFeature(t, s, m, entry("Login", "Load"))

	c := counts(t, s)
	assert.Equal(t, int64(2), c[TableContexts])
	assert.Equal(t, int64(2), c[TableFeatures])
}

func TestSaveFeature_WithoutLoadFindsExistingRows(t *testing.T) {
	s, m := createTestStore(t)
	saveFeature(t, s, m, entry("Agenda", "Load", "query"))

	// A second session starts with a cold cache.
	fresh := NewManager()
	saveFeature(t, s, fresh, entry("agenda", "LOAD", "Query"))

	c := counts(t, s)
	assert.Equal(t, int64(1), c[TableContexts])
	assert.Equal(t, int64(1), c[TableFeatures])
	assert.Equal(t, int64(1), c[TableSteps])
	assert.Equal(t, int64(2), c[TableFeatureEntries])
}

func TestSaveFeature_SameTransactionSeesEarlierInserts(t *testing.T) {
	s, m := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(tc store.TxContext) error {
		if err := m.SaveFeature(ctx, tc, entry("Agenda", "Load", "query")); err != nil {
			return err
		}
		return m.SaveFeature(ctx, tc, entry("Agenda", "Load", "query"))
	}))

	c := counts(t, s)
	assert.Equal(t, int64(1), c[TableContexts])
	assert.Equal(t, int64(1), c[TableSteps])
	assert.Equal(t, int64(2), c[TableFeatureEntries])
}

func TestSaveFeature_RollbackLeavesCacheUntouched(t *testing.T) {
	s, m := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tc store.TxContext) error {
		if err := m.SaveFeature(ctx, tc, entry("Agenda", "Load", "query")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok := m.Cache().Context("Agenda")
	assert.False(t, ok, "rolled-back context must not be cached")
	_, ok = m.Cache().Step("query")
	assert.False(t, ok, "rolled-back step must not be cached")

	// The next save recreates the rows instead of referencing stale ids.
	saveFeature(t, s, m, entry("Agenda", "Load", "query"))
	c := counts(t, s)
	assert.Equal(t, int64(1), c[TableContexts])
	assert.Equal(t, int64(1), c[TableFeatureEntries])
}

func TestSaveFeature_CommitPopulatesCache(t *testing.T) {
	s, m := createTestStore(t)

	saveFeature(t, s, m, entry("Agenda", "Load", "query"))

	c, ok := m.Cache().Context("AGENDA")
	require.True(t, ok)
	f, ok := m.Cache().Feature(c.ID, "load")
	require.True(t, ok)
	assert.Equal(t, "Load", f.Name)
	_, ok = m.Cache().Step("Query")
	assert.True(t, ok)
}

func TestSaveFeature_EmptyNameRejected(t *testing.T) {
	s, m := createTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tc store.TxContext) error {
		return m.SaveFeature(ctx, tc, entry(" ", "Load"))
	})
	assert.ErrorIs(t, err, ErrEmptyName)

	err = s.InTx(ctx, func(tc store.TxContext) error {
		return m.SaveFeature(ctx, tc, entry("Agenda", "Load", ""))
	})
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.Equal(t, int64(0), counts(t, s)[TableFeatureEntries])
}

func TestSaveException(t *testing.T) {
	s, m := createTestStore(t)
	ctx := context.Background()
	saveFeature(t, s, m, entry("Agenda", "Load"))

	require.NoError(t, s.InTx(ctx, func(tc store.TxContext) error {
		return m.SaveException(ctx, tc, feature.Failure{
			Context:    "agenda",
			Name:       "load",
			Message:    "timeout",
			StackTrace: "trace",
			CreatedAt:  testutil.Epoch,
		})
	}))

	c := counts(t, s)
	assert.Equal(t, int64(1), c[TableContexts])
	assert.Equal(t, int64(1), c[TableFeatures])
	assert.Equal(t, int64(1), c[TableExceptionEntries])
}

func TestLoad_PopulatesCache(t *testing.T) {
	s, m := createTestStore(t)
	ctx := context.Background()
	saveFeature(t, s, m, entry("Agenda", "Load", "query"))
	saveFeature(t, s, m, entry("Login", "Submit", "validate"))

	fresh := NewManager()
	assert.False(t, fresh.Cache().Loaded())
	require.NoError(t, s.InTx(ctx, func(tc store.TxContext) error {
		return fresh.Load(ctx, tc)
	}))

	assert.True(t, fresh.Cache().Loaded())
	contexts, steps, features := fresh.Cache().Len()
	assert.Equal(t, 2, contexts)
	assert.Equal(t, 2, steps)
	assert.Equal(t, 2, features)

	fresh.Invalidate()
	assert.False(t, fresh.Cache().Loaded())
	contexts, _, _ = fresh.Cache().Len()
	assert.Equal(t, 0, contexts)
}

func TestSchema_CreateAndDropAreIdempotent(t *testing.T) {
	s, m := createTestStore(t)
	ctx := context.Background()
	saveFeature(t, s, m, entry("Agenda", "Load"))

	require.NoError(t, s.InTx(ctx, func(tc store.TxContext) error {
		return m.CreateSchema(ctx, tc)
	}))
	assert.Equal(t, int64(1), counts(t, s)[TableFeatureEntries], "re-create keeps data")

	for i := 0; i < 2; i++ {
		require.NoError(t, s.InTx(ctx, func(tc store.TxContext) error {
			return m.DropSchema(ctx, tc)
		}))
	}
	_, ok := m.Cache().Context("Agenda")
	assert.False(t, ok, "drop invalidates the cache")

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`).Scan(&n))
	assert.Equal(t, 0, n)
}
