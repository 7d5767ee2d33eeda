package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/featlog/internal/feature"
	"github.com/roach88/featlog/internal/model"
	"github.com/roach88/featlog/internal/store"
	"github.com/roach88/featlog/internal/testutil"
)

func TestReadSnapshot(t *testing.T) {
	s, m := createTestStore(t)
	ctx := context.Background()

	e := entry("Agenda", "Load")
	e.Steps = []feature.StepEntry{
		{Name: "parse", TimeSpent: 5 * time.Millisecond, Details: "3 items", Level: 1, IsChild: true},
		{Name: "load", TimeSpent: 15 * time.Millisecond, HasChildren: true},
	}
	saveFeature(t, s, m, e)
	require.NoError(t, s.InTx(ctx, func(tc store.TxContext) error {
		return m.SaveException(ctx, tc, feature.Failure{
			Context: "Login", Name: "Submit", Message: "denied", StackTrace: "trace", CreatedAt: testutil.Epoch,
		})
	}))

	var snap *model.Snapshot
	require.NoError(t, s.InTx(ctx, func(tc store.TxContext) error {
		var err error
		snap, err = ReadSnapshot(ctx, tc)
		return err
	}))

	require.Len(t, snap.Contexts, 2)
	assert.Equal(t, "Agenda", snap.Contexts[0].Name)
	require.Len(t, snap.Features, 2)
	assert.Equal(t, snap.Contexts[1].ID, snap.Features[1].ContextID)
	require.Len(t, snap.Steps, 2)

	require.Len(t, snap.FeatureEntries, 1)
	fe := snap.FeatureEntries[0]
	assert.Equal(t, snap.Features[0].ID, fe.FeatureID)
	assert.Equal(t, 120*time.Millisecond, fe.TimeSpent)
	assert.True(t, fe.CreatedAt.Equal(testutil.Epoch))

	require.Len(t, snap.FeatureEntrySteps, 2)
	assert.Equal(t, fe.ID, snap.FeatureEntrySteps[0].FeatureEntryID)
	assert.Equal(t, 1, snap.FeatureEntrySteps[0].Level)
	assert.Equal(t, "3 items", snap.FeatureEntrySteps[0].Details)
	assert.Equal(t, 5*time.Millisecond, snap.FeatureEntrySteps[0].TimeSpent)

	require.Len(t, snap.ExceptionEntries, 1)
	assert.Equal(t, "denied", snap.ExceptionEntries[0].Message)
	assert.Equal(t, snap.Features[1].ID, snap.ExceptionEntries[0].FeatureID)
}

func TestTruncate_KeepsDimensions(t *testing.T) {
	s, m := createTestStore(t)
	ctx := context.Background()
	saveFeature(t, s, m, entry("Agenda", "Load", "query"))
	saveFeature(t, s, m, entry("Agenda", "Load", "query"))

	var res TruncateResult
	require.NoError(t, s.InTx(ctx, func(tc store.TxContext) error {
		var err error
		res, err = Truncate(ctx, tc)
		return err
	}))

	assert.Equal(t, TruncateResult{FeatureEntries: 2, FeatureEntrySteps: 2}, res)
	c := counts(t, s)
	assert.Equal(t, int64(0), c[TableFeatureEntries])
	assert.Equal(t, int64(0), c[TableFeatureEntrySteps])
	assert.Equal(t, int64(1), c[TableContexts])
	assert.Equal(t, int64(1), c[TableSteps])
}
