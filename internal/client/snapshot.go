package client

import (
	"context"
	"fmt"

	"github.com/roach88/featlog/internal/model"
	"github.com/roach88/featlog/internal/store"
)

// ReadSnapshot materializes all six client tables. Rows are ordered by id,
// so a snapshot read twice from the same store is identical.
func ReadSnapshot(ctx context.Context, tc store.TxContext) (*model.Snapshot, error) {
	var (
		snap model.Snapshot
		err  error
	)

	if snap.Contexts, err = store.Query(ctx, tc,
		`SELECT id, name FROM contexts ORDER BY id`, model.ScanContext); err != nil {
		return nil, fmt.Errorf("read snapshot: contexts: %w", err)
	}
	if snap.Steps, err = store.Query(ctx, tc,
		`SELECT id, name FROM steps ORDER BY id`, model.ScanStep); err != nil {
		return nil, fmt.Errorf("read snapshot: steps: %w", err)
	}
	if snap.Features, err = store.Query(ctx, tc,
		`SELECT id, name, context_id FROM features ORDER BY id`, model.ScanFeature); err != nil {
		return nil, fmt.Errorf("read snapshot: features: %w", err)
	}
	if snap.FeatureEntries, err = store.Query(ctx, tc, `
		SELECT id, feature_id, details, time_spent, created_at
		FROM feature_entries ORDER BY id
	`, model.ScanFeatureEntry); err != nil {
		return nil, fmt.Errorf("read snapshot: feature entries: %w", err)
	}
	if snap.FeatureEntrySteps, err = store.Query(ctx, tc, `
		SELECT id, feature_entry_id, step_id, time_spent, details, level
		FROM feature_entry_steps ORDER BY id
	`, model.ScanFeatureEntryStep); err != nil {
		return nil, fmt.Errorf("read snapshot: feature entry steps: %w", err)
	}
	if snap.ExceptionEntries, err = store.Query(ctx, tc, `
		SELECT id, feature_id, message, stack_trace, created_at
		FROM exception_entries ORDER BY id
	`, model.ScanExceptionEntry); err != nil {
		return nil, fmt.Errorf("read snapshot: exception entries: %w", err)
	}

	return &snap, nil
}

// TruncateResult reports the fact rows removed by Truncate.
type TruncateResult struct {
	FeatureEntries    int64 `json:"feature_entries"`
	FeatureEntrySteps int64 `json:"feature_entry_steps"`
	ExceptionEntries  int64 `json:"exception_entries"`
}

// Truncate deletes every fact row of the client store, keeping the
// dimension rows. It is the hand-off after a snapshot of this store was
// replicated and the server transaction committed.
func Truncate(ctx context.Context, tc store.TxContext) (TruncateResult, error) {
	var (
		res TruncateResult
		err error
	)
	if res.FeatureEntrySteps, err = tc.Execute(ctx, `DELETE FROM feature_entry_steps`); err != nil {
		return res, fmt.Errorf("truncate feature entry steps: %w", err)
	}
	if res.FeatureEntries, err = tc.Execute(ctx, `DELETE FROM feature_entries`); err != nil {
		return res, fmt.Errorf("truncate feature entries: %w", err)
	}
	if res.ExceptionEntries, err = tc.Execute(ctx, `DELETE FROM exception_entries`); err != nil {
		return res, fmt.Errorf("truncate exception entries: %w", err)
	}
	return res, nil
}

// Stats returns the row count of every client table.
func Stats(ctx context.Context, tc store.TxContext) (map[string]int64, error) {
	return store.CountRows(ctx, tc, Tables...)
}
