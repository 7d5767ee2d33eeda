package server

import (
	"context"
	"fmt"

	"github.com/roach88/featlog/internal/model"
	"github.com/roach88/featlog/internal/store"
)

type featureKey struct {
	contextID int64
	name      string // folded
}

// dimensionIndex maps folded names to server ids for one replication run.
// It starts from the rows already in the server store and records every
// row the run inserts, so a name seen twice in one snapshot is inserted
// once.
type dimensionIndex struct {
	contexts map[string]int64
	steps    map[string]int64
	features map[featureKey]int64
}

func loadDimensionIndex(ctx context.Context, tc store.TxContext) (*dimensionIndex, error) {
	contexts, err := store.Query(ctx, tc, `SELECT id, name FROM contexts`, model.ScanContext)
	if err != nil {
		return nil, fmt.Errorf("load server contexts: %w", err)
	}
	steps, err := store.Query(ctx, tc, `SELECT id, name FROM steps`, model.ScanStep)
	if err != nil {
		return nil, fmt.Errorf("load server steps: %w", err)
	}
	features, err := store.Query(ctx, tc, `SELECT id, name, context_id FROM features`, model.ScanFeature)
	if err != nil {
		return nil, fmt.Errorf("load server features: %w", err)
	}

	idx := &dimensionIndex{
		contexts: make(map[string]int64, len(contexts)),
		steps:    make(map[string]int64, len(steps)),
		features: make(map[featureKey]int64, len(features)),
	}
	for _, c := range contexts {
		idx.contexts[store.Fold(c.Name)] = c.ID
	}
	for _, s := range steps {
		idx.steps[store.Fold(s.Name)] = s.ID
	}
	for _, f := range features {
		idx.features[featureKey{f.ContextID, store.Fold(f.Name)}] = f.ID
	}
	return idx, nil
}

// contextID returns the server id of the named context, inserting it if
// needed. created reports whether a row was inserted.
func (x *dimensionIndex) contextID(ctx context.Context, tc store.TxContext, name string) (id int64, created bool, err error) {
	key := store.Fold(name)
	if id, ok := x.contexts[key]; ok {
		return id, false, nil
	}
	id, err = tc.Insert(ctx, `INSERT INTO contexts (name) VALUES (?)`, name)
	if err != nil {
		return 0, false, fmt.Errorf("create context %q: %w", name, err)
	}
	x.contexts[key] = id
	return id, true, nil
}

func (x *dimensionIndex) stepID(ctx context.Context, tc store.TxContext, name string) (id int64, created bool, err error) {
	key := store.Fold(name)
	if id, ok := x.steps[key]; ok {
		return id, false, nil
	}
	id, err = tc.Insert(ctx, `INSERT INTO steps (name) VALUES (?)`, name)
	if err != nil {
		return 0, false, fmt.Errorf("create step %q: %w", name, err)
	}
	x.steps[key] = id
	return id, true, nil
}

// featureID is keyed by (server context id, folded name), never by name
// alone.
func (x *dimensionIndex) featureID(ctx context.Context, tc store.TxContext, contextID int64, name string) (id int64, created bool, err error) {
	key := featureKey{contextID, store.Fold(name)}
	if id, ok := x.features[key]; ok {
		return id, false, nil
	}
	id, err = tc.Insert(ctx, `INSERT INTO features (name, context_id) VALUES (?, ?)`, name, contextID)
	if err != nil {
		return 0, false, fmt.Errorf("create feature %q: %w", name, err)
	}
	x.features[key] = id
	return id, true, nil
}

// findOrCreateName resolves a single row of a (id, name) table such as
// users or versions.
func findOrCreateName(ctx context.Context, tc store.TxContext, table, name string) (id int64, created bool, err error) {
	id, ok, err := store.QueryFirst(ctx, tc, "SELECT id FROM "+table+" WHERE name = ?", store.ScanInt64, name)
	if err != nil {
		return 0, false, fmt.Errorf("find %s %q: %w", table, name, err)
	}
	if ok {
		return id, false, nil
	}
	id, err = tc.Insert(ctx, "INSERT INTO "+table+" (name) VALUES (?)", name)
	if err != nil {
		return 0, false, fmt.Errorf("create %s %q: %w", table, name, err)
	}
	return id, true, nil
}
