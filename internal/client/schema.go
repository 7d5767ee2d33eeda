package client

import (
	"context"
	"fmt"

	"github.com/roach88/featlog/internal/store"
)

// Client table names, in dependency order.
const (
	TableContexts          = "contexts"
	TableSteps             = "steps"
	TableFeatures          = "features"
	TableFeatureEntries    = "feature_entries"
	TableFeatureEntrySteps = "feature_entry_steps"
	TableExceptionEntries  = "exception_entries"
)

// Tables lists the client tables in dependency order.
var Tables = []string{
	TableContexts,
	TableSteps,
	TableFeatures,
	TableFeatureEntries,
	TableFeatureEntrySteps,
	TableExceptionEntries,
}

// schemaStatements create the client tables. Name columns use the FOLD
// collation so the UNIQUE constraints agree with the in-memory cache.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS contexts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL COLLATE FOLD UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL COLLATE FOLD UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS features (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL COLLATE FOLD,
		context_id INTEGER NOT NULL REFERENCES contexts(id),
		UNIQUE (context_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS feature_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		feature_id INTEGER NOT NULL REFERENCES features(id),
		details TEXT NOT NULL DEFAULT '',
		time_spent INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feature_entries_feature ON feature_entries(feature_id)`,
	`CREATE TABLE IF NOT EXISTS feature_entry_steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		feature_entry_id INTEGER NOT NULL REFERENCES feature_entries(id),
		step_id INTEGER NOT NULL REFERENCES steps(id),
		time_spent INTEGER NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		level INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feature_entry_steps_entry ON feature_entry_steps(feature_entry_id)`,
	`CREATE TABLE IF NOT EXISTS exception_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		feature_id INTEGER NOT NULL REFERENCES features(id),
		message TEXT NOT NULL,
		stack_trace TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
}

// CreateSchema creates the client tables. Idempotent.
func (m *Manager) CreateSchema(ctx context.Context, tc store.TxContext) error {
	for _, stmt := range schemaStatements {
		if _, err := tc.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("create client schema: %w", err)
		}
	}
	return nil
}

// DropSchema drops the client tables and invalidates the cache once the
// transaction commits. Idempotent.
func (m *Manager) DropSchema(ctx context.Context, tc store.TxContext) error {
	for i := len(Tables) - 1; i >= 0; i-- {
		if _, err := tc.Execute(ctx, "DROP TABLE IF EXISTS "+Tables[i]); err != nil {
			return fmt.Errorf("drop client schema: %w", err)
		}
	}
	tc.OnCommit(m.Invalidate)
	return nil
}
