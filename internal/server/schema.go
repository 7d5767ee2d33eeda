package server

import (
	"context"
	"fmt"

	"github.com/roach88/featlog/internal/store"
)

// Server table names, in dependency order.
const (
	TableUsers             = "users"
	TableVersions          = "versions"
	TableContexts          = "contexts"
	TableSteps             = "steps"
	TableFeatures          = "features"
	TableFeatureEntries    = "feature_entries"
	TableFeatureEntrySteps = "feature_entry_steps"
	TableExceptionEntries  = "exception_entries"
	TableReplications      = "replications"
)

// Tables lists the server tables in dependency order.
var Tables = []string{
	TableUsers,
	TableVersions,
	TableContexts,
	TableSteps,
	TableFeatures,
	TableFeatureEntries,
	TableFeatureEntrySteps,
	TableExceptionEntries,
	TableReplications,
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL COLLATE FOLD UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL COLLATE FOLD UNIQUE
	)`,
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
		user_id INTEGER NOT NULL REFERENCES users(id),
		version_id INTEGER REFERENCES versions(id),
		details TEXT NOT NULL DEFAULT '',
		time_spent INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feature_entries_feature ON feature_entries(feature_id)`,
	`CREATE INDEX IF NOT EXISTS idx_feature_entries_user ON feature_entries(user_id)`,
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
		user_id INTEGER NOT NULL REFERENCES users(id),
		message TEXT NOT NULL,
		stack_trace TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS replications (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		version_id INTEGER REFERENCES versions(id),
		created_at TEXT NOT NULL,
		feature_entries INTEGER NOT NULL,
		exception_entries INTEGER NOT NULL
	)`,
}

// CreateSchema creates the server tables. Idempotent.
func CreateSchema(ctx context.Context, tc store.TxContext) error {
	for _, stmt := range schemaStatements {
		if _, err := tc.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("create server schema: %w", err)
		}
	}
	return nil
}

// DropSchema drops the server tables. Idempotent.
func DropSchema(ctx context.Context, tc store.TxContext) error {
	for i := len(Tables) - 1; i >= 0; i-- {
		if _, err := tc.Execute(ctx, "DROP TABLE IF EXISTS "+Tables[i]); err != nil {
			return fmt.Errorf("drop server schema: %w", err)
		}
	}
	return nil
}

// Stats returns the row count of every server table.
func Stats(ctx context.Context, tc store.TxContext) (map[string]int64, error) {
	return store.CountRows(ctx, tc, Tables...)
}
