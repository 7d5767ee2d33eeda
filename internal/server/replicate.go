package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/featlog/internal/client"
	"github.com/roach88/featlog/internal/model"
	"github.com/roach88/featlog/internal/store"
)

// Result summarizes one replication run.
type Result struct {
	RunID     string `json:"run_id"`
	UserID    int64  `json:"user_id"`
	VersionID int64  `json:"version_id,omitempty"`

	// Dimension rows inserted by this run.
	UsersCreated    int `json:"users_created"`
	ContextsCreated int `json:"contexts_created"`
	StepsCreated    int `json:"steps_created"`
	FeaturesCreated int `json:"features_created"`

	// Fact rows copied by this run.
	FeatureEntries    int `json:"feature_entries"`
	FeatureEntrySteps int `json:"feature_entry_steps"`
	ExceptionEntries  int `json:"exception_entries"`
}

// Replicator merges client snapshots into a server store.
//
// Dimension rows are matched by folded name (features by server context
// and folded name) and created when missing. Fact rows are always
// appended: replicating the same snapshot twice doubles the facts, so
// callers must hand each snapshot over at most once.
//
// Replicator holds no state between runs. Concurrent runs against one
// server store may race on first insert of a shared name; callers
// serialize them.
type Replicator struct {
	version string
	ids     RunIDGenerator
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Replicator.
type Option func(*Replicator)

// WithVersion stamps replicated feature entries with the named version.
// Without it version_id is left NULL.
func WithVersion(name string) Option {
	return func(r *Replicator) { r.version = name }
}

// WithRunIDs sets the run id generator. Defaults to UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(r *Replicator) { r.ids = g }
}

// WithNow sets the clock for ledger timestamps. Defaults to time.Now.
func WithNow(now func() time.Time) Option {
	return func(r *Replicator) { r.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Replicator) { r.logger = l }
}

// NewReplicator creates a Replicator.
func NewReplicator(opts ...Option) *Replicator {
	r := &Replicator{
		ids:    UUIDv7Generator{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Replicate reads the full client store through clientTx and merges it
// into the server store through serverTx on behalf of userName.
//
// Nothing is committed here: the caller completes serverTx on success and
// closes it (rolling back) on error, so a failed run leaves no partial
// rows behind.
func (r *Replicator) Replicate(ctx context.Context, serverTx, clientTx store.TxContext, userName string) (Result, error) {
	snap, err := client.ReadSnapshot(ctx, clientTx)
	if err != nil {
		return Result{}, fmt.Errorf("replicate: %w", err)
	}
	return r.ReplicateSnapshot(ctx, serverTx, snap, userName)
}

// ReplicateSnapshot merges an already materialized snapshot. The stages
// run in a fixed order because each consumes the id map of the previous:
// user, contexts, steps, features, feature entries, feature entry steps,
// exception entries.
func (r *Replicator) ReplicateSnapshot(ctx context.Context, tc store.TxContext, snap *model.Snapshot, userName string) (Result, error) {
	if strings.TrimSpace(userName) == "" {
		return Result{}, ErrEmptyUser
	}
	if snap == nil {
		return Result{}, ErrNilSnapshot
	}
	if err := validateSnapshot(snap); err != nil {
		return Result{}, fmt.Errorf("replicate: %w", err)
	}

	res := Result{RunID: r.ids.Generate()}
	log := r.logger.With("run_id", res.RunID)

	idx, err := loadDimensionIndex(ctx, tc)
	if err != nil {
		return Result{}, fmt.Errorf("replicate: %w", err)
	}

	// 1. user (and version)
	userID, created, err := findOrCreateName(ctx, tc, TableUsers, userName)
	if err != nil {
		return Result{}, fmt.Errorf("replicate: %w", err)
	}
	res.UserID = userID
	if created {
		res.UsersCreated++
	}

	var versionID sql.NullInt64
	if r.version != "" {
		id, _, err := findOrCreateName(ctx, tc, TableVersions, r.version)
		if err != nil {
			return Result{}, fmt.Errorf("replicate: %w", err)
		}
		versionID = sql.NullInt64{Int64: id, Valid: true}
		res.VersionID = id
	}

	// 2. contextMap
	contextMap := make(map[int64]int64, len(snap.Contexts))
	for _, c := range snap.Contexts {
		id, created, err := idx.contextID(ctx, tc, c.Name)
		if err != nil {
			return Result{}, fmt.Errorf("replicate: %w", err)
		}
		contextMap[c.ID] = id
		if created {
			res.ContextsCreated++
		}
	}
	log.Debug("contexts mapped", "count", len(contextMap), "created", res.ContextsCreated)

	// 3. stepMap
	stepMap := make(map[int64]int64, len(snap.Steps))
	for _, s := range snap.Steps {
		id, created, err := idx.stepID(ctx, tc, s.Name)
		if err != nil {
			return Result{}, fmt.Errorf("replicate: %w", err)
		}
		stepMap[s.ID] = id
		if created {
			res.StepsCreated++
		}
	}
	log.Debug("steps mapped", "count", len(stepMap), "created", res.StepsCreated)

	// 4. featureMap, keyed by the server context id
	featureMap := make(map[int64]int64, len(snap.Features))
	for _, f := range snap.Features {
		serverContextID, err := resolve(contextMap, TableFeatures, f.ID, "context_id", f.ContextID)
		if err != nil {
			return Result{}, fmt.Errorf("replicate: %w", err)
		}
		id, created, err := idx.featureID(ctx, tc, serverContextID, f.Name)
		if err != nil {
			return Result{}, fmt.Errorf("replicate: %w", err)
		}
		featureMap[f.ID] = id
		if created {
			res.FeaturesCreated++
		}
	}
	log.Debug("features mapped", "count", len(featureMap), "created", res.FeaturesCreated)

	// 5. featureEntryMap; facts are always inserted
	entryMap := make(map[int64]int64, len(snap.FeatureEntries))
	for _, e := range snap.FeatureEntries {
		featureID, err := resolve(featureMap, TableFeatureEntries, e.ID, "feature_id", e.FeatureID)
		if err != nil {
			return Result{}, fmt.Errorf("replicate: %w", err)
		}
		id, err := tc.Insert(ctx, `
			INSERT INTO feature_entries (feature_id, user_id, version_id, details, time_spent, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, featureID, userID, versionID, e.Details, model.Millis(e.TimeSpent), model.FormatTime(e.CreatedAt))
		if err != nil {
			return Result{}, fmt.Errorf("replicate: insert feature entry %d: %w", e.ID, err)
		}
		entryMap[e.ID] = id
	}
	res.FeatureEntries = len(entryMap)

	// 6. feature entry steps
	for _, s := range snap.FeatureEntrySteps {
		entryID, err := resolve(entryMap, TableFeatureEntrySteps, s.ID, "feature_entry_id", s.FeatureEntryID)
		if err != nil {
			return Result{}, fmt.Errorf("replicate: %w", err)
		}
		stepID, err := resolve(stepMap, TableFeatureEntrySteps, s.ID, "step_id", s.StepID)
		if err != nil {
			return Result{}, fmt.Errorf("replicate: %w", err)
		}
		_, err = tc.Execute(ctx, `
			INSERT INTO feature_entry_steps (feature_entry_id, step_id, time_spent, details, level)
			VALUES (?, ?, ?, ?, ?)
		`, entryID, stepID, model.Millis(s.TimeSpent), s.Details, s.Level)
		if err != nil {
			return Result{}, fmt.Errorf("replicate: insert feature entry step %d: %w", s.ID, err)
		}
		res.FeatureEntrySteps++
	}

	// 7. exception entries
	for _, e := range snap.ExceptionEntries {
		featureID, err := resolve(featureMap, TableExceptionEntries, e.ID, "feature_id", e.FeatureID)
		if err != nil {
			return Result{}, fmt.Errorf("replicate: %w", err)
		}
		_, err = tc.Execute(ctx, `
			INSERT INTO exception_entries (feature_id, user_id, message, stack_trace, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, featureID, userID, e.Message, e.StackTrace, model.FormatTime(e.CreatedAt))
		if err != nil {
			return Result{}, fmt.Errorf("replicate: insert exception entry %d: %w", e.ID, err)
		}
		res.ExceptionEntries++
	}

	_, err = tc.Execute(ctx, `
		INSERT INTO replications (id, user_id, version_id, created_at, feature_entries, exception_entries)
		VALUES (?, ?, ?, ?, ?, ?)
	`, res.RunID, userID, versionID, model.FormatTime(r.now()), res.FeatureEntries, res.ExceptionEntries)
	if err != nil {
		return Result{}, fmt.Errorf("replicate: record run: %w", err)
	}

	log.Info("snapshot replicated",
		"user", userName,
		"contexts_created", res.ContextsCreated,
		"steps_created", res.StepsCreated,
		"features_created", res.FeaturesCreated,
		"feature_entries", res.FeatureEntries,
		"feature_entry_steps", res.FeatureEntrySteps,
		"exception_entries", res.ExceptionEntries)
	return res, nil
}

func resolve(m map[int64]int64, table string, rowID int64, column string, clientID int64) (int64, error) {
	id, ok := m[clientID]
	if !ok {
		return 0, notFound(table, rowID, column, clientID)
	}
	return id, nil
}

// validateSnapshot checks every reference of the snapshot before anything
// is written.
func validateSnapshot(snap *model.Snapshot) error {
	contexts := make(map[int64]bool, len(snap.Contexts))
	for _, c := range snap.Contexts {
		contexts[c.ID] = true
	}
	steps := make(map[int64]bool, len(snap.Steps))
	for _, s := range snap.Steps {
		steps[s.ID] = true
	}
	features := make(map[int64]bool, len(snap.Features))
	for _, f := range snap.Features {
		if !contexts[f.ContextID] {
			return notFound(TableFeatures, f.ID, "context_id", f.ContextID)
		}
		features[f.ID] = true
	}
	entries := make(map[int64]bool, len(snap.FeatureEntries))
	for _, e := range snap.FeatureEntries {
		if !features[e.FeatureID] {
			return notFound(TableFeatureEntries, e.ID, "feature_id", e.FeatureID)
		}
		entries[e.ID] = true
	}
	for _, s := range snap.FeatureEntrySteps {
		if !entries[s.FeatureEntryID] {
			return notFound(TableFeatureEntrySteps, s.ID, "feature_entry_id", s.FeatureEntryID)
		}
		if !steps[s.StepID] {
			return notFound(TableFeatureEntrySteps, s.ID, "step_id", s.StepID)
		}
	}
	for _, e := range snap.ExceptionEntries {
		if !features[e.FeatureID] {
			return notFound(TableExceptionEntries, e.ID, "feature_id", e.FeatureID)
		}
	}
	return nil
}
