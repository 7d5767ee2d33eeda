package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/featlog/internal/feature"
	"github.com/roach88/featlog/internal/model"
	"github.com/roach88/featlog/internal/store"
)

// ErrEmptyName is returned when a context, feature or step name is blank.
var ErrEmptyName = errors.New("dimension name must not be empty")

// Manager persists captured features into a client store.
//
// Dimension rows are found or created by folded name and cached. Every
// Save runs in the caller's transaction; rows written by a transaction are
// added to the cache only after that transaction commits, so the cache
// never holds an id the store does not have.
type Manager struct {
	cache  *Cache
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager with an empty cache.
func NewManager(opts ...Option) *Manager {
	m := &Manager{cache: NewCache(), logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Cache returns the manager's dimension cache.
func (m *Manager) Cache() *Cache {
	return m.cache
}

// Load fills the cache with every dimension row of the store. The cache is
// only replaced once all three tables were read.
func (m *Manager) Load(ctx context.Context, tc store.TxContext) error {
	contexts, err := store.Query(ctx, tc, `SELECT id, name FROM contexts ORDER BY id`, model.ScanContext)
	if err != nil {
		return fmt.Errorf("load contexts: %w", err)
	}
	steps, err := store.Query(ctx, tc, `SELECT id, name FROM steps ORDER BY id`, model.ScanStep)
	if err != nil {
		return fmt.Errorf("load steps: %w", err)
	}
	features, err := store.Query(ctx, tc, `SELECT id, name, context_id FROM features ORDER BY id`, model.ScanFeature)
	if err != nil {
		return fmt.Errorf("load features: %w", err)
	}

	m.cache.replace(contexts, steps, features)
	m.logger.Debug("client cache loaded",
		"contexts", len(contexts),
		"steps", len(steps),
		"features", len(features))
	return nil
}

// Invalidate empties the cache. The next lookups go to the store.
func (m *Manager) Invalidate() {
	m.cache.Reset()
}

// SaveFeature records one completed feature: the context and feature rows
// are found or created, a feature entry is inserted, and for each step the
// step row is found or created before its feature entry step is inserted.
func (m *Manager) SaveFeature(ctx context.Context, tc store.TxContext, e feature.Entry) error {
	f, err := m.resolveFeature(ctx, tc, e.Context, e.Name)
	if err != nil {
		return fmt.Errorf("save feature: %w", err)
	}

	entryID, err := tc.Insert(ctx, `
		INSERT INTO feature_entries (feature_id, details, time_spent, created_at)
		VALUES (?, ?, ?, ?)
	`, f.ID, e.Details, model.Millis(e.TimeSpent), model.FormatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("save feature: insert entry: %w", err)
	}

	for _, s := range e.Steps {
		step, err := m.findOrCreateStep(ctx, tc, s.Name)
		if err != nil {
			return fmt.Errorf("save feature: %w", err)
		}
		_, err = tc.Execute(ctx, `
			INSERT INTO feature_entry_steps (feature_entry_id, step_id, time_spent, details, level)
			VALUES (?, ?, ?, ?, ?)
		`, entryID, step.ID, model.Millis(s.TimeSpent), s.Details, s.Level)
		if err != nil {
			return fmt.Errorf("save feature: insert step %q: %w", s.Name, err)
		}
	}

	return nil
}

// SaveException records one failed feature attempt.
func (m *Manager) SaveException(ctx context.Context, tc store.TxContext, fl feature.Failure) error {
	f, err := m.resolveFeature(ctx, tc, fl.Context, fl.Name)
	if err != nil {
		return fmt.Errorf("save exception: %w", err)
	}

	_, err = tc.Execute(ctx, `
		INSERT INTO exception_entries (feature_id, message, stack_trace, created_at)
		VALUES (?, ?, ?, ?)
	`, f.ID, fl.Message, fl.StackTrace, model.FormatTime(fl.CreatedAt))
	if err != nil {
		return fmt.Errorf("save exception: insert entry: %w", err)
	}
	return nil
}

func (m *Manager) resolveFeature(ctx context.Context, tc store.TxContext, contextName, featureName string) (model.Feature, error) {
	c, err := m.findOrCreateContext(ctx, tc, contextName)
	if err != nil {
		return model.Feature{}, err
	}
	return m.findOrCreateFeature(ctx, tc, c, featureName)
}

// The findOrCreate helpers consult the cache, then the store (which sees
// rows inserted earlier in tc), and insert only when both miss.

func (m *Manager) findOrCreateContext(ctx context.Context, tc store.TxContext, name string) (model.Context, error) {
	if strings.TrimSpace(name) == "" {
		return model.Context{}, fmt.Errorf("context: %w", ErrEmptyName)
	}
	if c, ok := m.cache.Context(name); ok {
		return c, nil
	}

	c, ok, err := store.QueryFirst(ctx, tc, `SELECT id, name FROM contexts WHERE name = ?`, model.ScanContext, name)
	if err != nil {
		return model.Context{}, fmt.Errorf("find context %q: %w", name, err)
	}
	if !ok {
		id, err := tc.Insert(ctx, `INSERT INTO contexts (name) VALUES (?)`, name)
		if err != nil {
			return model.Context{}, fmt.Errorf("create context %q: %w", name, err)
		}
		c = model.Context{ID: id, Name: name}
		m.logger.Debug("context created", "id", id, "name", name)
	}

	tc.OnCommit(func() { m.cache.PutContext(c) })
	return c, nil
}

func (m *Manager) findOrCreateFeature(ctx context.Context, tc store.TxContext, c model.Context, name string) (model.Feature, error) {
	if strings.TrimSpace(name) == "" {
		return model.Feature{}, fmt.Errorf("feature: %w", ErrEmptyName)
	}
	if f, ok := m.cache.Feature(c.ID, name); ok {
		return f, nil
	}

	f, ok, err := store.QueryFirst(ctx, tc, `
		SELECT id, name, context_id FROM features WHERE context_id = ? AND name = ?
	`, model.ScanFeature, c.ID, name)
	if err != nil {
		return model.Feature{}, fmt.Errorf("find feature %q/%q: %w", c.Name, name, err)
	}
	if !ok {
		id, err := tc.Insert(ctx, `INSERT INTO features (name, context_id) VALUES (?, ?)`, name, c.ID)
		if err != nil {
			return model.Feature{}, fmt.Errorf("create feature %q/%q: %w", c.Name, name, err)
		}
		f = model.Feature{ID: id, Name: name, ContextID: c.ID}
		m.logger.Debug("feature created", "id", id, "context", c.Name, "name", name)
	}

	tc.OnCommit(func() { m.cache.PutFeature(f) })
	return f, nil
}

func (m *Manager) findOrCreateStep(ctx context.Context, tc store.TxContext, name string) (model.Step, error) {
	if strings.TrimSpace(name) == "" {
		return model.Step{}, fmt.Errorf("step: %w", ErrEmptyName)
	}
	if s, ok := m.cache.Step(name); ok {
		return s, nil
	}

	s, ok, err := store.QueryFirst(ctx, tc, `SELECT id, name FROM steps WHERE name = ?`, model.ScanStep, name)
	if err != nil {
		return model.Step{}, fmt.Errorf("find step %q: %w", name, err)
	}
	if !ok {
		id, err := tc.Insert(ctx, `INSERT INTO steps (name) VALUES (?)`, name)
		if err != nil {
			return model.Step{}, fmt.Errorf("create step %q: %w", name, err)
		}
		s = model.Step{ID: id, Name: name}
		m.logger.Debug("step created", "id", id, "name", name)
	}

	tc.OnCommit(func() { m.cache.PutStep(s) })
	return s, nil
}
