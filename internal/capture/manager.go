// Package capture is the call-site API for recording feature usage.
//
// A Manager starts features and terminates each exactly once: Stop on
// success persists a feature entry, LogException on failure persists an
// exception entry. Persistence goes through a Recorder inside one
// transaction per call.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/featlog/internal/feature"
	"github.com/roach88/featlog/internal/store"
)

// Recorder persists terminated features. *client.Manager implements it.
type Recorder interface {
	SaveFeature(ctx context.Context, tc store.TxContext, e feature.Entry) error
	SaveException(ctx context.Context, tc store.TxContext, f feature.Failure) error
}

// Transactor runs a function inside one transaction. *store.Store
// implements it.
type Transactor interface {
	InTx(ctx context.Context, fn func(store.TxContext) error) error
}

// Manager starts and terminates features.
type Manager struct {
	db     Transactor
	rec    Recorder
	clock  feature.Clock
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock features are timed with. The entry timestamp
// is read from the same clock. Defaults to feature.SystemClock.
func WithClock(c feature.Clock) Option {
	return func(m *Manager) {
		m.clock = c
		m.now = c.Now
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager persisting through rec inside transactions
// opened on db.
func NewManager(db Transactor, rec Recorder, opts ...Option) *Manager {
	m := &Manager{
		db:     db,
		rec:    rec,
		clock:  feature.SystemClock{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartNew begins timing a feature. Nothing is persisted until Stop or
// LogException.
func (m *Manager) StartNew(contextName, name string) *feature.Feature {
	return feature.New(m.clock, contextName, name)
}

// Stop terminates f successfully and persists its entry with details and
// the steps recorded so far (possibly none).
//
// Calling Stop or LogException again for the same feature returns a
// feature.MisuseError and persists nothing. If persistence fails the
// feature still counts as terminated; the attempt is not retried.
func (m *Manager) Stop(ctx context.Context, f *feature.Feature, details string) error {
	entry, err := f.Finish(details, m.now())
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}

	err = m.db.InTx(ctx, func(tc store.TxContext) error {
		return m.rec.SaveFeature(ctx, tc, entry)
	})
	if err != nil {
		m.logger.Error("feature entry not saved",
			"context", entry.Context,
			"feature", entry.Name,
			"error", err)
		return fmt.Errorf("stop: %w", err)
	}

	m.logger.Debug("feature entry saved",
		"context", entry.Context,
		"feature", entry.Name,
		"time_spent", entry.TimeSpent,
		"steps", len(entry.Steps))
	return nil
}

// LogException terminates f with cause and persists an exception entry.
// Step measurements of the attempt are discarded.
func (m *Manager) LogException(ctx context.Context, f *feature.Feature, cause error) error {
	failure, err := f.Fail(cause, m.now())
	if err != nil {
		return fmt.Errorf("log exception: %w", err)
	}

	err = m.db.InTx(ctx, func(tc store.TxContext) error {
		return m.rec.SaveException(ctx, tc, failure)
	})
	if err != nil {
		m.logger.Error("exception entry not saved",
			"context", failure.Context,
			"feature", failure.Name,
			"error", err)
		return fmt.Errorf("log exception: %w", err)
	}

	m.logger.Debug("exception entry saved",
		"context", failure.Context,
		"feature", failure.Name,
		"message", failure.Message)
	return nil
}

// Run times fn as a feature. It calls Stop when fn returns nil and
// LogException otherwise, and returns fn's error unchanged.
//
// Failures to record the feature are logged, not returned, so
// instrumentation never changes the outcome seen by the caller.
func (m *Manager) Run(ctx context.Context, contextName, name string, fn func(*feature.Feature) error) error {
	f := m.StartNew(contextName, name)

	// Capture a panic as an exception entry before letting it continue.
	defer func() {
		if r := recover(); r != nil {
			if !f.Terminated() {
				// LogException logs its own failure.
				_ = m.LogException(ctx, f, fmt.Errorf("panic: %v", r))
			}
			panic(r)
		}
	}()

	if err := fn(f); err != nil {
		// Already logged at Error level; fn's error is what the caller sees.
		_ = m.LogException(ctx, f, err)
		return err
	}
	if err := m.Stop(ctx, f, ""); err != nil {
		m.logger.Warn("feature not recorded",
			"context", contextName,
			"feature", name,
			"error", err)
	}
	return nil
}
