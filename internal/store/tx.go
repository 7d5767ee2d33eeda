package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TxContext is the transactional context the client adapter and the
// server engine depend on. Every statement issued through one TxContext
// belongs to the same transaction.
type TxContext interface {
	// Execute runs a statement and returns the number of rows affected.
	Execute(ctx context.Context, query string, args ...any) (int64, error)

	// Insert runs an INSERT and returns the id of the new row.
	Insert(ctx context.Context, query string, args ...any) (int64, error)

	// QueryRows runs a query. Callers close the returned rows; prefer
	// Query or QueryFirst.
	QueryRows(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// OnCommit registers fn to run after the transaction commits.
	// Hooks never run for a transaction that rolls back.
	OnCommit(fn func())
}

// ErrTxDone is returned when a statement is issued on a completed or
// closed transaction.
var ErrTxDone = errors.New("transaction already completed or closed")

// Tx is one SQLite transaction. It implements TxContext.
type Tx struct {
	tx    *sql.Tx
	done  bool
	hooks []func()
}

var _ TxContext = (*Tx)(nil)

// Execute implements TxContext.
func (t *Tx) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	if t.done {
		return 0, ErrTxDone
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Insert implements TxContext.
func (t *Tx) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	if t.done {
		return 0, ErrTxDone
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// QueryRows implements TxContext.
func (t *Tx) QueryRows(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if t.done {
		return nil, ErrTxDone
	}
	return t.tx.QueryContext(ctx, query, args...)
}

// OnCommit implements TxContext.
func (t *Tx) OnCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

// Complete commits the transaction and then runs the OnCommit hooks in
// registration order.
func (t *Tx) Complete() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		t.hooks = nil
		return fmt.Errorf("commit: %w", err)
	}
	hooks := t.hooks
	t.hooks = nil
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// Close rolls the transaction back unless Complete already succeeded.
// Safe to call more than once.
func (t *Tx) Close() error {
	if t.done {
		return nil
	}
	t.done = true
	t.hooks = nil
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
