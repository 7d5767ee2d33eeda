package store

import (
	"context"
	"fmt"
)

// RowScanner is the part of *sql.Rows a RowMapper may use.
type RowScanner interface {
	Scan(dest ...any) error
}

// RowMapper turns the current row into a T. Each query is paired with
// exactly one mapper.
type RowMapper[T any] func(RowScanner) (T, error)

// Query runs query on tc and maps every row with mapper.
// Returns an empty slice (not nil) if no rows match.
func Query[T any](ctx context.Context, tc TxContext, query string, mapper RowMapper[T], args ...any) ([]T, error) {
	rows, err := tc.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := mapper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// QueryFirst runs query on tc and maps the first row, if any.
func QueryFirst[T any](ctx context.Context, tc TxContext, query string, mapper RowMapper[T], args ...any) (T, bool, error) {
	var zero T
	rows, err := tc.QueryRows(ctx, query, args...)
	if err != nil {
		return zero, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return zero, false, fmt.Errorf("iterate rows: %w", err)
		}
		return zero, false, nil
	}
	v, err := mapper(rows)
	if err != nil {
		return zero, false, fmt.Errorf("scan row: %w", err)
	}
	return v, true, nil
}

// ScanInt64 maps a single integer column.
func ScanInt64(r RowScanner) (int64, error) {
	var n int64
	err := r.Scan(&n)
	return n, err
}

// CountRows returns the row count of each named table. Table names are
// interpolated, so callers pass only their own schema constants.
func CountRows(ctx context.Context, tc TxContext, tables ...string) (map[string]int64, error) {
	counts := make(map[string]int64, len(tables))
	for _, table := range tables {
		n, _, err := QueryFirst(ctx, tc, "SELECT COUNT(*) FROM "+table, ScanInt64)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
