package model

import (
	"fmt"
	"time"
)

// Millis converts a duration to the INTEGER milliseconds stored in
// time_spent columns, rounding to the nearest millisecond.
func Millis(d time.Duration) int64 {
	return d.Round(time.Millisecond).Milliseconds()
}

// FromMillis converts a time_spent column value back to a duration.
func FromMillis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// FormatTime renders a created_at column value (RFC 3339, UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses a created_at column value.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t, nil
}
