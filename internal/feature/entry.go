package feature

import (
	"errors"
	"runtime/debug"
	"time"
)

// Entry is the record of one successfully completed feature.
type Entry struct {
	Context   string
	Name      string
	Details   string
	TimeSpent time.Duration
	CreatedAt time.Time
	Steps     []StepEntry
}

// StepEntry is one ended step of an Entry.
type StepEntry struct {
	Name        string
	Details     string
	TimeSpent   time.Duration
	Level       int
	IsChild     bool
	HasChildren bool
}

// Failure is the record of one feature attempt that ended in an error.
type Failure struct {
	Context    string
	Name       string
	Message    string
	StackTrace string
	CreatedAt  time.Time
}

// StackTracer is implemented by errors that carry the stack of their
// origin. Fail prefers it over the stack at the point of the Fail call.
type StackTracer interface {
	StackTrace() string
}

func stackOf(err error) string {
	var st StackTracer
	if errors.As(err, &st) {
		return st.StackTrace()
	}
	return string(debug.Stack())
}
