package model

import "github.com/roach88/featlog/internal/store"

// ScanContext maps "SELECT id, name FROM contexts".
func ScanContext(r store.RowScanner) (Context, error) {
	var c Context
	err := r.Scan(&c.ID, &c.Name)
	return c, err
}

// ScanStep maps "SELECT id, name FROM steps".
func ScanStep(r store.RowScanner) (Step, error) {
	var s Step
	err := r.Scan(&s.ID, &s.Name)
	return s, err
}

// ScanFeature maps "SELECT id, name, context_id FROM features".
func ScanFeature(r store.RowScanner) (Feature, error) {
	var f Feature
	err := r.Scan(&f.ID, &f.Name, &f.ContextID)
	return f, err
}

// ScanUser maps "SELECT id, name FROM users".
func ScanUser(r store.RowScanner) (User, error) {
	var u User
	err := r.Scan(&u.ID, &u.Name)
	return u, err
}

// ScanVersion maps "SELECT id, name FROM versions".
func ScanVersion(r store.RowScanner) (Version, error) {
	var v Version
	err := r.Scan(&v.ID, &v.Name)
	return v, err
}

// ScanFeatureEntry maps
// "SELECT id, feature_id, details, time_spent, created_at FROM feature_entries".
func ScanFeatureEntry(r store.RowScanner) (FeatureEntry, error) {
	var (
		e         FeatureEntry
		spent     int64
		createdAt string
	)
	if err := r.Scan(&e.ID, &e.FeatureID, &e.Details, &spent, &createdAt); err != nil {
		return e, err
	}
	e.TimeSpent = FromMillis(spent)
	t, err := ParseTime(createdAt)
	e.CreatedAt = t
	return e, err
}

// ScanFeatureEntryStep maps "SELECT id, feature_entry_id, step_id,
// time_spent, details, level FROM feature_entry_steps".
func ScanFeatureEntryStep(r store.RowScanner) (FeatureEntryStep, error) {
	var (
		s     FeatureEntryStep
		spent int64
	)
	err := r.Scan(&s.ID, &s.FeatureEntryID, &s.StepID, &spent, &s.Details, &s.Level)
	s.TimeSpent = FromMillis(spent)
	return s, err
}

// ScanExceptionEntry maps "SELECT id, feature_id, message, stack_trace,
// created_at FROM exception_entries".
func ScanExceptionEntry(r store.RowScanner) (ExceptionEntry, error) {
	var (
		e         ExceptionEntry
		createdAt string
	)
	if err := r.Scan(&e.ID, &e.FeatureID, &e.Message, &e.StackTrace, &createdAt); err != nil {
		return e, err
	}
	t, err := ParseTime(createdAt)
	e.CreatedAt = t
	return e, err
}
