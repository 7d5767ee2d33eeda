// Package model defines the rows of the client and server telemetry stores.
//
// Dimension rows (Context, Step, Feature, User, Version) are unique by
// folded name, Feature by (context, folded name). Fact rows (FeatureEntry,
// FeatureEntryStep, ExceptionEntry) are append-only.
package model

import "time"

// Context is a namespace for capture sites, e.g. a screen name.
type Context struct {
	ID   int64
	Name string
}

// Step is a sub-phase name, global across contexts and features.
type Step struct {
	ID   int64
	Name string
}

// Feature is a named operation scoped to one Context.
type Feature struct {
	ID        int64
	Name      string
	ContextID int64
}

// User attributes replicated facts on the server.
type User struct {
	ID   int64
	Name string
}

// Version attributes replicated feature entries on the server.
type Version struct {
	ID   int64
	Name string
}

// FeatureEntry is one completed invocation of a Feature.
// UserID and VersionID are zero on the client.
type FeatureEntry struct {
	ID        int64
	FeatureID int64
	Details   string
	TimeSpent time.Duration
	CreatedAt time.Time
	UserID    int64
	VersionID int64
}

// FeatureEntryStep is one measured step of a FeatureEntry.
type FeatureEntryStep struct {
	ID             int64
	FeatureEntryID int64
	StepID         int64
	TimeSpent      time.Duration
	Details        string
	Level          int
}

// ExceptionEntry is one captured failure of a Feature.
// UserID is zero on the client.
type ExceptionEntry struct {
	ID         int64
	FeatureID  int64
	Message    string
	StackTrace string
	CreatedAt  time.Time
	UserID     int64
}

// Snapshot is a fully materialized copy of one client store.
type Snapshot struct {
	Contexts          []Context
	Steps             []Step
	Features          []Feature
	FeatureEntries    []FeatureEntry
	FeatureEntrySteps []FeatureEntryStep
	ExceptionEntries  []ExceptionEntry
}
