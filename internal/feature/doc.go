// Package feature measures how long named operations take.
//
// A Feature is started, optionally paused and resumed, optionally split
// into nested steps, and then terminated exactly once: Finish on success
// yields an Entry, Fail on error yields a Failure.
//
// # Elapsed Time
//
// Time is read from a Clock and accumulated only while running. Pausing a
// feature also pauses every open step, so a blocking confirmation is
// excluded from the feature and from the step it interrupted.
//
// # Steps
//
// Open steps form an explicit stack. Nesting level and parent/child flags
// come from that stack, and only the innermost step may end; ending out of
// order, ending twice, and terminating with open steps are reported as a
// MisuseError instead of producing skewed timings.
package feature
