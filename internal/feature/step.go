package feature

import "time"

type stepState int

const (
	stepOpen stepState = iota
	stepEnded
	stepDiscarded
)

// Step is an open sub-measurement of a Feature, returned by BeginStep.
type Step struct {
	feature     *Feature
	name        string
	details     string
	level       int
	hasChildren bool
	watch       *stopwatch
	state       stepState
}

// Name returns the step name.
func (s *Step) Name() string { return s.name }

// Level returns the nesting depth; top-level steps are at 0.
func (s *Step) Level() int { return s.level }

// TimeSpent returns the time accumulated so far.
func (s *Step) TimeSpent() time.Duration { return s.watch.elapsed() }

// SetDetails sets the free-text details recorded when the step ends.
func (s *Step) SetDetails(details string) { s.details = details }

// End stops the step and appends it to the feature's step list. Only the
// innermost open step may end. Ending a step whose feature failed is a
// no-op, the measurement having been discarded with the attempt.
func (s *Step) End() error {
	f := s.feature
	switch s.state {
	case stepEnded:
		return f.misuse(ErrCodeStepAlreadyEnded, s.name, "step ended twice")
	case stepDiscarded:
		return nil
	}

	// An open step is always on the stack, so top >= 0 here.
	top := len(f.open) - 1
	if f.open[top] != s {
		return f.misuse(ErrCodeStepOutOfOrder, s.name, "step %q is still open inside it", f.open[top].name)
	}

	s.watch.stop()
	s.state = stepEnded
	f.open = f.open[:top]
	f.steps = append(f.steps, StepEntry{
		Name:        s.name,
		Details:     s.details,
		TimeSpent:   s.watch.elapsed(),
		Level:       s.level,
		IsChild:     s.level > 0,
		HasChildren: s.hasChildren,
	})
	return nil
}
