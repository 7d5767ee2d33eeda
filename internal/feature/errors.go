package feature

import (
	"errors"
	"fmt"
)

// MisuseError reports a call made out of sequence by the instrumented code.
// It is a programming error: the call had no effect and should not be
// retried.
type MisuseError struct {
	// Code identifies the error category.
	Code MisuseErrorCode

	// Message is a human-readable description.
	Message string

	// Context and Feature identify the feature involved.
	Context string
	Feature string

	// Step names the step involved, if any.
	Step string
}

// MisuseErrorCode categorizes misuse errors.
type MisuseErrorCode string

const (
	// ErrCodeAlreadyTerminated indicates a second Stop/LogException, or a
	// step begun on a feature that already terminated.
	ErrCodeAlreadyTerminated MisuseErrorCode = "ALREADY_TERMINATED"

	// ErrCodeStepOutOfOrder indicates a step ended while a step begun after
	// it is still open.
	ErrCodeStepOutOfOrder MisuseErrorCode = "STEP_OUT_OF_ORDER"

	// ErrCodeStepAlreadyEnded indicates End called twice on one step.
	ErrCodeStepAlreadyEnded MisuseErrorCode = "STEP_ALREADY_ENDED"

	// ErrCodeStepsOpen indicates Stop while steps are still open.
	ErrCodeStepsOpen MisuseErrorCode = "STEPS_OPEN"
)

// Error implements the error interface.
func (e *MisuseError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: %s (feature=%s/%s, step=%s)", e.Code, e.Message, e.Context, e.Feature, e.Step)
	}
	return fmt.Sprintf("%s: %s (feature=%s/%s)", e.Code, e.Message, e.Context, e.Feature)
}

// IsMisuse returns true if err is a MisuseError.
// Uses errors.As to handle wrapped errors.
func IsMisuse(err error) bool {
	var me *MisuseError
	return errors.As(err, &me)
}

// IsMisuseCode returns true if err is a MisuseError with the given code.
func IsMisuseCode(err error, code MisuseErrorCode) bool {
	var me *MisuseError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

func (f *Feature) misuse(code MisuseErrorCode, step, format string, args ...any) *MisuseError {
	return &MisuseError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Context: f.context,
		Feature: f.name,
		Step:    step,
	}
}
