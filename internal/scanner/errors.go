package scanner

import (
	"errors"
	"fmt"
)

// Conditions the pipeline recovers from. They are reported in
// Result.Recovered and never returned as a call's error.
var (
	// ErrDegenerateInput marks input the pipeline cannot interpret, such as
	// an image where four document corners could not be found.
	ErrDegenerateInput = errors.New("degenerate input")

	// ErrSingularSystem marks a linear system with no unique solution:
	// parallel candidate lines or a homography with a zero pivot.
	ErrSingularSystem = errors.New("singular system")

	// ErrOutOfBoundsSample marks warp samples that could not be read
	// normally: a vanishing projective denominator or a position outside
	// the source.
	ErrOutOfBoundsSample = errors.New("out-of-bounds sample")
)

// ErrUnknownBackend is returned by NewBackend for an unrecognised name.
var ErrUnknownBackend = errors.New("unknown backend")

// Pipeline stage names used in StageError.
const (
	StageDetect = "detect"
	StageSolve  = "solve"
	StageWarp   = "warp"
)

// StageError records a condition raised, and recovered from, in one
// pipeline stage.
type StageError struct {
	// Stage is the pipeline stage that raised the condition.
	Stage string

	// Err is one of the recoverable sentinels.
	Err error

	// Details describes the fallback that was applied.
	Details string
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("scanner: %s: %v: %s", e.Stage, e.Err, e.Details)
	}
	return fmt.Sprintf("scanner: %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Is reports whether the underlying error matches target.
func (e *StageError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newStageError(stage string, err error, format string, args ...any) *StageError {
	return &StageError{Stage: stage, Err: err, Details: fmt.Sprintf(format, args...)}
}
