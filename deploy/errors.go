package deploy

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/shipyard/types"
)

// StageError is returned by Execute when a stage fails fatally.
type StageError struct {
	Stage types.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage carried by a *StageError in err's chain,
// or "" when there is none.
func FailedStage(err error) types.Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// panicError wraps a value recovered from a stage panic.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
