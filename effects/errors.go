package effects

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrInterrupted is the failure of a fiber that was interrupted before it
	// completed.
	ErrInterrupted = errors.New("fiber interrupted")
	// ErrNilFailure replaces a nil error passed as a failure.
	ErrNilFailure = errors.New("failure without an error")
	// ErrPanic wraps a panic recovered from user code run by the interpreter.
	ErrPanic = errors.New("effect panicked")
	// ErrEnvironmentType is returned by Access when the environment has an
	// unexpected type.
	ErrEnvironmentType = errors.New("unexpected environment type")
)

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, r)
}

func environmentTypeError(got any, want reflect.Type) error {
	return fmt.Errorf("%w: %T, want %v", ErrEnvironmentType, got, want)
}
