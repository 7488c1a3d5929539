package effects

import (
	"errors"

	"github.com/on-the-ground/fiber_ive_go/shared/helper"
)

// Exit is the final outcome of a fiber: a success when Err is nil,
// a failure otherwise.
type Exit[A any] struct {
	Value A
	Err   error
}

// Success builds a successful exit.
func Success[A any](a A) Exit[A] {
	return Exit[A]{Value: a}
}

// Failure builds a failed exit. A nil err becomes ErrNilFailure.
func Failure[A any](err error) Exit[A] {
	if err == nil {
		err = ErrNilFailure
	}
	return Exit[A]{Err: err}
}

// ExitFrom adapts a (value, error) pair.
func ExitFrom[A any](a A, err error) Exit[A] {
	if err != nil {
		return Exit[A]{Err: err}
	}
	return Success(a)
}

// IsSuccess reports whether e carries a value.
func (e Exit[A]) IsSuccess() bool {
	return e.Err == nil
}

// IsInterrupted reports whether e failed with ErrInterrupted.
func (e Exit[A]) IsInterrupted() bool {
	return errors.Is(e.Err, ErrInterrupted)
}

// Get unpacks e into the usual value and error pair.
func (e Exit[A]) Get() (A, error) {
	return e.Value, e.Err
}

func typedExit[A any](e Exit[any]) Exit[A] {
	if e.Err != nil {
		return Exit[A]{Err: e.Err}
	}
	return Exit[A]{Value: helper.As[A](e.Value)}
}
