package helper

import (
	"fmt"
)

// As converts an untyped runtime value back to T.
// A nil interface becomes the zero value of T. Panics on a type mismatch,
// which means a bug in how the value was produced.
func As[T any](v any) T {
	res, err := GetTypedValueOf[T](v)
	if err != nil {
		panic(err)
	}
	return res
}

// GetTypedValueOf safely asserts v to the expected type T.
// Returns an error if type assertion fails.
func GetTypedValueOf[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}

	val, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected type: %T, want %T", v, zero)
	}
	return val, nil
}
