package task

import (
	"fmt"

	"github.com/on-the-ground/fiber_ive_go/effects"
)

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: task: %w", effects.ErrPanic, err)
	}
	return fmt.Errorf("%w: task: %v", effects.ErrPanic, r)
}
