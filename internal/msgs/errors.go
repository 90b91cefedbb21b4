package msgs

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTrajectory indicates a trajectory without any points.
	ErrEmptyTrajectory = errors.New("msgs: trajectory has no points")

	// ErrInvalidPoint indicates a trajectory point with NaN or Inf fields.
	ErrInvalidPoint = errors.New("msgs: trajectory point is not finite")
)

// PointError locates an invalid trajectory point.
type PointError struct {
	Index   int
	Wrapped error
}

func (e *PointError) Error() string {
	return fmt.Sprintf("point %d: %s", e.Index, e.Wrapped)
}

func (e *PointError) Unwrap() error {
	return e.Wrapped
}
