package oscillation

import "errors"

var (
	// ErrInvalidSample is returned when a sample value is NaN or infinite.
	ErrInvalidSample = errors.New("invalid sample")

	// ErrOutOfOrderSample is returned when a sample timestamp is not strictly
	// greater than the previous accepted timestamp.
	ErrOutOfOrderSample = errors.New("out of order sample")

	// ErrUninitializedEstimate is returned by predictions made before a peak
	// has anchored the phase or while the period estimate is unusable.
	ErrUninitializedEstimate = errors.New("no estimate yet")

	// ErrInvalidConfig is returned when a tracker configuration fails
	// validation.
	ErrInvalidConfig = errors.New("invalid tracker config")
)
