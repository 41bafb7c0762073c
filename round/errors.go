package round

import "errors"

var (
	// ErrConfigInvalid covers a violated rate invariant, a Byzantine
	// set not contained in the process set, or a non-positive VDF
	// period. Fatal at init.
	ErrConfigInvalid = errors.New("round: invalid configuration")

	// ErrSafetyViolation is returned from TickEnd when the safety
	// obligation fails for a well-behaved pending message. This is a
	// bug in the implementation or a refutation of the rate
	// assumption; callers should halt rather than continue.
	ErrSafetyViolation = errors.New("round: safety violation")
)
