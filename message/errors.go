package message

import "errors"

// Sentinel errors for the MessageMalformed / view error taxonomy.
// Callers use errors.Is against these.
var (
	// ErrInvalidMessage covers structurally impossible input (nil message,
	// empty process id) that never should have been constructed.
	ErrInvalidMessage = errors.New("message: invalid message")

	// ErrDuplicateID is returned when a message's id already exists in
	// the store. The DAG requires id uniqueness across M.
	ErrDuplicateID = errors.New("message: duplicate id")

	// ErrMalformedRound is returned when a round-0 message declares a
	// non-empty coffer, or when a coffer entry that IS present in the
	// store names a message whose round is not exactly one less than
	// the referencing message's round. Dangling (absent) coffer entries
	// are not malformed, they are tolerated by the consistency
	// predicates for tip reasoning on incomplete DAGs.
	ErrMalformedRound = errors.New("message: malformed round")

	// ErrNotFound is returned by lookups that miss.
	ErrNotFound = errors.New("message: not found")
)
