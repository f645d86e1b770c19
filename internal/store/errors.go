package store

import "errors"

// Sentinel errors for repository operations, following an
// explicit-error-over-nil-nil convention throughout.
var (
	// ErrNotFound is returned when a lookup by primary key or unique key
	// matches no row.
	ErrNotFound = errors.New("store: entity not found")

	// ErrClaimLost is returned by a claim attempt when the row's status no
	// longer matches the expected predicate — another worker claimed it
	// first. Callers must treat this as a silent skip, not a failure.
	ErrClaimLost = errors.New("store: claim lost to another worker")

	// ErrDataInconsistent marks a row found in a state the caller did not
	// expect to be possible (e.g. a batch ready to submit with no merkle
	// root). This fails only that entity, not the run.
	ErrDataInconsistent = errors.New("store: data inconsistency")
)
