package pipeline

import (
	"errors"

	"github.com/andrey/invoice-pipeline/internal/store"
)

// isClaimLost reports whether err is the store's claim-contention
// sentinel, which every job treats as a silent per-item skip rather
// than a failure.
func isClaimLost(err error) bool {
	return errors.Is(err, store.ErrClaimLost)
}
