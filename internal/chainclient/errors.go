package chainclient

import "errors"

// Failure taxonomy: transport/5xx/timeout is retryable; revert/
// invalid-argument is permanent; a missing signer is its own fatal
// condition since no account can be produced to retry with.
var (
	ErrRetryable = errors.New("chainclient: retryable chain failure")
	ErrPermanent = errors.New("chainclient: permanent chain failure")
	ErrNoSigner  = errors.New("chainclient: no signer configured for this operation")
)
