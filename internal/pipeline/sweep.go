package pipeline

import (
	"context"
	"time"
)

// defaultStaleClaimAge is how long an invoice may sit in IpfsInFlight
// before the sweep assumes its claiming worker died and resets it.
const defaultStaleClaimAge = 15 * time.Minute

// StaleClaimSweepJob resets invoices stranded in IpfsInFlight back to
// Uploaded, covering a worker that crashes between ClaimForUpload and
// its commit.
func (k *Kernel) StaleClaimSweepJob(ctx context.Context, dryRun bool) (*Outcome, error) {
	outcome := &Outcome{}
	if dryRun {
		k.log.Logf("INFO pipeline: dry-run skips stale-claim sweep (read-only jobs have nothing to preview here)")
		return outcome, nil
	}

	n, err := k.invoices.SweepStaleClaims(ctx, defaultStaleClaimAge)
	if err != nil {
		outcome.recordFailure()
		return outcome, err
	}
	outcome.SuccessCount = int(n)
	if n > 0 {
		k.log.Logf("INFO pipeline: swept %d stranded claims back to Uploaded", n)
	}
	return outcome, nil
}
