package pipeline

import (
	"context"
	"sync"

	"github.com/andrey/invoice-pipeline/internal/canonical"
)

// UploadToIpfsJob claims each Uploaded invoice, canonicalizes and pins it
// to IPFS, and records the resulting CID or a terminal failure.
// Per-invoice work runs concurrently, bounded by cfg.ConcurrentUploads.
func (k *Kernel) UploadToIpfsJob(ctx context.Context, forceRun, dryRun bool) (*Outcome, error) {
	candidates, err := k.invoices.UploadCandidates(ctx, forceRun, k.cfg.MaxInvoicesPerRun)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{}
	if len(candidates) == 0 {
		return outcome, nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, inv := range candidates {
		if err := k.uploadSem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			outcome.recordFailure()
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			defer k.uploadSem.Release(1)
			result := k.uploadOne(ctx, id, dryRun)
			mu.Lock()
			switch result {
			case outcomeSuccess:
				outcome.recordSuccess()
			case outcomeSkip:
				outcome.recordSkip()
			default:
				outcome.recordFailure()
			}
			mu.Unlock()
		}(inv.ID)
	}
	wg.Wait()

	return outcome, nil
}

type jobItemResult int

const (
	outcomeFailure jobItemResult = iota
	outcomeSuccess
	outcomeSkip
)

// uploadOne runs the claim/pin/commit sequence for a single invoice.
// Any failure after a successful claim commits IpfsFailed so the row
// never silently gets stuck in IpfsInFlight (the sweep handles true
// crash-abandoned claims; this handles live but failing ones).
func (k *Kernel) uploadOne(ctx context.Context, id int64, dryRun bool) jobItemResult {
	if dryRun {
		if _, err := k.invoices.GetForCanonicalization(ctx, id); err != nil {
			k.log.Logf("WARN pipeline: dry-run load invoice %d: %v", id, err)
			return outcomeFailure
		}
		k.log.Logf("INFO pipeline: dry-run would upload invoice %d", id)
		return outcomeSuccess
	}

	if err := k.invoices.ClaimForUpload(ctx, id); err != nil {
		if isClaimLost(err) {
			return outcomeSkip
		}
		k.log.Logf("WARN pipeline: claim invoice %d for upload: %v", id, err)
		return outcomeFailure
	}

	inv, err := k.invoices.GetForCanonicalization(ctx, id)
	if err != nil {
		k.log.Logf("WARN pipeline: load invoice %d after claim: %v", id, err)
		k.failUpload(ctx, id)
		return outcomeFailure
	}

	immutableHash := canonical.ImmutableHash(inv)
	payload := canonical.Canonicalize(inv)

	cid, err := k.ipfs.PinJSON(ctx, payload, inv.InvoiceNumber)
	if err != nil {
		k.log.Logf("WARN pipeline: pin invoice %d: %v", id, err)
		k.failUpload(ctx, id)
		return outcomeFailure
	}

	cidHash := canonical.CIDHash(cid)
	if err := k.invoices.CommitUploadSuccess(ctx, id, cid, cidHash, immutableHash); err != nil {
		k.log.Logf("WARN pipeline: commit upload success invoice %d: %v", id, err)
		k.failUpload(ctx, id)
		return outcomeFailure
	}
	return outcomeSuccess
}

func (k *Kernel) failUpload(ctx context.Context, id int64) {
	if err := k.invoices.CommitUploadFailure(ctx, id); err != nil {
		k.log.Logf("ERROR pipeline: commit upload failure invoice %d: %v", id, err)
	}
}
