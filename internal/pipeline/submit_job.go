package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/andrey/invoice-pipeline/internal/domain"
	"github.com/andrey/invoice-pipeline/internal/store"
)

const submitBatchLimit = 10

// SubmitToBlockchainJob sends the anchorBatch transaction for each
// ReadyToSend batch with a recorded Merkle root, oldest first, capped at
// 10 per run, pausing between sends. It also runs the confirmation
// poller first, since submission and confirmation share one recurring
// schedule.
func (k *Kernel) SubmitToBlockchainJob(ctx context.Context, forceRun, dryRun bool) (*Outcome, error) {
	pollOutcome, err := k.ConfirmationPoller(ctx, dryRun)
	if err != nil {
		k.log.Logf("WARN pipeline: confirmation poller: %v", err)
	}

	outcome := &Outcome{}
	if pollOutcome != nil {
		outcome.SuccessCount += pollOutcome.SuccessCount
		outcome.FailureCount += pollOutcome.FailureCount
		outcome.SkippedCount += pollOutcome.SkippedCount
	}

	batches, err := k.batches.SubmitCandidates(ctx, submitBatchLimit)
	if err != nil {
		return outcome, err
	}

	for i, batch := range batches {
		if dryRun {
			k.log.Logf("INFO pipeline: dry-run would submit batch %s", batch.BatchID)
			outcome.recordSuccess()
			continue
		}

		if err := k.submitOneBatch(ctx, batch); err != nil {
			if isClaimLost(err) {
				outcome.recordSkip()
			} else {
				k.log.Logf("WARN pipeline: submit batch %s failed: %v", batch.BatchID, err)
				outcome.recordFailure()
			}
			continue
		}
		outcome.recordSuccess()

		if i < len(batches)-1 {
			select {
			case <-ctx.Done():
				return outcome, ctx.Err()
			case <-time.After(k.cfg.SubmitPause):
			}
		}
	}

	return outcome, nil
}

func (k *Kernel) submitOneBatch(ctx context.Context, batch *domain.InvoiceBatch) error {
	if batch.MerkleRoot == nil {
		return fmt.Errorf("pipeline: batch %s has no merkle root: %w", batch.BatchID, store.ErrDataInconsistent)
	}

	if err := k.batches.ClaimForSubmit(ctx, batch.ID); err != nil {
		return err
	}

	root, err := decodeRoot(*batch.MerkleRoot)
	if err != nil {
		k.abandonSubmit(ctx, batch.ID)
		return fmt.Errorf("pipeline: decode merkle root: %w", err)
	}

	metadataURI := ""
	if batch.BatchCID != nil {
		metadataURI = *batch.BatchCID
	}

	txHash, err := k.chain.AnchorBatch(ctx, root, uint64(batch.Count), metadataURI)
	if err != nil {
		k.abandonSubmit(ctx, batch.ID)
		return fmt.Errorf("pipeline: anchor batch %s: %w", batch.BatchID, err)
	}

	if err := k.batches.CommitSubmitSuccess(ctx, batch.ID, txHash); err != nil {
		return err
	}
	k.log.Logf("INFO pipeline: submitted batch %s as tx %s", batch.BatchID, txHash)
	return nil
}

func (k *Kernel) abandonSubmit(ctx context.Context, batchDBID int64) {
	if err := k.batches.CommitSubmitFailure(ctx, batchDBID); err != nil {
		k.log.Logf("ERROR pipeline: mark batch %d submit failed: %v", batchDBID, err)
	}
	if err := k.invoices.MarkBlockchainFailed(ctx, batchDBID); err != nil {
		k.log.Logf("ERROR pipeline: propagate batch %d failure to invoices: %v", batchDBID, err)
	}
}

func decodeRoot(rootHex string) ([32]byte, error) {
	var out [32]byte
	s := rootHex
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("pipeline: merkle root must decode to 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
