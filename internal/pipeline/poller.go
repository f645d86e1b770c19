package pipeline

import (
	"context"
	"time"
)

// ConfirmationPoller checks, for each BlockchainPending batch with a
// recorded transaction hash, the on-chain receipt and resolves one of
// three outcomes — confirmed-success, confirmed-failure (reverted), or
// still-pending. A still-pending batch that has exceeded
// cfg.ConfirmationTimeout since its last update is given up on and moved
// to BlockchainFailed; one still within the timeout is left untouched for
// a later poll.
func (k *Kernel) ConfirmationPoller(ctx context.Context, dryRun bool) (*Outcome, error) {
	outcome := &Outcome{}

	candidates, err := k.batches.PendingConfirmation(ctx, submitBatchLimit)
	if err != nil {
		return outcome, err
	}

	for _, batch := range candidates {
		if batch.TxHash == nil {
			outcome.recordSkip()
			continue
		}

		receipt, err := k.chain.GetTransactionReceipt(ctx, *batch.TxHash)
		if err != nil {
			k.log.Logf("WARN pipeline: poll batch %s receipt: %v", batch.BatchID, err)
			outcome.recordFailure()
			continue
		}

		if receipt == nil {
			if time.Since(batch.UpdatedAt) > k.cfg.ConfirmationTimeout {
				if dryRun {
					k.log.Logf("INFO pipeline: dry-run would give up on batch %s (confirmation timeout)", batch.BatchID)
				} else {
					k.giveUpOnBatch(ctx, batch.ID)
				}
				outcome.recordFailure()
			} else {
				outcome.recordSkip()
			}
			continue
		}

		if receipt.Status == 0 {
			if dryRun {
				k.log.Logf("INFO pipeline: dry-run would mark batch %s reverted", batch.BatchID)
			} else {
				k.giveUpOnBatch(ctx, batch.ID)
			}
			outcome.recordFailure()
			continue
		}

		current, err := k.chain.GetCurrentBlock(ctx)
		if err != nil {
			k.log.Logf("WARN pipeline: poll batch %s current block: %v", batch.BatchID, err)
			outcome.recordFailure()
			continue
		}
		confirmations := current - receipt.BlockNumber.Uint64() + 1
		if confirmations < k.cfg.ConfirmationBlocks {
			outcome.recordSkip()
			continue
		}

		if dryRun {
			k.log.Logf("INFO pipeline: dry-run would confirm batch %s at block %d", batch.BatchID, receipt.BlockNumber.Uint64())
			outcome.recordSuccess()
			continue
		}

		if err := k.confirmBatch(ctx, batch.ID, receipt.BlockNumber.Int64()); err != nil {
			k.log.Logf("WARN pipeline: commit confirmed batch %s: %v", batch.BatchID, err)
			outcome.recordFailure()
			continue
		}
		outcome.recordSuccess()
	}

	return outcome, nil
}

func (k *Kernel) confirmBatch(ctx context.Context, batchDBID int64, blockNumber int64) error {
	if err := k.batches.CommitConfirmed(ctx, batchDBID, blockNumber); err != nil {
		return err
	}
	return k.invoices.MarkBatchConfirmed(ctx, batchDBID)
}

func (k *Kernel) giveUpOnBatch(ctx context.Context, batchDBID int64) {
	if err := k.batches.CommitReceiptFailed(ctx, batchDBID); err != nil {
		k.log.Logf("ERROR pipeline: commit receipt failed batch %d: %v", batchDBID, err)
	}
	if err := k.invoices.MarkBlockchainFailed(ctx, batchDBID); err != nil {
		k.log.Logf("ERROR pipeline: propagate batch %d confirmation failure: %v", batchDBID, err)
	}
}
