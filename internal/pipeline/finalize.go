package pipeline

import "context"

// FinalizeBatch moves every BlockchainConfirmed invoice in batchID to
// the terminal Finalized status. Unlike the three recurring jobs, this
// is an administrator-triggered archival step, not run on a schedule:
// a batch can sit in BlockchainConfirmed indefinitely without blocking
// anything downstream.
func (k *Kernel) FinalizeBatch(ctx context.Context, batchID int64) error {
	return k.invoices.FinalizeBatchInvoices(ctx, batchID, nil)
}
