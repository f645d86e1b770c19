package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andrey/invoice-pipeline/internal/domain"
	"github.com/andrey/invoice-pipeline/internal/merkletree"
)

// batchMetadata is the JSON document pinned to IPFS alongside each batch,
// carrying the CIDs it covers and the derived root for offline auditing.
type batchMetadata struct {
	BatchID    string   `json:"batchId"`
	MerkleRoot string   `json:"merkleRoot"`
	CIDs       []string `json:"cids"`
	CreatedAt  string   `json:"createdAt"`
}

// CreateBatchJob groups IpfsStored invoices into batches up to
// cfg.BatchSize, claims each member, builds the Merkle tree over their
// CIDs, pins the batch manifest, and stamps each claimed invoice's proof
// and BlockchainPending status — the status transition happens here, at
// batch-creation time, ahead of the actual anchorBatch send in
// SubmitToBlockchainJob.
func (k *Kernel) CreateBatchJob(ctx context.Context, forceRun, dryRun bool) (*Outcome, error) {
	outcome := &Outcome{}

	fetchLimit := k.cfg.BatchSize * k.cfg.BatchesPerRun
	if fetchLimit <= 0 {
		fetchLimit = k.cfg.BatchSize
	}
	candidates, err := k.invoices.BatchCandidates(ctx, fetchLimit)
	if err != nil {
		return nil, err
	}

	if !forceRun && len(candidates) < k.cfg.BatchSize/2 {
		k.log.Logf("INFO pipeline: create-batch fill gate not met (%d candidates), skipping run", len(candidates))
		return outcome, nil
	}

	for start := 0; start < len(candidates) && start/k.cfg.BatchSize < k.cfg.BatchesPerRun; start += k.cfg.BatchSize {
		end := start + k.cfg.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		group := candidates[start:end]

		if dryRun {
			k.log.Logf("INFO pipeline: dry-run would create batch of %d invoices", len(group))
			outcome.recordSuccess()
			continue
		}

		if err := k.createOneBatch(ctx, group); err != nil {
			k.log.Logf("WARN pipeline: create batch failed: %v", err)
			outcome.recordFailure()
			continue
		}
		outcome.recordSuccess()
	}

	return outcome, nil
}

func (k *Kernel) createOneBatch(ctx context.Context, group []*domain.Invoice) error {
	batchID := generateBatchID()

	tx, err := k.batches.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: begin batch claim tx: %w", err)
	}
	defer tx.Rollback()

	batchDBID, err := k.batches.CreateBatch(ctx, tx, batchID, len(group))
	if err != nil {
		return err
	}

	claimedCIDs := make([]string, 0, len(group))
	proofSourceByID := map[string]*domain.Invoice{}
	for _, inv := range group {
		if inv.CID == nil || *inv.CID == "" {
			continue
		}
		if err := k.invoices.ClaimForBatch(ctx, tx, inv.ID, batchDBID); err != nil {
			if isClaimLost(err) {
				continue
			}
			return fmt.Errorf("pipeline: claim invoice %d for batch: %w", inv.ID, err)
		}
		claimedCIDs = append(claimedCIDs, *inv.CID)
		proofSourceByID[*inv.CID] = inv
	}

	if len(claimedCIDs) == 0 {
		return nil // tx rolls back via defer; nothing was durably claimed
	}

	if err := k.batches.UpdateCount(ctx, tx, batchDBID, len(claimedCIDs)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pipeline: commit batch claims: %w", err)
	}

	tree, err := merkletree.Build(claimedCIDs)
	if err != nil {
		k.abandonBatch(ctx, batchDBID)
		return fmt.Errorf("pipeline: build merkle tree: %w", err)
	}

	manifest := batchMetadata{
		BatchID:    batchID,
		MerkleRoot: tree.RootHex(),
		CIDs:       tree.SortedLeaves,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(manifest)
	if err != nil {
		k.abandonBatch(ctx, batchDBID)
		return fmt.Errorf("pipeline: marshal batch manifest: %w", err)
	}
	batchCID, err := k.ipfs.PinJSON(ctx, payload, batchID)
	if err != nil {
		k.abandonBatch(ctx, batchDBID)
		return fmt.Errorf("pipeline: pin batch manifest: %w", err)
	}

	proofByCID := make(map[string][]string, len(claimedCIDs))
	for _, cid := range claimedCIDs {
		proofByCID[cid] = tree.ProofHex(cid)
	}

	tx2, err := k.batches.BeginTx(ctx)
	if err != nil {
		k.abandonBatch(ctx, batchDBID)
		return fmt.Errorf("pipeline: begin batch finalize tx: %w", err)
	}
	defer tx2.Rollback()

	if err := k.invoices.SetMerkleProofsAndPending(ctx, tx2, batchDBID, proofByCID); err != nil {
		k.abandonBatch(ctx, batchDBID)
		return err
	}
	if err := k.batches.CommitBatchReady(ctx, tx2, batchDBID, tree.RootHex(), batchCID); err != nil {
		k.abandonBatch(ctx, batchDBID)
		return err
	}
	if err := tx2.Commit(); err != nil {
		k.abandonBatch(ctx, batchDBID)
		return fmt.Errorf("pipeline: commit batch finalize: %w", err)
	}

	k.log.Logf("INFO pipeline: batch %s ready with %d invoices, root %s", batchID, len(claimedCIDs), tree.RootHex())
	return nil
}

// abandonBatch reverts a partially-built batch: it becomes terminally
// failed and its claimed invoices return to IpfsStored for a later run
// to retry.
func (k *Kernel) abandonBatch(ctx context.Context, batchDBID int64) {
	if err := k.invoices.RevertBatchClaims(ctx, batchDBID); err != nil {
		k.log.Logf("ERROR pipeline: revert batch %d claims: %v", batchDBID, err)
	}
	if err := k.batches.MarkFailed(ctx, batchDBID); err != nil {
		k.log.Logf("ERROR pipeline: mark batch %d failed: %v", batchDBID, err)
	}
}

func generateBatchID() string {
	return fmt.Sprintf("BATCH-%d-%s", time.Now().Unix(), uuid.NewString()[:4])
}
