package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andrey/invoice-pipeline/internal/domain"
)

// BatchRepository handles invoice_batches persistence and the claim
// protocol steps owned by CreateBatchJob and SubmitToBlockchainJob.
type BatchRepository struct {
	db *sql.DB
}

func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// BeginTx starts a transaction for callers that need to span the batch
// repository and the invoice repository's claim calls within one short
// transaction.
func (r *BatchRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

// CreateBatch inserts a new batch row in Processing status, returning
// its assigned id.
func (r *BatchRepository) CreateBatch(ctx context.Context, tx *sql.Tx, batchID string, count int) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO invoice_batches (batch_id, count, status, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id`, batchID, count, int(domain.BatchProcessing)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: create batch: %w", err)
	}
	return id, nil
}

// UpdateCount corrects a batch's recorded invoice count after some
// candidates lost their claim race, so the persisted count matches the
// invoices actually attached to it.
func (r *BatchRepository) UpdateCount(ctx context.Context, tx *sql.Tx, id int64, count int) error {
	_, err := tx.ExecContext(ctx, `UPDATE invoice_batches SET count = $2, updated_at = now() WHERE id = $1`, id, count)
	if err != nil {
		return fmt.Errorf("store: update batch count: %w", err)
	}
	return nil
}

// MarkFailed transitions a batch straight to BlockchainFailed regardless
// of its current status, used whenever CreateBatchJob or
// SubmitToBlockchainJob abandons it after a partial claim or a failed
// downstream call.
func (r *BatchRepository) MarkFailed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE invoice_batches SET status = $2, updated_at = now() WHERE id = $1`,
		id, int(domain.BatchBlockchainFailed))
	if err != nil {
		return fmt.Errorf("store: mark batch failed: %w", err)
	}
	return nil
}

// CommitBatchReady records the merkle root/CID and transitions the
// batch to ReadyToSend once all member invoices have been claimed.
func (r *BatchRepository) CommitBatchReady(ctx context.Context, tx *sql.Tx, id int64, merkleRoot, batchCID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE invoice_batches
		SET merkle_root = $2, batch_cid = $3, status = $4, updated_at = now()
		WHERE id = $1 AND status = $5`,
		id, merkleRoot, batchCID, int(domain.BatchReadyToSend), int(domain.BatchProcessing))
	if err != nil {
		return fmt.Errorf("store: commit batch ready: %w", err)
	}
	return nil
}

// SubmitCandidates returns batches matching SubmitToBlockchainJob's
// work query: ReadyToSend with a merkle root set.
func (r *BatchRepository) SubmitCandidates(ctx context.Context, limit int) ([]*domain.InvoiceBatch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, batch_id, count, merkle_root, batch_cid
		FROM invoice_batches
		WHERE status = $1 AND merkle_root IS NOT NULL AND merkle_root <> ''
		ORDER BY created_at ASC
		LIMIT $2`, int(domain.BatchReadyToSend), limit)
	if err != nil {
		return nil, fmt.Errorf("store: submit candidates query: %w", err)
	}
	defer rows.Close()

	var out []*domain.InvoiceBatch
	for rows.Next() {
		b := &domain.InvoiceBatch{}
		var root, cid sql.NullString
		if err := rows.Scan(&b.ID, &b.BatchID, &b.Count, &root, &cid); err != nil {
			return nil, fmt.Errorf("store: scan submit candidate: %w", err)
		}
		if root.Valid {
			b.MerkleRoot = &root.String
		}
		if cid.Valid {
			b.BatchCID = &cid.String
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ClaimForSubmit transitions a batch to BlockchainPending under its
// ReadyToSend predicate, ahead of the anchorBatch send. Returns
// ErrClaimLost if another worker already claimed it.
func (r *BatchRepository) ClaimForSubmit(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE invoice_batches SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, int(domain.BatchBlockchainPending), int(domain.BatchReadyToSend))
	if err != nil {
		return fmt.Errorf("store: claim for submit: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrClaimLost
	}
	return nil
}

// CommitSubmitSuccess records the sent transaction hash. The batch
// stays in BlockchainPending (it already transitioned there at claim
// time) — this call only attaches the hash so the poller can find it.
func (r *BatchRepository) CommitSubmitSuccess(ctx context.Context, id int64, txHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE invoice_batches SET tx_hash = $2, updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, txHash, int(domain.BatchBlockchainPending))
	if err != nil {
		return fmt.Errorf("store: commit submit success: %w", err)
	}
	return nil
}

// CommitSubmitFailure marks a batch BlockchainFailed (terminal) after a
// claimed submit attempt fails before or during send.
func (r *BatchRepository) CommitSubmitFailure(ctx context.Context, id int64) error {
	return r.MarkFailed(ctx, id)
}

// PendingConfirmation returns batches the confirmation poller must
// check: BlockchainPending with a recorded tx hash, the same status
// the submit job left them in.
func (r *BatchRepository) PendingConfirmation(ctx context.Context, limit int) ([]*domain.InvoiceBatch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, batch_id, tx_hash, updated_at
		FROM invoice_batches
		WHERE status = $1 AND tx_hash IS NOT NULL AND tx_hash <> ''
		ORDER BY created_at ASC
		LIMIT $2`, int(domain.BatchBlockchainPending), limit)
	if err != nil {
		return nil, fmt.Errorf("store: pending confirmation query: %w", err)
	}
	defer rows.Close()

	var out []*domain.InvoiceBatch
	for rows.Next() {
		b := &domain.InvoiceBatch{}
		var txHash sql.NullString
		if err := rows.Scan(&b.ID, &b.BatchID, &txHash, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan pending confirmation: %w", err)
		}
		if txHash.Valid {
			b.TxHash = &txHash.String
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CommitConfirmed transitions a confirmed batch and stamps its block
// number and confirmation timestamp.
func (r *BatchRepository) CommitConfirmed(ctx context.Context, id int64, blockNumber int64) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE invoice_batches
		SET status = $2, block_number = $3, confirmed_at = $4, updated_at = now()
		WHERE id = $1 AND status = $5`,
		id, int(domain.BatchBlockchainConfirmed), blockNumber, now, int(domain.BatchBlockchainPending))
	if err != nil {
		return fmt.Errorf("store: commit confirmed: %w", err)
	}
	return nil
}

// CommitReceiptFailed marks a batch BlockchainFailed when its receipt
// comes back with a failure status (revert).
func (r *BatchRepository) CommitReceiptFailed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE invoice_batches SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, int(domain.BatchBlockchainFailed), int(domain.BatchBlockchainPending))
	if err != nil {
		return fmt.Errorf("store: commit receipt failed: %w", err)
	}
	return nil
}

// GetByID fetches a batch by its primary key, used by the verifyInvoice
// read path to resolve an invoice's batch_id to its merkle root.
func (r *BatchRepository) GetByID(ctx context.Context, id int64) (*domain.InvoiceBatch, error) {
	b := &domain.InvoiceBatch{}
	var root, cid, txHash sql.NullString
	var blockNumber sql.NullInt64
	var confirmedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, batch_id, count, merkle_root, batch_cid, status, tx_hash, block_number, confirmed_at, created_at, updated_at
		FROM invoice_batches WHERE id = $1`, id).Scan(
		&b.ID, &b.BatchID, &b.Count, &root, &cid, &b.Status, &txHash, &blockNumber, &confirmedAt, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get batch by id: %w", err)
	}
	if root.Valid {
		b.MerkleRoot = &root.String
	}
	if cid.Valid {
		b.BatchCID = &cid.String
	}
	if txHash.Valid {
		b.TxHash = &txHash.String
	}
	if blockNumber.Valid {
		b.BlockNumber = &blockNumber.Int64
	}
	if confirmedAt.Valid {
		b.ConfirmedAt = &confirmedAt.Time
	}
	return b, nil
}

// GetByMerkleRoot fetches a batch by its recorded merkle root. The
// verifyInvoice read path looks batches up by id (GetByID) instead.
func (r *BatchRepository) GetByMerkleRoot(ctx context.Context, merkleRoot string) (*domain.InvoiceBatch, error) {
	b := &domain.InvoiceBatch{}
	var cid, txHash sql.NullString
	var blockNumber sql.NullInt64
	var confirmedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, batch_id, count, batch_cid, status, tx_hash, block_number, confirmed_at, created_at, updated_at
		FROM invoice_batches WHERE merkle_root = $1`, merkleRoot).Scan(
		&b.ID, &b.BatchID, &b.Count, &cid, &b.Status, &txHash, &blockNumber, &confirmedAt, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get batch by merkle root: %w", err)
	}
	b.MerkleRoot = &merkleRoot
	if cid.Valid {
		b.BatchCID = &cid.String
	}
	if txHash.Valid {
		b.TxHash = &txHash.String
	}
	if blockNumber.Valid {
		b.BlockNumber = &blockNumber.Int64
	}
	if confirmedAt.Valid {
		b.ConfirmedAt = &confirmedAt.Time
	}
	return b, nil
}
