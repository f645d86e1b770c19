package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andrey/invoice-pipeline/internal/domain"
)

// InvoiceRepository handles invoice and invoice_line persistence,
// including the claim protocol shared by all three pipeline jobs:
// conditional UPDATE ... WHERE status = <expected>, checked via
// RowsAffected.
type InvoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// UploadCandidates returns invoices matching UploadToIpfsJob's work
// query: Uploaded status, no CID yet, quiescent for at least a minute
// unless forceRun skips the quiescence check.
func (r *InvoiceRepository) UploadCandidates(ctx context.Context, forceRun bool, limit int) ([]*domain.Invoice, error) {
	query := `
		SELECT id, tenant_org_id, status, created_at
		FROM invoices
		WHERE status = $1 AND (cid IS NULL OR cid = '')`
	args := []interface{}{int(domain.InvoiceUploaded)}
	if !forceRun {
		query += ` AND created_at < $2`
		args = append(args, time.Now().Add(-time.Minute))
	}
	query += fmt.Sprintf(` ORDER BY created_at ASC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: upload candidates query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Invoice
	for rows.Next() {
		inv := &domain.Invoice{}
		if err := rows.Scan(&inv.ID, &inv.TenantOrgID, &inv.Status, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan upload candidate: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ClaimForUpload transitions an invoice from Uploaded to IpfsInFlight
// under the claim protocol. Returns ErrClaimLost if another worker
// already moved the row out of Uploaded.
func (r *InvoiceRepository) ClaimForUpload(ctx context.Context, id int64) error {
	return r.claimTransition(ctx, id, domain.InvoiceUploaded, domain.InvoiceIpfsInFlight)
}

// CommitUploadSuccess records the CID and transitions to IpfsStored,
// only after pin success (resolving the "commit CID/status together"
// open question).
func (r *InvoiceRepository) CommitUploadSuccess(ctx context.Context, id int64, cid, cidHash, immutableHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE invoices
		SET cid = $2, cid_hash = $3, immutable_hash = $4, status = $5, updated_at = now()
		WHERE id = $1 AND status = $6`,
		id, cid, cidHash, immutableHash, int(domain.InvoiceIpfsStored), int(domain.InvoiceIpfsInFlight))
	if err != nil {
		return fmt.Errorf("store: commit upload success: %w", err)
	}
	return nil
}

// CommitUploadFailure marks an invoice IpfsFailed (terminal) after a
// claimed upload attempt fails.
func (r *InvoiceRepository) CommitUploadFailure(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE invoices SET status = $2, updated_at = now() WHERE id = $1`,
		id, int(domain.InvoiceIpfsFailed))
	if err != nil {
		return fmt.Errorf("store: commit upload failure: %w", err)
	}
	return nil
}

// BatchCandidates returns invoices matching CreateBatchJob's work
// query: IpfsStored with a CID, not yet batched, FIFO.
func (r *InvoiceRepository) BatchCandidates(ctx context.Context, limit int) ([]*domain.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cid, immutable_hash
		FROM invoices
		WHERE status = $1 AND cid IS NOT NULL AND cid <> '' AND batch_id IS NULL
		ORDER BY created_at ASC
		LIMIT $2`, int(domain.InvoiceIpfsStored), limit)
	if err != nil {
		return nil, fmt.Errorf("store: batch candidates query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Invoice
	for rows.Next() {
		inv := &domain.Invoice{}
		var cid, hash sql.NullString
		if err := rows.Scan(&inv.ID, &cid, &hash); err != nil {
			return nil, fmt.Errorf("store: scan batch candidate: %w", err)
		}
		if cid.Valid {
			inv.CID = &cid.String
		}
		if hash.Valid {
			inv.ImmutableHash = &hash.String
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ClaimForBatch assigns batchID and transitions to Batched, claimed
// under its IpfsStored predicate.
func (r *InvoiceRepository) ClaimForBatch(ctx context.Context, tx *sql.Tx, id int64, batchID int64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE invoices
		SET batch_id = $2, status = $3, updated_at = now()
		WHERE id = $1 AND status = $4 AND batch_id IS NULL`,
		id, batchID, int(domain.InvoiceBatched), int(domain.InvoiceIpfsStored))
	if err != nil {
		return fmt.Errorf("store: claim for batch: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrClaimLost
	}
	return nil
}

// SubmitCandidateInvoiceIDs returns the ids of every invoice assigned
// to a batch, whatever their status.
func (r *InvoiceRepository) SubmitCandidateInvoiceIDs(ctx context.Context, batchID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM invoices WHERE batch_id = $1`, batchID)
	if err != nil {
		return nil, fmt.Errorf("store: submit candidates query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan submit candidate: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkBlockchainPending transitions every Batched invoice in a batch to
// BlockchainPending inside tx. The batch-creation path does this itself
// via SetMerkleProofsAndPending and does not call this method.
func (r *InvoiceRepository) MarkBlockchainPending(ctx context.Context, tx *sql.Tx, batchID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE invoices SET status = $2, updated_at = now()
		WHERE batch_id = $1 AND status = $3`,
		batchID, int(domain.InvoiceBlockchainPending), int(domain.InvoiceBatched))
	if err != nil {
		return fmt.Errorf("store: mark blockchain pending: %w", err)
	}
	return nil
}

// SetMerkleProofsAndPending stamps each claimed invoice's merkle proof
// and transitions it Batched -> BlockchainPending: invoices move into
// the blockchain-pending staging status during batch creation itself,
// ahead of the actual anchorBatch send.
func (r *InvoiceRepository) SetMerkleProofsAndPending(ctx context.Context, tx *sql.Tx, batchID int64, proofByCID map[string][]string) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, cid FROM invoices WHERE batch_id = $1 AND status = $2`,
		batchID, int(domain.InvoiceBatched))
	if err != nil {
		return fmt.Errorf("store: set merkle proofs query: %w", err)
	}
	type idCid struct {
		id  int64
		cid sql.NullString
	}
	var targets []idCid
	for rows.Next() {
		var t idCid
		if err := rows.Scan(&t.id, &t.cid); err != nil {
			rows.Close()
			return fmt.Errorf("store: scan merkle proof target: %w", err)
		}
		targets = append(targets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, t := range targets {
		var proofJoined string
		if t.cid.Valid {
			proofJoined = joinProof(proofByCID[t.cid.String])
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE invoices SET status = $2, merkle_proof = $3, updated_at = now()
			WHERE id = $1 AND status = $4`,
			t.id, int(domain.InvoiceBlockchainPending), proofJoined, int(domain.InvoiceBatched))
		if err != nil {
			return fmt.Errorf("store: stamp merkle proof invoice %d: %w", t.id, err)
		}
	}
	return nil
}

// RevertBatchClaims undoes a failed batch's invoice claims, resetting
// every member invoice back to IpfsStored with no batch assignment so
// it is picked up by a later CreateBatchJob run.
func (r *InvoiceRepository) RevertBatchClaims(ctx context.Context, batchID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE invoices
		SET batch_id = NULL, status = $2, merkle_proof = NULL, updated_at = now()
		WHERE batch_id = $1`,
		batchID, int(domain.InvoiceIpfsStored))
	if err != nil {
		return fmt.Errorf("store: revert batch claims: %w", err)
	}
	return nil
}

// MarkBatchConfirmed transitions every invoice in a batch from
// BlockchainPending to BlockchainConfirmed after the confirmation
// poller observes a successful, sufficiently-confirmed receipt.
func (r *InvoiceRepository) MarkBatchConfirmed(ctx context.Context, batchID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE invoices SET status = $2, updated_at = now()
		WHERE batch_id = $1 AND status = $3`,
		batchID, int(domain.InvoiceBlockchainConfirmed), int(domain.InvoiceBlockchainPending))
	if err != nil {
		return fmt.Errorf("store: mark batch confirmed: %w", err)
	}
	return nil
}

// FinalizeBatchInvoices moves every BlockchainConfirmed invoice in a
// batch to Finalized. An invoice's merkle proof is overwritten only when
// proofByCID has an entry for its CID; with a nil map the stored proofs
// are kept as they are.
func (r *InvoiceRepository) FinalizeBatchInvoices(ctx context.Context, batchID int64, proofByCID map[string][]string) error {
	rows, err := r.db.QueryContext(ctx, `SELECT id, cid FROM invoices WHERE batch_id = $1 AND status = $2`,
		batchID, int(domain.InvoiceBlockchainConfirmed))
	if err != nil {
		return fmt.Errorf("store: finalize query: %w", err)
	}
	type idCid struct {
		id  int64
		cid sql.NullString
	}
	var targets []idCid
	for rows.Next() {
		var t idCid
		if err := rows.Scan(&t.id, &t.cid); err != nil {
			rows.Close()
			return fmt.Errorf("store: scan finalize target: %w", err)
		}
		targets = append(targets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, t := range targets {
		var proof []string
		var hasProof bool
		if t.cid.Valid {
			proof, hasProof = proofByCID[t.cid.String]
		}
		if hasProof {
			_, err = r.db.ExecContext(ctx, `
				UPDATE invoices SET status = $2, merkle_proof = $3, updated_at = now()
				WHERE id = $1`, t.id, int(domain.InvoiceFinalized), joinProof(proof))
		} else {
			_, err = r.db.ExecContext(ctx, `
				UPDATE invoices SET status = $2, updated_at = now()
				WHERE id = $1`, t.id, int(domain.InvoiceFinalized))
		}
		if err != nil {
			return fmt.Errorf("store: finalize invoice %d: %w", t.id, err)
		}
	}
	return nil
}

// MarkBlockchainFailed transitions every invoice in a batch to the
// terminal BlockchainFailed status.
func (r *InvoiceRepository) MarkBlockchainFailed(ctx context.Context, batchID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE invoices SET status = $2, updated_at = now() WHERE batch_id = $1`,
		batchID, int(domain.InvoiceBlockchainFailed))
	if err != nil {
		return fmt.Errorf("store: mark blockchain failed: %w", err)
	}
	return nil
}

// SweepStaleClaims resets invoices stuck in the IpfsInFlight
// intermediate state past olderThan back to Uploaded, so a worker that
// died mid-claim does not strand the row forever.
func (r *InvoiceRepository) SweepStaleClaims(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE invoices SET status = $1, updated_at = now()
		WHERE status = $2 AND updated_at < $3`,
		int(domain.InvoiceUploaded), int(domain.InvoiceIpfsInFlight), time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("store: sweep stale claims: %w", err)
	}
	return result.RowsAffected()
}

// GetByID fetches one invoice header (without its lines) for the
// verifyInvoice query path.
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	var cid, cidHash, immutableHash, merkleProof sql.NullString
	var batchID sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, invoice_number, tenant_org_id, status, cid, cid_hash, immutable_hash, merkle_proof, batch_id, created_at, updated_at
		FROM invoices WHERE id = $1`, id).Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.TenantOrgID, &inv.Status,
		&cid, &cidHash, &immutableHash, &merkleProof, &batchID, &inv.CreatedAt, &inv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get invoice by id: %w", err)
	}
	if cid.Valid {
		inv.CID = &cid.String
	}
	if cidHash.Valid {
		inv.CIDHash = &cidHash.String
	}
	if immutableHash.Valid {
		inv.ImmutableHash = &immutableHash.String
	}
	if merkleProof.Valid && merkleProof.String != "" {
		inv.MerkleProof = splitProof(merkleProof.String)
	}
	if batchID.Valid {
		inv.BatchID = &batchID.Int64
	}
	return inv, nil
}

// GetForCanonicalization loads the full invoice, including its line
// items, needed to re-derive the canonical bytes and immutable hash
// ahead of an IPFS pin.
func (r *InvoiceRepository) GetForCanonicalization(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	var formNumber, serial, sellerTaxID, sellerAddr, sellerEmail, sellerPhone sql.NullString
	var custTaxID, custAddr, custEmail, custPhone, note sql.NullString
	var subTotal, taxAmount, discount, total string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, invoice_number, form_number, serial, tenant_org_id, issued_by_user_id,
			seller_name, seller_tax_id, seller_address, seller_email, seller_phone,
			customer_name, customer_tax_id, customer_address, customer_email, customer_phone,
			status, issued_date, sub_total, tax_amount, discount_amount, total_amount, currency, note,
			created_at, updated_at
		FROM invoices WHERE id = $1`, id).Scan(
		&inv.ID, &inv.InvoiceNumber, &formNumber, &serial, &inv.TenantOrgID, &inv.IssuedByUser,
		&inv.Seller.Name, &sellerTaxID, &sellerAddr, &sellerEmail, &sellerPhone,
		&inv.Customer.Name, &custTaxID, &custAddr, &custEmail, &custPhone,
		&inv.Status, &inv.IssuedDate, &subTotal, &taxAmount, &discount, &total, &inv.Currency, &note,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get invoice for canonicalization: %w", err)
	}
	inv.FormNumber = formNumber.String
	inv.Serial = serial.String
	inv.Seller.TaxID = sellerTaxID.String
	inv.Seller.Address = sellerAddr.String
	inv.Seller.Email = sellerEmail.String
	inv.Seller.Phone = sellerPhone.String
	inv.Customer.TaxID = custTaxID.String
	inv.Customer.Address = custAddr.String
	inv.Customer.Email = custEmail.String
	inv.Customer.Phone = custPhone.String
	inv.Note = note.String

	if inv.SubTotal, err = domain.ParseDecimalAuto(subTotal); err != nil {
		return nil, fmt.Errorf("store: parse sub_total: %w", err)
	}
	if inv.TaxAmount, err = domain.ParseDecimalAuto(taxAmount); err != nil {
		return nil, fmt.Errorf("store: parse tax_amount: %w", err)
	}
	if inv.Discount, err = domain.ParseDecimalAuto(discount); err != nil {
		return nil, fmt.Errorf("store: parse discount_amount: %w", err)
	}
	if inv.Total, err = domain.ParseDecimalAuto(total); err != nil {
		return nil, fmt.Errorf("store: parse total_amount: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT line_number, description, unit, quantity, unit_price, discount, tax_rate, tax_amount, line_total
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY line_number ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("store: load invoice lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.InvoiceLine
		var unit sql.NullString
		var qty, price, lineDiscount, taxRate, lineTax, lineTotal string
		if err := rows.Scan(&l.LineNumber, &l.Description, &unit, &qty, &price, &lineDiscount, &taxRate, &lineTax, &lineTotal); err != nil {
			return nil, fmt.Errorf("store: scan invoice line: %w", err)
		}
		l.Unit = unit.String
		if l.Quantity, err = domain.ParseDecimalAuto(qty); err != nil {
			return nil, fmt.Errorf("store: parse line quantity: %w", err)
		}
		if l.UnitPrice, err = domain.ParseDecimalAuto(price); err != nil {
			return nil, fmt.Errorf("store: parse line unit_price: %w", err)
		}
		if l.Discount, err = domain.ParseDecimalAuto(lineDiscount); err != nil {
			return nil, fmt.Errorf("store: parse line discount: %w", err)
		}
		if l.TaxRate, err = domain.ParseDecimalAuto(taxRate); err != nil {
			return nil, fmt.Errorf("store: parse line tax_rate: %w", err)
		}
		if l.TaxAmount, err = domain.ParseDecimalAuto(lineTax); err != nil {
			return nil, fmt.Errorf("store: parse line tax_amount: %w", err)
		}
		if l.LineTotal, err = domain.ParseDecimalAuto(lineTotal); err != nil {
			return nil, fmt.Errorf("store: parse line line_total: %w", err)
		}
		inv.Lines = append(inv.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return inv, nil
}

// claimTransition performs the single-row conditional update used by
// upload claims, returning ErrClaimLost on zero affected rows.
func (r *InvoiceRepository) claimTransition(ctx context.Context, id int64, expected, next domain.InvoiceStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE invoices SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, int(next), int(expected))
	if err != nil {
		return fmt.Errorf("store: claim transition: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrClaimLost
	}
	return nil
}

func joinProof(proof []string) string {
	out := ""
	for i, p := range proof {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

func splitProof(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
