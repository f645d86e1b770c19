package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrey/invoice-pipeline/internal/domain"
	"github.com/andrey/invoice-pipeline/internal/store/storetest"
)

// TestInvoiceRepository_Integration exercises the claim protocol against
// a real Postgres instance via testcontainers: container lifecycle,
// then a series of named subtests sharing one live database.
func TestInvoiceRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pg, err := storetest.NewPostgresContainer(ctx, storetest.PostgresContainerConfig{})
	require.NoError(t, err)
	defer pg.Terminate(ctx)

	dsn, err := pg.DSN(ctx)
	require.NoError(t, err)

	client, err := New(ctx, Config{DSN: dsn, MaxOpenConns: 5}, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.MigrateUp(ctx))

	invoiceRepo := NewInvoiceRepository(client.DB())
	batchRepo := NewBatchRepository(client.DB())

	t.Run("ClaimForUpload_SecondClaimLoses", func(t *testing.T) {
		id := insertTestInvoice(t, ctx, client, domain.InvoiceUploaded)

		require.NoError(t, invoiceRepo.ClaimForUpload(ctx, id))
		err := invoiceRepo.ClaimForUpload(ctx, id)
		assert.ErrorIs(t, err, ErrClaimLost)
	})

	t.Run("CommitUploadSuccess_TransitionsToIpfsStored", func(t *testing.T) {
		id := insertTestInvoice(t, ctx, client, domain.InvoiceUploaded)
		require.NoError(t, invoiceRepo.ClaimForUpload(ctx, id))
		require.NoError(t, invoiceRepo.CommitUploadSuccess(ctx, id, "QmTest", "cidhash", "immutablehash"))

		inv, err := invoiceRepo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.InvoiceIpfsStored, inv.Status)
		require.NotNil(t, inv.CID)
		assert.Equal(t, "QmTest", *inv.CID)
	})

	t.Run("ConcurrentClaims_OnlyOneWinner", func(t *testing.T) {
		id := insertTestInvoice(t, ctx, client, domain.InvoiceUploaded)

		results := make(chan error, 10)
		for i := 0; i < 10; i++ {
			go func() {
				results <- invoiceRepo.ClaimForUpload(ctx, id)
			}()
		}

		wins, losses := 0, 0
		for i := 0; i < 10; i++ {
			err := <-results
			if err == nil {
				wins++
			} else {
				require.ErrorIs(t, err, ErrClaimLost)
				losses++
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 9, losses)
	})

	t.Run("SweepStaleClaims_ResetsStrandedRows", func(t *testing.T) {
		id := insertTestInvoice(t, ctx, client, domain.InvoiceUploaded)
		require.NoError(t, invoiceRepo.ClaimForUpload(ctx, id))

		_, err := client.DB().ExecContext(ctx,
			`UPDATE invoices SET updated_at = now() - interval '1 hour' WHERE id = $1`, id)
		require.NoError(t, err)

		n, err := invoiceRepo.SweepStaleClaims(ctx, 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		inv, err := invoiceRepo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.InvoiceUploaded, inv.Status)
	})

	t.Run("BatchClaimProtocol_OneBatchPerInvoice", func(t *testing.T) {
		id := insertTestInvoice(t, ctx, client, domain.InvoiceIpfsStored)
		_, err := client.DB().ExecContext(ctx, `UPDATE invoices SET cid = 'QmBatched' WHERE id = $1`, id)
		require.NoError(t, err)

		tx, err := batchRepo.BeginTx(ctx)
		require.NoError(t, err)
		batchID, err := batchRepo.CreateBatch(ctx, tx, "batch-001", 1)
		require.NoError(t, err)
		require.NoError(t, invoiceRepo.ClaimForBatch(ctx, tx, id, batchID))
		require.NoError(t, tx.Commit())

		inv, err := invoiceRepo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.InvoiceBatched, inv.Status)
		require.NotNil(t, inv.BatchID)
		assert.Equal(t, batchID, *inv.BatchID)
	})
}

func insertTestInvoice(t *testing.T, ctx context.Context, client *Client, status domain.InvoiceStatus) int64 {
	t.Helper()
	var id int64
	err := client.DB().QueryRowContext(ctx, `
		INSERT INTO invoices (
			invoice_number, tenant_org_id, issued_by_user_id,
			seller_name, customer_name, status, issued_date,
			sub_total, tax_amount, discount_amount, total_amount, currency
		) VALUES ($1, $2, $3, $4, $5, $6, now(), $7, $8, $9, $10, $11)
		RETURNING id`,
		"INV-001", "tenant-1", "user-1",
		"Seller Co", "Customer Co", int(status),
		"100.00", "10.00", "0.00", "110.00", "USD",
	).Scan(&id)
	require.NoError(t, err)
	return id
}
