package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrey/invoice-pipeline/internal/domain"
	"github.com/andrey/invoice-pipeline/internal/ipfsclient"
	"github.com/andrey/invoice-pipeline/internal/store"
	"github.com/andrey/invoice-pipeline/internal/store/storetest"
)

// TestPipeline_Integration exercises UploadToIpfsJob and CreateBatchJob
// end to end against a real Postgres instance and a stubbed IPFS gateway,
// mirroring the shape of store's own integration test (container
// lifecycle, testing.Short guard, shared fixtures across subtests).
func TestPipeline_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pg, err := storetest.NewPostgresContainer(ctx, storetest.PostgresContainerConfig{})
	require.NoError(t, err)
	defer pg.Terminate(ctx)

	dsn, err := pg.DSN(ctx)
	require.NoError(t, err)

	client, err := store.New(ctx, store.Config{DSN: dsn, MaxOpenConns: 5}, nil)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.MigrateUp(ctx))

	invoiceRepo := store.NewInvoiceRepository(client.DB())
	batchRepo := store.NewBatchRepository(client.DB())

	gateway := newFakeGateway(t)
	defer gateway.Close()

	ipfs := ipfsclient.New(ipfsclient.Config{
		GatewayURL:    gateway.URL,
		RatePerMinute: 600,
		RetryBase:     1,
		MaxRetries:    1,
	}, nil)
	defer ipfs.Close()

	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.BatchesPerRun = 2
	cfg.ConcurrentUploads = 4
	k := New(invoiceRepo, batchRepo, ipfs, nil, cfg, nil)

	t.Run("UploadToIpfsJob_PinsAndTransitionsInvoices", func(t *testing.T) {
		ids := []int64{
			insertFullInvoice(t, ctx, client, "INV-U1"),
			insertFullInvoice(t, ctx, client, "INV-U2"),
		}

		outcome, err := k.UploadToIpfsJob(ctx, true, false)
		require.NoError(t, err)
		assert.Equal(t, 2, outcome.SuccessCount)

		for _, id := range ids {
			inv, err := invoiceRepo.GetByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, domain.InvoiceIpfsStored, inv.Status)
			require.NotNil(t, inv.CID)
			assert.NotEmpty(t, *inv.CID)
		}
	})

	t.Run("CreateBatchJob_BatchesStoredInvoices", func(t *testing.T) {
		id1 := insertFullInvoice(t, ctx, client, "INV-B1")
		id2 := insertFullInvoice(t, ctx, client, "INV-B2")
		_, err := k.UploadToIpfsJob(ctx, true, false)
		require.NoError(t, err)

		outcome, err := k.CreateBatchJob(ctx, true, false)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, outcome.SuccessCount, 1)

		inv1, err := invoiceRepo.GetByID(ctx, id1)
		require.NoError(t, err)
		inv2, err := invoiceRepo.GetByID(ctx, id2)
		require.NoError(t, err)

		assert.Equal(t, domain.InvoiceBlockchainPending, inv1.Status)
		assert.Equal(t, domain.InvoiceBlockchainPending, inv2.Status)
		require.NotNil(t, inv1.BatchID)
		assert.Equal(t, *inv1.BatchID, *inv2.BatchID)

		batch, err := batchRepo.GetByID(ctx, *inv1.BatchID)
		require.NoError(t, err)
		assert.Equal(t, domain.BatchReadyToSend, batch.Status)
		require.NotNil(t, batch.MerkleRoot)
	})
}

// newFakeGateway serves just enough of the IPFS HTTP API for PinJSON and
// GetJSON to round-trip: every add request returns a CID derived from a
// request counter, and pinned bodies are retrievable by that CID.
func newFakeGateway(t *testing.T) *httptest.Server {
	t.Helper()
	store := map[string][]byte{}
	counter := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/add", func(w http.ResponseWriter, r *http.Request) {
		counter++
		cid := "QmFake" + string(rune('A'+counter%26)) + string(rune('0'+counter/26))
		body := make([]byte, 0)
		buf := make([]byte, 4096)
		for {
			n, err := r.Body.Read(buf)
			body = append(body, buf[:n]...)
			if err != nil {
				break
			}
		}
		store[cid] = body
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Hash":"` + cid + `"}`))
	})
	mux.HandleFunc("/ipfs/", func(w http.ResponseWriter, r *http.Request) {
		cid := r.URL.Path[len("/ipfs/"):]
		body, ok := store[cid]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(body)
	})
	return httptest.NewServer(mux)
}

func insertFullInvoice(t *testing.T, ctx context.Context, client *store.Client, number string) int64 {
	t.Helper()
	var id int64
	err := client.DB().QueryRowContext(ctx, `
		INSERT INTO invoices (
			invoice_number, tenant_org_id, issued_by_user_id,
			seller_name, customer_name, status, issued_date,
			sub_total, tax_amount, discount_amount, total_amount, currency
		) VALUES ($1, $2, $3, $4, $5, $6, now(), $7, $8, $9, $10, $11)
		RETURNING id`,
		number, "tenant-1", "user-1",
		"Seller Co", "Customer Co", int(domain.InvoiceUploaded),
		"100.00", "10.00", "0.00", "110.00", "USD",
	).Scan(&id)
	require.NoError(t, err)

	_, err = client.DB().ExecContext(ctx, `
		INSERT INTO invoice_lines (invoice_id, line_number, description, unit, quantity, unit_price, line_total)
		VALUES ($1, 1, 'Widget', 'pcs', '1.00', '100.00', '100.00')`, id)
	require.NoError(t, err)

	return id
}
