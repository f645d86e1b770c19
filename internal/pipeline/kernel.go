// Package pipeline is the invoice pipeline kernel: the three recurring
// jobs (UploadToIpfsJob, CreateBatchJob, SubmitToBlockchainJob), the
// in-process confirmation poller, and the stale-claim sweep and
// verifyInvoice query built alongside them. A single logger/config-
// carrying service struct shares one claim-protocol-backed kernel
// across all of the independently schedulable jobs.
package pipeline

import (
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/semaphore"

	"github.com/andrey/invoice-pipeline/internal/chainclient"
	"github.com/andrey/invoice-pipeline/internal/ipfsclient"
	"github.com/andrey/invoice-pipeline/internal/store"
)

// Config holds the per-job tunables governing run size, batching, and
// submission pacing.
type Config struct {
	MaxInvoicesPerRun  int
	ConcurrentUploads  int
	BatchSize          int
	BatchesPerRun      int
	ConfirmationBlocks uint64
	ConfirmationTimeout time.Duration
	SubmitPause        time.Duration
}

// DefaultConfig returns reasonable operational defaults an administrator
// is expected to override per deployment.
func DefaultConfig() Config {
	return Config{
		MaxInvoicesPerRun:   200,
		ConcurrentUploads:   8,
		BatchSize:           50,
		BatchesPerRun:       4,
		ConfirmationBlocks:  12,
		ConfirmationTimeout: 30 * time.Minute,
		SubmitPause:         2 * time.Second,
	}
}

// Outcome aggregates per-item results for one job run: a failure in one
// item never halts the run, and per-item outcomes are aggregated and
// reported.
type Outcome struct {
	SuccessCount int
	FailureCount int
	SkippedCount int
}

func (o *Outcome) recordSuccess() { o.SuccessCount++ }
func (o *Outcome) recordFailure() { o.FailureCount++ }
func (o *Outcome) recordSkip()    { o.SkippedCount++ }

// Kernel wires the three jobs to their shared dependencies: the
// database repositories, the IPFS and chain clients, and a logger.
type Kernel struct {
	invoices *store.InvoiceRepository
	batches  *store.BatchRepository
	ipfs     *ipfsclient.Client
	chain    *chainclient.Client
	cfg      Config
	log      lgr.L
	uploadSem *semaphore.Weighted
}

// New builds a Kernel. cfg.ConcurrentUploads bounds UploadToIpfsJob's
// per-invoice parallelism via a weighted semaphore.
func New(invoices *store.InvoiceRepository, batches *store.BatchRepository, ipfs *ipfsclient.Client, chain *chainclient.Client, cfg Config, log lgr.L) *Kernel {
	if log == nil {
		log = lgr.NoOp
	}
	if cfg.ConcurrentUploads <= 0 {
		cfg.ConcurrentUploads = 1
	}
	return &Kernel{
		invoices:  invoices,
		batches:   batches,
		ipfs:      ipfs,
		chain:     chain,
		cfg:       cfg,
		log:       log,
		uploadSem: semaphore.NewWeighted(int64(cfg.ConcurrentUploads)),
	}
}
