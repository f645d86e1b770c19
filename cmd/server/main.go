package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/andrey/invoice-pipeline/internal/api"
	"github.com/andrey/invoice-pipeline/internal/chainclient"
	"github.com/andrey/invoice-pipeline/internal/config"
	"github.com/andrey/invoice-pipeline/internal/ipfsclient"
	"github.com/andrey/invoice-pipeline/internal/logging"
	"github.com/andrey/invoice-pipeline/internal/pipeline"
	"github.com/andrey/invoice-pipeline/internal/scheduler"
	"github.com/andrey/invoice-pipeline/internal/store"
)

func main() {
	opts, err := config.ParseCLI(os.Args[1:])
	if err != nil {
		log.Fatalf("parse cli flags: %v", err)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		log.Fatalf("load config %s: %v", opts.ConfigPath, err)
	}
	cfg.ApplyCLI(opts)

	logger := logging.New(cfg.Logging.Level)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(ctx, store.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer db.Close()

	if err := db.MigrateUp(ctx); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	ipfs := ipfsclient.New(ipfsclient.Config{
		GatewayURL:    cfg.IPFS.GatewayURL,
		RatePerMinute: cfg.IPFS.RatePerMinute,
		RetryBase:     cfg.IPFS.RetryBase,
		MaxRetries:    cfg.IPFS.MaxRetries,
		Timeout:       cfg.IPFS.Timeout,
	}, logger)
	defer ipfs.Close()

	var maxGasPrice *big.Int
	if cfg.Ethereum.MaxGasPriceWei != "" {
		maxGasPrice, _ = new(big.Int).SetString(cfg.Ethereum.MaxGasPriceWei, 10)
	}

	var chain *chainclient.Client
	if cfg.Ethereum.RPCURL != "" {
		chain, err = chainclient.New(ctx, chainclient.Config{
			RPCURL:          cfg.Ethereum.RPCURL,
			PrivateKey:      cfg.Ethereum.PrivateKey,
			ContractAddress: cfg.Ethereum.ContractAddress,
			MaxGasPrice:     maxGasPrice,
			GasHeadroomPct:  cfg.Ethereum.GasHeadroomPct,
			RetryBase:       cfg.Ethereum.RetryBase,
			MaxRetries:      cfg.Ethereum.MaxRetries,
		}, logger)
		if err != nil {
			log.Fatalf("connect to chain rpc: %v", err)
		}
	} else {
		logger.Logf("WARN no ethereum.rpcUrl configured, running without a chain client")
	}

	invoices := store.NewInvoiceRepository(db.DB())
	batches := store.NewBatchRepository(db.DB())

	pipelineCfg := pipeline.DefaultConfig()
	if cfg.Pipeline.MaxInvoicesPerRun > 0 {
		pipelineCfg.MaxInvoicesPerRun = cfg.Pipeline.MaxInvoicesPerRun
	}
	if cfg.Pipeline.ConcurrentUploads > 0 {
		pipelineCfg.ConcurrentUploads = cfg.Pipeline.ConcurrentUploads
	}
	if cfg.Pipeline.BatchSize > 0 {
		pipelineCfg.BatchSize = cfg.Pipeline.BatchSize
	}
	if cfg.Pipeline.BatchesPerRun > 0 {
		pipelineCfg.BatchesPerRun = cfg.Pipeline.BatchesPerRun
	}
	if cfg.Pipeline.ConfirmationBlocks > 0 {
		pipelineCfg.ConfirmationBlocks = cfg.Pipeline.ConfirmationBlocks
	}
	if cfg.Pipeline.ConfirmationTimeout > 0 {
		pipelineCfg.ConfirmationTimeout = cfg.Pipeline.ConfirmationTimeout
	}
	if cfg.Pipeline.SubmitPause > 0 {
		pipelineCfg.SubmitPause = cfg.Pipeline.SubmitPause
	}

	kernel := pipeline.New(invoices, batches, ipfs, chain, pipelineCfg, logger)

	dryRun := opts.DryRun
	jobs := []scheduler.Job{
		{
			Name:     "upload-to-ipfs",
			Interval: cfg.Scheduler.UploadInterval,
			Run: func(ctx context.Context, _, _ bool) error {
				_, err := kernel.UploadToIpfsJob(ctx, false, dryRun)
				return err
			},
		},
		{
			Name:     "create-batch",
			Interval: cfg.Scheduler.BatchInterval,
			Run: func(ctx context.Context, _, _ bool) error {
				_, err := kernel.CreateBatchJob(ctx, false, dryRun)
				return err
			},
		},
		{
			Name:     "submit-to-blockchain",
			Interval: cfg.Scheduler.SubmitInterval,
			Run: func(ctx context.Context, _, _ bool) error {
				_, err := kernel.SubmitToBlockchainJob(ctx, false, dryRun)
				return err
			},
		},
		{
			Name:     "sweep-stale-claims",
			Interval: cfg.Scheduler.SweepInterval,
			Run: func(ctx context.Context, _, _ bool) error {
				_, err := kernel.StaleClaimSweepJob(ctx, dryRun)
				return err
			},
		},
	}

	sched := scheduler.New(jobs, logger)
	go sched.Start(ctx)

	server := api.NewServer(kernel, logger, api.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, func() error { return db.Ping(ctx) })

	logger.Logf("INFO starting invoice-pipeline server")
	if err := server.Start(); err != nil {
		logger.Logf("ERROR server stopped: %v", err)
	}
}
