package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/go-pkgz/lgr"

	"github.com/andrey/invoice-pipeline/internal/config"
	"github.com/andrey/invoice-pipeline/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the YAML config file")
		verbose    = flag.Bool("verbose", false, "enable verbose logging")
	)
	flag.Parse()

	logger := lgr.NoOp
	if *verbose {
		logger = lgr.New(lgr.Msec, lgr.LevelBraces, lgr.CallerFile, lgr.CallerFunc).Logf
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := store.New(ctx, store.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.MigrateUp(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("migrations applied successfully")
}
