package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/lumenpictures/budget_backend/config"
	"github.com/lumenpictures/budget_backend/models"
	"github.com/lumenpictures/budget_backend/workflow"
)

func main() {
	skipMigrate := flag.Bool("skip-migrate", false, "Skip schema auto-migration before ingesting.")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: polog-ingest [flags] <po-log-file> [<po-log-file>...]")
		os.Exit(2)
	}

	ctx := context.Background()
	logger := config.GetLogger()

	// Explicit DB connect (config does not connect in init()).
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	// Redis is optional; without it the group lock and tax cache degrade.
	config.ConnectRedisWithRetry()

	if !*skipMigrate {
		models.MigrateTable()
	}

	batches := workflow.NewBatchService(db, logger)

	exitCode := 0
	for _, path := range flag.Args() {
		if err := batches.IngestFile(ctx, path); err != nil {
			fmt.Fprintf(os.Stderr, "ingest %s: %v\n", path, err)
			exitCode = 1
			continue
		}
		fmt.Printf("ingested %s\n", path)
	}
	os.Exit(exitCode)
}
