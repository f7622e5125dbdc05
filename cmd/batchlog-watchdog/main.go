package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/lumenpictures/budget_backend/config"
	"github.com/lumenpictures/budget_backend/workflow"
)

func main() {
	maxAgeMinutes := flag.Int("max-age-minutes", 60, "Reset STARTED batch rows older than this.")
	flag.Parse()

	ctx := context.Background()
	logger := config.GetLogger()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	reset := workflow.ResetStaleBatches(ctx, db, logger, time.Duration(*maxAgeMinutes)*time.Minute)
	fmt.Printf("reset %d stale batch log(s)\n", reset)
}
