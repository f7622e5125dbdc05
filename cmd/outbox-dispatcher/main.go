package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lumenpictures/budget_backend/config"
	"github.com/lumenpictures/budget_backend/workflow"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := config.GetLogger()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	if topic := os.Getenv("RECORD_SYNC_TOPIC"); topic != "" {
		client, err := config.GetClient(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pubsub client: %v\n", err)
			os.Exit(1)
		}
		if _, err := config.CreateTopicIfNotExists(client, topic); err != nil {
			fmt.Fprintf(os.Stderr, "ensure topic %s: %v\n", topic, err)
			os.Exit(1)
		}
	}

	dispatcher := workflow.NewOutboxDispatcher(db, logger)
	logger.WithField("dispatcher_id", dispatcher.DispatcherID).Info("outbox dispatcher starting")
	dispatcher.Run(ctx)
	logger.Info("outbox dispatcher stopped")
}
