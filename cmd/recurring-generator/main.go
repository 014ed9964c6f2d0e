package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Utsav173/expense-tracker-sub003/config"
	"github.com/Utsav173/expense-tracker-sub003/workflow"
	"github.com/joho/godotenv"
)

// Runs one recurring generation pass and exits; meant to be invoked by a
// scheduler (cron, Cloud Scheduler). Overlapping invocations are safe: the
// pass holds a distributed lock while it runs.
func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "Maximum duration of the generation pass")
	flag.Parse()

	godotenv.Load()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	config.ConnectRedis()

	logger := config.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := workflow.RunRecurringGenerationPass(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation pass failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("generation pass complete: generated=%d skipped=%d errored=%d\n",
		result.Generated, result.Skipped, result.Errored)
	if result.Errored > 0 {
		os.Exit(1)
	}
}
