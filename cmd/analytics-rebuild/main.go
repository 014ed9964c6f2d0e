package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Utsav173/expense-tracker-sub003/config"
	"github.com/Utsav173/expense-tracker-sub003/models"
	"github.com/joho/godotenv"
)

// Rebuilds the analytics row (and stored balance) of one account, or of
// every account, from transaction history. Safe to run while the API is
// serving: each rebuild locks its account row.
func main() {
	accountID := flag.Int("account-id", 0, "Optional: rebuild a single account")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing accounts and continue rebuilding others")
	flag.Parse()

	godotenv.Load()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := context.Background()

	var accountIds []int
	if *accountID > 0 {
		accountIds = append(accountIds, *accountID)
	} else {
		if err := db.Model(&models.Account{}).Order("id").Pluck("id", &accountIds).Error; err != nil {
			fmt.Fprintf(os.Stderr, "discover accounts: %v\n", err)
			os.Exit(1)
		}
	}

	failed := 0
	for _, id := range accountIds {
		fmt.Printf("rebuilding analytics for account=%d\n", id)
		if err := models.ResyncAccountAnalytics(ctx, id); err != nil {
			if *continueOnError {
				failed++
				fmt.Fprintf(os.Stderr, "rebuild failed (skipping) account=%d: %v\n", id, err)
				continue
			}
			fmt.Fprintf(os.Stderr, "rebuild failed account=%d: %v\n", id, err)
			os.Exit(1)
		}
	}

	fmt.Printf("analytics rebuild complete: accounts=%d failed=%d\n", len(accountIds), failed)
	if failed > 0 {
		os.Exit(1)
	}
}
