package models_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Utsav173/expense-tracker-sub003/config"
	"github.com/Utsav173/expense-tracker-sub003/models"
	"github.com/Utsav173/expense-tracker-sub003/utils"
	"github.com/shopspring/decimal"
)

// Ledger regression harness.
//
// Non-negotiable safety: this test is intended to catch changes that would
// break the core bookkeeping identity
//
//	analytics.balance == analytics.income - analytics.expense == account.balance
//
// across create / update / delete / bulk, and the idempotence of a full
// analytics rebuild.
//
// Usage: INTEGRATION_TESTS=1 go test ./models -run LedgerRegression -v
// (requires a reachable MySQL configured via the usual DB_* env vars)

func requireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run DB-backed regression tests")
	}
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		t.Fatal("database not initialized")
	}
	if err := models.MigrateDatabase(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedUserAndAccount(t *testing.T, ctx context.Context, openingBalance string) (*models.User, *models.Account) {
	t.Helper()
	now := time.Now().UnixNano()

	user, err := models.CreateUser(ctx, &models.NewUser{
		Name:     "Ledger Regression",
		Email:    fmt.Sprintf("ledger-regression-%d@example.com", now),
		Password: "regression-password",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	account, err := models.CreateAccount(ctx, user.ID, &models.NewAccount{
		Name:    fmt.Sprintf("regression-%d", now),
		Balance: mustDec(openingBalance),
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return user, account
}

// assertIdentity checks the bookkeeping identity between the account row and
// its analytics row.
func assertIdentity(t *testing.T, ctx context.Context, ownerId, accountId int, wantIncome, wantExpense, wantBalance string) {
	t.Helper()

	account, err := models.GetAccount(ctx, ownerId, accountId)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	analytics, err := models.GetAccountAnalytics(ctx, ownerId, accountId)
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}

	if !analytics.Income.Equal(mustDec(wantIncome)) {
		t.Fatalf("income = %s, want %s", analytics.Income, wantIncome)
	}
	if !analytics.Expense.Equal(mustDec(wantExpense)) {
		t.Fatalf("expense = %s, want %s", analytics.Expense, wantExpense)
	}
	if !analytics.Balance.Equal(mustDec(wantBalance)) {
		t.Fatalf("analytics balance = %s, want %s", analytics.Balance, wantBalance)
	}
	if !account.Balance.Equal(analytics.Balance) {
		t.Fatalf("account balance %s != analytics balance %s", account.Balance, analytics.Balance)
	}
	if !analytics.Balance.Equal(analytics.Income.Sub(analytics.Expense)) {
		t.Fatalf("balance %s != income - expense (%s - %s)", analytics.Balance, analytics.Income, analytics.Expense)
	}
}

func TestLedgerRegressionScenario(t *testing.T) {
	requireIntegration(t)
	ctx := context.Background()

	user, account := seedUserAndAccount(t, ctx, "1000")
	actor := models.UserActor(user.ID)

	// opening balance seeds income so the identity holds from day one
	assertIdentity(t, ctx, user.ID, account.ID, "1000", "0", "1000")

	// the opening balance is a real row in history, not loose seed state
	history, err := models.GetTransactions(ctx, user.ID, account.ID, "", "UTC", 1)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected the opening balance row, got %d rows", len(history))
	}
	if !history[0].Amount.Equal(mustDec("1000")) || !*history[0].IsIncome {
		t.Fatalf("opening row = amount %s income %v, want 1000 income", history[0].Amount, *history[0].IsIncome)
	}

	// income 500
	income := mustDec("500")
	_, err = models.CreateTransaction(ctx, actor, &models.NewTransaction{
		AccountId: account.ID,
		Amount:    income,
		IsIncome:  utils.NewTrue(),
		Text:      "salary",
	})
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	assertIdentity(t, ctx, user.ID, account.ID, "1500", "0", "1500")

	// expense 300
	expenseAmount := mustDec("300")
	expense, err := models.CreateTransaction(ctx, actor, &models.NewTransaction{
		AccountId: account.ID,
		Amount:    expenseAmount,
		IsIncome:  utils.NewFalse(),
		Text:      "rent",
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	assertIdentity(t, ctx, user.ID, account.ID, "1500", "300", "1200")

	// raise the expense to 500; the expense percentage reflects 300 -> 500
	newAmount := mustDec("500")
	_, err = models.UpdateTransaction(ctx, expense.ID, user.ID, &models.TransactionUpdates{
		Amount: &newAmount,
	})
	if err != nil {
		t.Fatalf("update expense: %v", err)
	}
	assertIdentity(t, ctx, user.ID, account.ID, "1500", "500", "1000")

	analytics, err := models.GetAccountAnalytics(ctx, user.ID, account.ID)
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}
	if !analytics.ExpensesPercentageChange.Equal(mustDec("66.67")) {
		t.Fatalf("expense pct = %s, want 66.67", analytics.ExpensesPercentageChange)
	}

	// delete the expense: exact reversal
	if err := models.DeleteTransaction(ctx, expense.ID, user.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}
	assertIdentity(t, ctx, user.ID, account.ID, "1500", "0", "1500")
}

func TestLedgerRegressionInsufficientFunds(t *testing.T) {
	requireIntegration(t)
	ctx := context.Background()

	user, account := seedUserAndAccount(t, ctx, "100")
	actor := models.UserActor(user.ID)

	_, err := models.CreateTransaction(ctx, actor, &models.NewTransaction{
		AccountId: account.ID,
		Amount:    mustDec("250"),
		IsIncome:  utils.NewFalse(),
		Text:      "too big",
	})
	if err != utils.ErrorInsufficientFunds {
		t.Fatalf("expected ErrorInsufficientFunds, got %v", err)
	}

	// nothing moved
	assertIdentity(t, ctx, user.ID, account.ID, "100", "0", "100")
}

func TestLedgerRegressionBulkImport(t *testing.T) {
	requireIntegration(t)
	ctx := context.Background()

	user, account := seedUserAndAccount(t, ctx, "0")

	rows := []*models.NewTransaction{
		{AccountId: account.ID, Amount: mustDec("900"), IsIncome: utils.NewTrue(), Text: "import income"},
		{AccountId: account.ID, Amount: mustDec("150"), IsIncome: utils.NewFalse(), Text: "import expense"},
		{AccountId: account.ID, Amount: mustDec("50"), IsIncome: utils.NewFalse(), Text: "import expense 2"},
	}
	created, err := models.CreateTransactionsBulk(ctx, user.ID, account.ID, rows)
	if err != nil {
		t.Fatalf("bulk import: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("created %d rows, want 3", len(created))
	}
	assertIdentity(t, ctx, user.ID, account.ID, "900", "200", "700")
}

func TestLedgerRegressionResyncIdempotence(t *testing.T) {
	requireIntegration(t)
	ctx := context.Background()

	user, account := seedUserAndAccount(t, ctx, "1000")
	actor := models.UserActor(user.ID)

	for _, amount := range []string{"100", "200", "300"} {
		if _, err := models.CreateTransaction(ctx, actor, &models.NewTransaction{
			AccountId: account.ID,
			Amount:    mustDec(amount),
			IsIncome:  utils.NewFalse(),
			Text:      "spend " + amount,
		}); err != nil {
			t.Fatalf("create expense %s: %v", amount, err)
		}
	}

	before, err := models.GetAccountAnalytics(ctx, user.ID, account.ID)
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}

	// a rebuild over unchanged history must not move the buckets
	if err := models.ResyncAccountAnalytics(ctx, account.ID); err != nil {
		t.Fatalf("resync: %v", err)
	}
	after, err := models.GetAccountAnalytics(ctx, user.ID, account.ID)
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}

	if !before.Income.Equal(after.Income) || !before.Expense.Equal(after.Expense) || !before.Balance.Equal(after.Balance) {
		t.Fatalf("resync moved buckets: before income=%s expense=%s balance=%s, after income=%s expense=%s balance=%s",
			before.Income, before.Expense, before.Balance, after.Income, after.Expense, after.Balance)
	}
	assertIdentity(t, ctx, user.ID, account.ID, after.Income.String(), after.Expense.String(), after.Balance.String())
}
