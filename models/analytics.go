package models

import (
	"context"
	"errors"
	"time"

	"github.com/Utsav173/expense-tracker-sub003/config"
	"github.com/Utsav173/expense-tracker-sub003/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Analytics keeps the running totals for one account (1:1). The row is
// created with the account and maintained incrementally by the ledger;
// balance == income - expense must hold after every committed mutation.
//
// NOTE: this is derived data. The rebuild routine (ResyncAccountAnalytics)
// can always recompute it from the transaction history.
type Analytics struct {
	ID        int `gorm:"primary_key" json:"id"`
	AccountId int `gorm:"uniqueIndex;not null" json:"account_id"`
	OwnerId   int `gorm:"index;not null" json:"owner_id"`

	Income  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"income"`
	Expense decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"expense"`
	Balance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`

	// pre-mutation snapshots, display only
	PreviousIncome   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"previous_income"`
	PreviousExpenses decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"previous_expenses"`
	PreviousBalance  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"previous_balance"`

	IncomePercentageChange   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"income_percentage_change"`
	ExpensesPercentageChange decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"expenses_percentage_change"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PercentageChange returns the relative change from oldValue to newValue in
// percent, rounded to 2 places. A change from zero is 100 when the new value
// is positive, otherwise 0.
func PercentageChange(oldValue, newValue decimal.Decimal) decimal.Decimal {
	if oldValue.IsZero() {
		if newValue.IsPositive() {
			return decimal.NewFromInt(100)
		}
		return decimal.Zero
	}
	return newValue.Sub(oldValue).Div(oldValue.Abs()).Mul(decimal.NewFromInt(100)).Round(2)
}

func fetchAnalyticsForUpdate(tx *gorm.DB, accountId int) (*Analytics, error) {
	var analytics Analytics
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&analytics, "account_id = ?", accountId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &analytics, nil
}

// applyAnalyticsForCreate books one new transaction into the aggregates.
// Must run inside the same tx as the transaction insert.
func applyAnalyticsForCreate(tx *gorm.DB, accountId int, ownerId int, isIncome bool, amount decimal.Decimal) error {
	analytics, err := fetchAnalyticsForUpdate(tx, accountId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		// first transaction ever on a legacy account without an analytics row
		seeded := Analytics{
			AccountId: accountId,
			OwnerId:   ownerId,
		}
		if isIncome {
			seeded.Income = amount
			seeded.Balance = amount
			if amount.IsPositive() {
				seeded.IncomePercentageChange = decimal.NewFromInt(100)
			}
		} else {
			seeded.Expense = amount
			seeded.Balance = amount.Neg()
			if amount.IsPositive() {
				seeded.ExpensesPercentageChange = decimal.NewFromInt(100)
			}
		}
		return tx.Create(&seeded).Error
	}
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if isIncome {
		newIncome := analytics.Income.Add(amount)
		updates["PreviousIncome"] = analytics.Income
		updates["Income"] = newIncome
		updates["IncomePercentageChange"] = PercentageChange(analytics.Income, newIncome)
		updates["PreviousBalance"] = analytics.Balance
		updates["Balance"] = analytics.Balance.Add(amount)
	} else {
		newExpense := analytics.Expense.Add(amount)
		updates["PreviousExpenses"] = analytics.Expense
		updates["Expense"] = newExpense
		updates["ExpensesPercentageChange"] = PercentageChange(analytics.Expense, newExpense)
		updates["PreviousBalance"] = analytics.Balance
		updates["Balance"] = analytics.Balance.Sub(amount)
	}
	return tx.Model(analytics).Updates(updates).Error
}

// applyAnalyticsDelta books signed bucket deltas computed by the caller
// (update/delete paths). The analytics row must already exist; a missing row
// here means balances were corrupted earlier and is not self-healed.
func applyAnalyticsDelta(tx *gorm.DB, accountId int, incomeChange, expenseChange, balanceChange decimal.Decimal) error {
	analytics, err := fetchAnalyticsForUpdate(tx, accountId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return utils.ErrorAggregateMissing
	}
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if !incomeChange.IsZero() {
		newIncome := analytics.Income.Add(incomeChange)
		updates["PreviousIncome"] = analytics.Income
		updates["Income"] = newIncome
		updates["IncomePercentageChange"] = PercentageChange(analytics.Income, newIncome)
	}
	if !expenseChange.IsZero() {
		newExpense := analytics.Expense.Add(expenseChange)
		updates["PreviousExpenses"] = analytics.Expense
		updates["Expense"] = newExpense
		updates["ExpensesPercentageChange"] = PercentageChange(analytics.Expense, newExpense)
	}
	if !balanceChange.IsZero() {
		updates["PreviousBalance"] = analytics.Balance
		updates["Balance"] = analytics.Balance.Add(balanceChange)
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(analytics).Updates(updates).Error
}

// BulkEntry is one row of a batch import.
type BulkEntry struct {
	Amount   decimal.Decimal
	IsIncome bool
}

// bulkTotals sums the signed bucket contributions of a batch.
func bulkTotals(entries []BulkEntry) (incomeChange, expenseChange decimal.Decimal) {
	for _, entry := range entries {
		if entry.IsIncome {
			incomeChange = incomeChange.Add(entry.Amount)
		} else {
			expenseChange = expenseChange.Add(entry.Amount)
		}
	}
	return incomeChange, expenseChange
}

// applyAnalyticsBulk behaves like repeated applyAnalyticsForCreate calls for
// one account but commits the summed delta once. A batch with no net income
// and no net expense change touches nothing.
func applyAnalyticsBulk(tx *gorm.DB, accountId int, entries []BulkEntry) error {
	incomeChange, expenseChange := bulkTotals(entries)
	if incomeChange.IsZero() && expenseChange.IsZero() {
		return nil
	}
	return applyAnalyticsDelta(tx, accountId, incomeChange, expenseChange, incomeChange.Sub(expenseChange))
}

// GetAccountAnalytics returns the analytics row for an account the user owns.
func GetAccountAnalytics(ctx context.Context, ownerId int, accountId int) (*Analytics, error) {
	db := config.GetDB()
	var analytics Analytics
	err := db.WithContext(ctx).
		Where("owner_id = ? AND account_id = ?", ownerId, accountId).
		First(&analytics).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &analytics, nil
}

func sumTransactions(tx *gorm.DB, accountId int, from, to *time.Time) (income, expense decimal.Decimal, err error) {
	type sums struct {
		Income  decimal.Decimal
		Expense decimal.Decimal
	}
	var s sums
	dbCtx := tx.Model(&Transaction{}).Where("account_id = ?", accountId)
	if from != nil && to != nil {
		dbCtx = dbCtx.Where("created_at BETWEEN ? AND ?", from, to)
	}
	err = dbCtx.Select(
		"COALESCE(SUM(CASE WHEN is_income THEN amount ELSE 0 END), 0) AS income, " +
			"COALESCE(SUM(CASE WHEN is_income THEN 0 ELSE amount END), 0) AS expense").
		Scan(&s).Error
	return s.Income, s.Expense, err
}

// ResyncAccountAnalytics recomputes the aggregates of one account from its
// full transaction history. This is the ONLY path allowed to repair a missing
// analytics row, and the only place the previous*/percentage fields carry
// period-over-period semantics (this calendar month vs the one before).
func ResyncAccountAnalytics(ctx context.Context, accountId int) error {
	loc, err := utils.LoadLocationCached(utils.LedgerTimezone())
	if err != nil {
		return err
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := fetchAccountForUpdate(tx, accountId)
		if err != nil {
			return err
		}

		income, expense, err := sumTransactions(tx, accountId, nil, nil)
		if err != nil {
			return err
		}
		balance := income.Sub(expense)

		now := time.Now().In(loc)
		currentStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		currentEnd := utils.EndOfDay(currentStart.AddDate(0, 1, -1), loc)
		previousStart := currentStart.AddDate(0, -1, 0)
		previousEnd := utils.EndOfDay(currentStart.AddDate(0, 0, -1), loc)

		currentIncome, currentExpense, err := sumTransactions(tx, accountId, &currentStart, &currentEnd)
		if err != nil {
			return err
		}
		previousIncome, previousExpense, err := sumTransactions(tx, accountId, &previousStart, &previousEnd)
		if err != nil {
			return err
		}

		rebuilt := map[string]interface{}{
			"Income":                   income,
			"Expense":                  expense,
			"Balance":                  balance,
			"PreviousIncome":           previousIncome,
			"PreviousExpenses":         previousExpense,
			"PreviousBalance":          previousIncome.Sub(previousExpense),
			"IncomePercentageChange":   PercentageChange(previousIncome, currentIncome),
			"ExpensesPercentageChange": PercentageChange(previousExpense, currentExpense),
		}

		analytics, err := fetchAnalyticsForUpdate(tx, accountId)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			analytics = &Analytics{AccountId: accountId, OwnerId: account.OwnerId}
			if err := tx.Create(analytics).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := tx.Model(analytics).Updates(rebuilt).Error; err != nil {
			return err
		}
		return tx.Model(account).Update("Balance", balance).Error
	})
}
