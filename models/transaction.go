package models

import (
	"context"
	"time"

	"github.com/Utsav173/expense-tracker-sub003/config"
	"github.com/Utsav173/expense-tracker-sub003/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Actor identifies who is performing a ledger mutation: an end user, or the
// system itself (the recurring generator). System inserts skip the ownership
// check on the account and adopt the account's actual owner as the
// transaction's owner of record, so a template can never post into another
// user's ledger under the wrong identity.
type Actor struct {
	kind   actorKind
	userId int
}

type actorKind int

const (
	actorKindUser actorKind = iota + 1
	actorKindSystem
)

func UserActor(userId int) Actor {
	return Actor{kind: actorKindUser, userId: userId}
}

func SystemActor() Actor {
	return Actor{kind: actorKindSystem}
}

func (a Actor) IsSystem() bool {
	return a.kind == actorKindSystem
}

func (a Actor) UserId() int {
	return a.userId
}

// Transaction's CreatedAt is the economic date of the movement, not the row
// creation time; it is supplied by the caller (or the generator).
// A transaction with Recurring=true is a template: the generator copies its
// signature into plain non-recurring rows, one per due occurrence.
type Transaction struct {
	ID        string          `gorm:"primaryKey;size:36" json:"id"`
	AccountId int             `gorm:"index;not null" json:"account_id"`
	OwnerId   int             `gorm:"index;not null" json:"owner_id"`
	CreatedBy int             `json:"created_by"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	IsIncome  *bool           `gorm:"not null;default:false" json:"is_income"`
	Text      string          `gorm:"size:255" json:"text"`
	Transfer  string          `gorm:"size:255" json:"transfer"`

	CategoryId *int   `gorm:"index" json:"category_id"`
	Currency   string `gorm:"size:3" json:"currency"`

	Recurring         *bool           `gorm:"default:false" json:"recurring"`
	RecurrenceType    *RecurrenceType `gorm:"type:enum('daily','weekly','monthly','yearly')" json:"recurrence_type"`
	RecurrenceEndDate *time.Time      `json:"recurrence_end_date"`

	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTransaction struct {
	AccountId         int             `json:"account_id" binding:"required"`
	Amount            decimal.Decimal `json:"amount"`
	IsIncome          *bool           `json:"is_income" binding:"required"`
	Text              string          `json:"text"`
	Transfer          string          `json:"transfer"`
	CategoryId        *int            `json:"category_id"`
	CreatedAt         *time.Time      `json:"created_at"`
	Recurring         *bool           `json:"recurring"`
	RecurrenceType    *RecurrenceType `json:"recurrence_type"`
	RecurrenceEndDate *string         `json:"recurrence_end_date"`
}

// TransactionUpdates is a partial update: only non-nil fields change.
type TransactionUpdates struct {
	Amount            *decimal.Decimal `json:"amount"`
	IsIncome          *bool            `json:"is_income"`
	Text              *string          `json:"text"`
	Transfer          *string          `json:"transfer"`
	CategoryId        *int             `json:"category_id"`
	CreatedAt         *time.Time       `json:"created_at"`
	Recurring         *bool            `json:"recurring"`
	RecurrenceType    *RecurrenceType  `json:"recurrence_type"`
	RecurrenceEndDate *string          `json:"recurrence_end_date"`
}

// signed effect of a transaction on the account balance
func transactionEffect(isIncome bool, amount decimal.Decimal) decimal.Decimal {
	if isIncome {
		return amount
	}
	return amount.Neg()
}

// computeUpdateDeltas derives the signed bucket deltas for an amount and/or
// direction change: subtract the old contribution, add the new one.
func computeUpdateDeltas(oldAmount decimal.Decimal, oldIsIncome bool, newAmount decimal.Decimal, newIsIncome bool) (incomeChange, expenseChange, balanceChange decimal.Decimal) {
	balanceChange = transactionEffect(newIsIncome, newAmount).Sub(transactionEffect(oldIsIncome, oldAmount))

	if oldIsIncome {
		incomeChange = incomeChange.Sub(oldAmount)
	} else {
		expenseChange = expenseChange.Sub(oldAmount)
	}
	if newIsIncome {
		incomeChange = incomeChange.Add(newAmount)
	} else {
		expenseChange = expenseChange.Add(newAmount)
	}
	return incomeChange, expenseChange, balanceChange
}

func parseRecurrenceEndDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := utils.ParseDateString(*raw, utils.LedgerTimezone())
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// CreateTransaction inserts a transaction and, in the same database
// transaction, moves the account balance and the analytics aggregates.
// Nothing is applied on failure.
func CreateTransaction(ctx context.Context, actor Actor, input *NewTransaction) (*Transaction, error) {
	if input.Amount.IsNegative() {
		return nil, utils.ErrorInvalidAmount
	}
	isIncome := utils.DereferencePtr(input.IsIncome)

	var account *Account
	var err error
	if actor.IsSystem() {
		// system inserts only require the account to exist
		account, err = utils.FetchSingleModel[Account](ctx, input.AccountId)
	} else {
		account, err = utils.FetchOwnedModel[Account](ctx, actor.UserId(), input.AccountId)
	}
	if err != nil {
		return nil, err
	}
	ownerId := account.OwnerId

	if input.CategoryId != nil {
		if err := validateCategoryForOwner(ctx, ownerId, *input.CategoryId); err != nil {
			return nil, err
		}
	}

	recurring := utils.DereferencePtr(input.Recurring)
	if recurring && (input.RecurrenceType == nil || !input.RecurrenceType.Valid()) {
		return nil, utils.ErrorMissingRecurrenceType
	}
	endDate, err := parseRecurrenceEndDate(input.RecurrenceEndDate)
	if err != nil {
		return nil, err
	}

	createdBy := ownerId
	if !actor.IsSystem() {
		createdBy = actor.UserId()
	}
	createdAt := time.Now()
	if input.CreatedAt != nil {
		createdAt = *input.CreatedAt
	}

	transaction := Transaction{
		ID:         uuid.NewString(),
		AccountId:  account.ID,
		OwnerId:    ownerId,
		CreatedBy:  createdBy,
		Amount:     input.Amount,
		IsIncome:   &isIncome,
		Text:       input.Text,
		Transfer:   input.Transfer,
		CategoryId: input.CategoryId,
		Currency:   account.Currency,
		Recurring:  &recurring,
		CreatedAt:  createdAt,
	}
	if recurring {
		transaction.RecurrenceType = input.RecurrenceType
		transaction.RecurrenceEndDate = endDate
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := fetchAccountForUpdate(tx, account.ID)
		if err != nil {
			return err
		}
		// a user-initiated expense may not drive the balance negative;
		// system inserts are exempt
		if !isIncome && !actor.IsSystem() && locked.Balance.LessThan(input.Amount) {
			return utils.ErrorInsufficientFunds
		}
		if err := tx.Create(&transaction).Error; err != nil {
			return err
		}
		newBalance := locked.Balance.Add(transactionEffect(isIncome, input.Amount))
		if err := tx.Model(locked).Update("Balance", newBalance).Error; err != nil {
			return err
		}
		return applyAnalyticsForCreate(tx, account.ID, ownerId, isIncome, input.Amount)
	})
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

// UpdateTransaction changes only the supplied fields. When amount or
// direction change, the account balance and aggregates are adjusted by the
// signed delta in the same database transaction; metadata-only updates skip
// the balance path entirely.
func UpdateTransaction(ctx context.Context, id string, ownerId int, updates *TransactionUpdates) (*Transaction, error) {
	existing, err := utils.FetchOwnedModel[Transaction](ctx, ownerId, id)
	if err != nil {
		return nil, err
	}

	newAmount := existing.Amount
	if updates.Amount != nil {
		if updates.Amount.IsNegative() {
			return nil, utils.ErrorInvalidAmount
		}
		newAmount = *updates.Amount
	}
	oldIsIncome := utils.DereferencePtr(existing.IsIncome)
	newIsIncome := oldIsIncome
	if updates.IsIncome != nil {
		newIsIncome = *updates.IsIncome
	}

	if updates.CategoryId != nil {
		if err := validateCategoryForOwner(ctx, ownerId, *updates.CategoryId); err != nil {
			return nil, err
		}
	}

	rowUpdates := map[string]interface{}{}
	if updates.Amount != nil {
		rowUpdates["Amount"] = newAmount
	}
	if updates.IsIncome != nil {
		rowUpdates["IsIncome"] = newIsIncome
	}
	if updates.Text != nil {
		rowUpdates["Text"] = *updates.Text
	}
	if updates.Transfer != nil {
		rowUpdates["Transfer"] = *updates.Transfer
	}
	if updates.CategoryId != nil {
		rowUpdates["CategoryId"] = *updates.CategoryId
	}
	if updates.CreatedAt != nil {
		rowUpdates["CreatedAt"] = *updates.CreatedAt
	}

	// recurrence transitions: turning the flag off clears the descriptor;
	// keeping it on requires a type from the update or the existing row
	recurring := utils.DereferencePtr(existing.Recurring)
	if updates.Recurring != nil {
		recurring = *updates.Recurring
	}
	if updates.Recurring != nil && !recurring {
		rowUpdates["Recurring"] = false
		rowUpdates["RecurrenceType"] = nil
		rowUpdates["RecurrenceEndDate"] = nil
	} else if recurring {
		recurrenceType := existing.RecurrenceType
		if updates.RecurrenceType != nil {
			recurrenceType = updates.RecurrenceType
		}
		if recurrenceType == nil || !recurrenceType.Valid() {
			return nil, utils.ErrorMissingRecurrenceType
		}
		if updates.Recurring != nil {
			rowUpdates["Recurring"] = true
		}
		if updates.RecurrenceType != nil {
			rowUpdates["RecurrenceType"] = *updates.RecurrenceType
		}
		if updates.RecurrenceEndDate != nil {
			endDate, err := parseRecurrenceEndDate(updates.RecurrenceEndDate)
			if err != nil {
				return nil, err
			}
			rowUpdates["RecurrenceEndDate"] = endDate
		}
	}

	if len(rowUpdates) == 0 {
		return existing, nil
	}

	incomeChange, expenseChange, balanceChange := computeUpdateDeltas(existing.Amount, oldIsIncome, newAmount, newIsIncome)
	balanceAffecting := !incomeChange.IsZero() || !expenseChange.IsZero() || !balanceChange.IsZero()

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if balanceAffecting {
			locked, err := fetchAccountForUpdate(tx, existing.AccountId)
			if err != nil {
				return err
			}
			// re-check funds under the row lock
			if !newIsIncome && locked.Balance.Add(balanceChange).IsNegative() {
				return utils.ErrorInsufficientFunds
			}
			if err := tx.Model(&Transaction{}).Where("id = ?", existing.ID).Updates(rowUpdates).Error; err != nil {
				return err
			}
			if err := tx.Model(locked).Update("Balance", locked.Balance.Add(balanceChange)).Error; err != nil {
				return err
			}
			return applyAnalyticsDelta(tx, existing.AccountId, incomeChange, expenseChange, balanceChange)
		}
		// metadata-only update, no balance path
		return tx.Model(&Transaction{}).Where("id = ?", existing.ID).Updates(rowUpdates).Error
	})
	if err != nil {
		return nil, err
	}
	return utils.FetchOwnedModel[Transaction](ctx, ownerId, id)
}

// DeleteTransaction removes the row and books the exact reversal of its
// original effect into the account balance and the aggregates.
func DeleteTransaction(ctx context.Context, id string, ownerId int) error {
	existing, err := utils.FetchOwnedModel[Transaction](ctx, ownerId, id)
	if err != nil {
		return err
	}
	isIncome := utils.DereferencePtr(existing.IsIncome)

	incomeChange := decimal.Zero
	expenseChange := decimal.Zero
	if isIncome {
		incomeChange = existing.Amount.Neg()
	} else {
		expenseChange = existing.Amount.Neg()
	}
	balanceChange := transactionEffect(isIncome, existing.Amount).Neg()

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := fetchAccountForUpdate(tx, existing.AccountId)
		if err != nil {
			return err
		}
		if err := tx.Delete(existing).Error; err != nil {
			return err
		}
		if err := tx.Model(locked).Update("Balance", locked.Balance.Add(balanceChange)).Error; err != nil {
			return err
		}
		return applyAnalyticsDelta(tx, existing.AccountId, incomeChange, expenseChange, balanceChange)
	})
}

// CreateTransactionsBulk inserts a batch of plain rows for one account
// (statement import) and applies the summed aggregate delta once.
func CreateTransactionsBulk(ctx context.Context, ownerId int, accountId int, inputs []*NewTransaction) ([]*Transaction, error) {
	account, err := utils.FetchOwnedModel[Account](ctx, ownerId, accountId)
	if err != nil {
		return nil, err
	}

	rows := make([]*Transaction, 0, len(inputs))
	entries := make([]BulkEntry, 0, len(inputs))
	netEffect := decimal.Zero
	for _, input := range inputs {
		if input.Amount.IsNegative() {
			return nil, utils.ErrorInvalidAmount
		}
		if input.CategoryId != nil {
			if err := validateCategoryForOwner(ctx, ownerId, *input.CategoryId); err != nil {
				return nil, err
			}
		}
		isIncome := utils.DereferencePtr(input.IsIncome)
		createdAt := time.Now()
		if input.CreatedAt != nil {
			createdAt = *input.CreatedAt
		}
		rows = append(rows, &Transaction{
			ID:         uuid.NewString(),
			AccountId:  account.ID,
			OwnerId:    ownerId,
			CreatedBy:  ownerId,
			Amount:     input.Amount,
			IsIncome:   &isIncome,
			Text:       input.Text,
			Transfer:   input.Transfer,
			CategoryId: input.CategoryId,
			Currency:   account.Currency,
			Recurring:  utils.NewFalse(),
			CreatedAt:  createdAt,
		})
		entries = append(entries, BulkEntry{Amount: input.Amount, IsIncome: isIncome})
		netEffect = netEffect.Add(transactionEffect(isIncome, input.Amount))
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := fetchAccountForUpdate(tx, account.ID)
		if err != nil {
			return err
		}
		if locked.Balance.Add(netEffect).IsNegative() {
			return utils.ErrorInsufficientFunds
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 200).Error; err != nil {
				return err
			}
		}
		if !netEffect.IsZero() {
			if err := tx.Model(locked).Update("Balance", locked.Balance.Add(netEffect)).Error; err != nil {
				return err
			}
		}
		return applyAnalyticsBulk(tx, account.ID, entries)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func GetTransaction(ctx context.Context, ownerId int, id string) (*Transaction, error) {
	return utils.FetchOwnedModel[Transaction](ctx, ownerId, id)
}

// GetTransactions lists one page of an account's transactions, optionally
// scoped by a free-form date range expression ("last month", "FY2024", ...).
// Pages are config.SearchLimit rows, newest first; page numbers start at 1.
func GetTransactions(ctx context.Context, ownerId int, accountId int, rangeExpression string, timezone string, page int) ([]*Transaction, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Where("owner_id = ? AND account_id = ?", ownerId, accountId)

	if rangeExpression != "" {
		dateRange, err := utils.ResolveDateRange(rangeExpression, timezone)
		if err != nil {
			return nil, err
		}
		dbCtx = dbCtx.Where("created_at BETWEEN ? AND ?", dateRange.Start, dateRange.End)
	}

	if page < 1 {
		page = 1
	}
	var results []*Transaction
	err := dbCtx.Order("created_at DESC").
		Limit(config.SearchLimit).
		Offset((page - 1) * config.SearchLimit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
