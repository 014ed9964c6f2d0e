package models

import (
	"context"
	"errors"
	"time"

	"github.com/Utsav173/expense-tracker-sub003/config"
	"github.com/Utsav173/expense-tracker-sub003/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Account balance is derived state: it is only ever written by the ledger
// mutation path and the rebuild routine, never directly from user input.
type Account struct {
	ID        int             `gorm:"primary_key" json:"id"`
	OwnerId   int             `gorm:"index;not null" json:"owner_id"`
	Name      string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Currency  string          `gorm:"size:3;not null;default:'USD'" json:"currency"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	Name     string          `json:"name" binding:"required"`
	Currency string          `json:"currency" binding:"omitempty,len=3"`
	Balance  decimal.Decimal `json:"balance"`
}

// CreateAccount opens an account together with its analytics row (1:1).
// An opening balance is booked as initial income so that
// analytics.balance == income - expense == account.balance from day one.
func CreateAccount(ctx context.Context, ownerId int, input *NewAccount) (*Account, error) {
	if input.Balance.IsNegative() {
		return nil, utils.ErrorInvalidAmount
	}
	if err := utils.ValidateUnique[Account](ctx, ownerId, "name", input.Name, 0); err != nil {
		return nil, errors.New("account name already exists")
	}

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	account := Account{
		OwnerId:  ownerId,
		Name:     input.Name,
		Currency: currency,
		Balance:  input.Balance,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&account).Error; err != nil {
			return err
		}
		// the opening balance is a real income row, not loose seed state,
		// so a full rebuild from history reproduces the same aggregates
		if input.Balance.IsPositive() {
			opening := Transaction{
				ID:        uuid.NewString(),
				AccountId: account.ID,
				OwnerId:   ownerId,
				CreatedBy: ownerId,
				Amount:    input.Balance,
				IsIncome:  utils.NewTrue(),
				Text:      "Opening balance",
				Currency:  currency,
				Recurring: utils.NewFalse(),
				CreatedAt: time.Now(),
			}
			if err := tx.Create(&opening).Error; err != nil {
				return err
			}
		}
		analytics := Analytics{
			AccountId: account.ID,
			OwnerId:   ownerId,
			Income:    input.Balance,
			Balance:   input.Balance,
		}
		if input.Balance.IsPositive() {
			analytics.IncomePercentageChange = decimal.NewFromInt(100)
		}
		return tx.Create(&analytics).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func GetAccount(ctx context.Context, ownerId int, id int) (*Account, error) {
	return utils.FetchOwnedModel[Account](ctx, ownerId, id)
}

func GetAccounts(ctx context.Context, ownerId int) ([]*Account, error) {
	return utils.FetchAllOwnedModels[Account](ctx, ownerId)
}

// DeleteAccount removes the account with its transactions and analytics row
// (cascade, one transaction).
func DeleteAccount(ctx context.Context, ownerId int, id int) error {
	account, err := utils.FetchOwnedModel[Account](ctx, ownerId, id)
	if err != nil {
		return err
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", account.ID).Delete(&Transaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", account.ID).Delete(&Analytics{}).Error; err != nil {
			return err
		}
		return tx.Delete(account).Error
	})
}

// fetchAccountForUpdate reads the account row under a row lock. Every ledger
// mutation goes through this so concurrent mutations on the same account
// serialize at the database.
func fetchAccountForUpdate(tx *gorm.DB, accountId int) (*Account, error) {
	var account Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, "id = ?", accountId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &account, nil
}
