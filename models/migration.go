package models

import (
	"github.com/Utsav173/expense-tracker-sub003/config"
)

func MigrateDatabase() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&User{},
		&Account{},
		&Category{},
		&Transaction{},
		&Analytics{},
	)
}
