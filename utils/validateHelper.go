package utils

import (
	"context"
	"errors"
	"reflect"

	"github.com/Utsav173/expense-tracker-sub003/config"
)

// count rows of T owned by the user matching cond
func ResourceCountWhere[T any](ctx context.Context, ownerId int, cond string, values ...interface{}) (int64, error) {
	db := config.GetDB()
	var v T
	var count int64
	err := db.WithContext(ctx).Model(&v).
		Where("owner_id = ?", ownerId).
		Where(cond, values...).
		Count(&count).Error
	return count, err
}

// check if id exists for the owner, return RecordNotFound error
func ValidateOwnedResourceId[T any](ctx context.Context, ownerId int, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, ownerId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, ownerId int, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, ownerId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, ownerId, column+" = ? AND id != ?", value, exceptId)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New(column + " already exists")
	}
	return nil
}
