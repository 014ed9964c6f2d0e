package models

import (
	"context"
	"errors"
	"time"

	"github.com/Utsav173/expense-tracker-sub003/config"
	"github.com/Utsav173/expense-tracker-sub003/utils"
)

// Category with a NULL owner is a shared system category visible to everyone.
type Category struct {
	ID        int       `gorm:"primary_key" json:"id"`
	OwnerId   *int      `gorm:"index" json:"owner_id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewCategory struct {
	Name string `json:"name" binding:"required"`
}

const sharedCategoryCacheKey = "sharedCategoryIds"

func CreateCategory(ctx context.Context, ownerId int, input *NewCategory) (*Category, error) {
	if err := utils.ValidateUnique[Category](ctx, ownerId, "name", input.Name, 0); err != nil {
		return nil, errors.New("category name already exists")
	}

	category := Category{
		OwnerId: &ownerId,
		Name:    input.Name,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateSharedCategory creates an ownerless category visible to every user
// and invalidates the cached shared-id set. Admin-only surface.
func CreateSharedCategory(ctx context.Context, input *NewCategory) (*Category, error) {
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Category{}).
		Where("owner_id IS NULL AND name = ?", input.Name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("category name already exists")
	}

	category := Category{Name: input.Name}
	if err := db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	if err := config.RemoveRedisKey(sharedCategoryCacheKey); err != nil {
		return nil, err
	}
	return &category, nil
}

// GetCategories returns the user's own categories plus the shared ones.
func GetCategories(ctx context.Context, ownerId int) ([]*Category, error) {
	db := config.GetDB()
	var results []*Category
	err := db.WithContext(ctx).
		Where("owner_id = ? OR owner_id IS NULL", ownerId).
		Order("name").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// shared category ids, redis or db, cache result
func sharedCategoryIds(ctx context.Context) ([]int, error) {
	var ids []int
	exists, err := config.GetRedisObject(sharedCategoryCacheKey, &ids)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		if err := db.WithContext(ctx).Model(&Category{}).
			Where("owner_id IS NULL").Pluck("id", &ids).Error; err != nil {
			return nil, err
		}
		if err := config.SetRedisObject(sharedCategoryCacheKey, &ids, utils.GetCacheLifespan()); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// validateCategoryForOwner accepts a category that either belongs to the
// owner or is a shared system category.
func validateCategoryForOwner(ctx context.Context, ownerId int, categoryId int) error {
	shared, err := sharedCategoryIds(ctx)
	if err != nil {
		return err
	}
	for _, id := range shared {
		if id == categoryId {
			return nil
		}
	}

	if err := utils.ValidateOwnedResourceId[Category](ctx, ownerId, categoryId); err != nil {
		return utils.ErrorInvalidCategory
	}
	return nil
}
