package models

import (
	"context"
	"errors"

	"time"

	"github.com/Utsav173/expense-tracker-sub003/config"
	"github.com/Utsav173/expense-tracker-sub003/utils"
)

type User struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email address")
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&User{}).Where("email = ?", input.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("email already registered")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hashed),
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Login verifies credentials and returns a signed bearer token.
func Login(ctx context.Context, input *LoginInput) (string, *User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("email = ?", input.Email).First(&user).Error; err != nil {
		return "", nil, utils.ErrorRecordNotFound
	}
	if err := utils.ComparePassword(user.PasswordHash, input.Password); err != nil {
		return "", nil, errors.New("invalid credentials")
	}
	token, err := utils.JwtGenerate(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	return utils.FetchSingleModel[User](ctx, id)
}
