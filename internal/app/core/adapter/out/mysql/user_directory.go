package mysql

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-statement-ledger/pkg/mysql"
)

// UserDirectory 以 users 表確認使用者是否存在
type UserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(client *mysql.Client) *UserDirectory {
	return &UserDirectory{db: client.DB()}
}

// UserExists implements usecase.UserDirectory.
func (d *UserDirectory) UserExists(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&sqlUser{}).Where("id = ?", userID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateUser 建立使用者列 (種子資料與整合測試使用)
func (d *UserDirectory) CreateUser(ctx context.Context, email string) (string, error) {
	user := sqlUser{
		ID:    uuid.NewString(),
		Email: strings.ToLower(strings.TrimSpace(email)),
	}
	if err := d.db.WithContext(ctx).Create(&user).Error; err != nil {
		return "", err
	}
	return user.ID, nil
}

var _ usecase.UserDirectory = (*UserDirectory)(nil)
