package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/usecase"
)

// UserDirectory 以 users 表確認使用者是否存在
type UserDirectory struct {
	pool *pgxpool.Pool
}

func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

// UserExists implements usecase.UserDirectory.
func (d *UserDirectory) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CreateUser 建立使用者列 (種子資料與整合測試使用)
func (d *UserDirectory) CreateUser(ctx context.Context, email string) (string, error) {
	id := uuid.NewString()
	_, err := d.pool.Exec(ctx,
		`INSERT INTO users (id, email) VALUES ($1, $2)`,
		id, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", err
	}
	return id, nil
}

var _ usecase.UserDirectory = (*UserDirectory)(nil)
