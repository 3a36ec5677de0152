package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
)

// BalanceCalculator 由交易紀錄推導餘額，餘額本身從不儲存
type BalanceCalculator struct {
	users  UserDirectory
	store  StatementStore
	logger *zap.Logger
}

func NewBalanceCalculator(users UserDirectory, store StatementStore, logger *zap.Logger) *BalanceCalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceCalculator{
		users:  users,
		store:  store,
		logger: logger,
	}
}

// ComputeBalance 取得使用者餘額與全部交易紀錄
//
// 參數:
//
//	ctx: 上下文
//	userID: 使用者 ID
//
// 回傳:
//
//	domain.Balance: 餘額與依寫入順序排列的紀錄
//	error: domain.ErrUserNotFound / StoreError
//
// 不存在的使用者在查詢 Store 之前就會被拒絕
func (b *BalanceCalculator) ComputeBalance(ctx context.Context, userID string) (domain.Balance, error) {
	if err := ensureUser(ctx, b.users, userID); err != nil {
		return domain.Balance{}, err
	}
	balance, err := computeBalance(ctx, b.store, userID)
	if err != nil {
		b.logger.Error("compute balance failed", zap.String("user_id", userID), zap.Error(err))
		return domain.Balance{}, err
	}
	return balance, nil
}

// computeBalance 不檢查使用者，供已持有鎖的呼叫端使用
func computeBalance(ctx context.Context, store StatementStore, userID string) (domain.Balance, error) {
	statements, err := store.FindAllByUser(ctx, userID)
	if err != nil {
		return domain.Balance{}, err
	}
	return domain.ComputeBalance(statements), nil
}

// ensureUser 確認使用者存在
func ensureUser(ctx context.Context, users UserDirectory, userID string) error {
	if userID == "" {
		return domain.ErrUserNotFound
	}
	exists, err := users.UserExists(ctx, userID)
	if err != nil {
		return domain.NewStoreError("user exists", err)
	}
	if !exists {
		return domain.ErrUserNotFound
	}
	return nil
}
