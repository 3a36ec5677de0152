package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
)

// StatementStore 交易紀錄的儲存介面
// memory / mysql / postgres 三種實作必須行為一致
type StatementStore interface {
	// Create 寫入一筆紀錄，指派 ID 與建立時間
	Create(ctx context.Context, userID string, typ domain.StatementType, amount decimal.Decimal, description string) (*domain.Statement, error)
	// FindByID 依 ID 查詢，不存在時回傳 domain.ErrStatementNotFound (不過濾使用者)
	FindByID(ctx context.Context, statementID string) (*domain.Statement, error)
	// FindAllByUser 回傳使用者所有紀錄，依寫入順序 (舊到新)
	FindAllByUser(ctx context.Context, userID string) ([]*domain.Statement, error)
}

// UserLocker 可選能力：在儲存層鎖定單一使用者 (例如資料庫列鎖)
// fn 收到的 store 與鎖位於同一個交易內，fn 回傳錯誤時整個交易回滾
type UserLocker interface {
	WithUserLock(ctx context.Context, userID string, fn func(store StatementStore) error) error
}

// UserDirectory 外部使用者服務，只用來確認使用者存在
type UserDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// EventPublisher 交易事件發佈
type EventPublisher interface {
	PublishStatementCreated(ctx context.Context, event domain.StatementCreated) error
}

type noopPublisher struct{}

func (noopPublisher) PublishStatementCreated(context.Context, domain.StatementCreated) error {
	return nil
}
