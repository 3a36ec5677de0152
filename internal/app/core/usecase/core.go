package usecase

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
)

// CoreUseCase 是核心業務邏輯層，組合三個服務供傳輸層使用
type CoreUseCase struct {
	transactions *TransactionService
	balances     *BalanceCalculator
	queries      *QueryService
}

type coreOptions struct {
	publisher      EventPublisher
	logger         *zap.Logger
	checkOwnership bool
}

// Option 定義 CoreUseCase 的配置選項函數
type Option func(*coreOptions)

// WithPublisher 設定交易事件發佈者 (預設不發佈)
func WithPublisher(p EventPublisher) Option {
	return func(o *coreOptions) {
		o.publisher = p
	}
}

// WithLogger 設定 logger (預設 zap.NewNop)
func WithLogger(l *zap.Logger) Option {
	return func(o *coreOptions) {
		o.logger = l
	}
}

// WithOwnershipCheck 查詢單筆紀錄時是否要求擁有者相符 (預設開啟)
func WithOwnershipCheck(enabled bool) Option {
	return func(o *coreOptions) {
		o.checkOwnership = enabled
	}
}

func NewCoreUseCase(store StatementStore, users UserDirectory, opts ...Option) *CoreUseCase {
	o := &coreOptions{
		publisher:      noopPublisher{},
		logger:         zap.NewNop(),
		checkOwnership: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &CoreUseCase{
		transactions: NewTransactionService(users, store, o.publisher, o.logger),
		balances:     NewBalanceCalculator(users, store, o.logger),
		queries:      NewQueryService(users, store, o.checkOwnership, o.logger),
	}
}

// CreateStatement 建立存款 / 提款紀錄
func (c *CoreUseCase) CreateStatement(ctx context.Context, userID string, typ domain.StatementType, amount decimal.Decimal, description string) (*domain.Statement, error) {
	return c.transactions.CreateStatement(ctx, userID, typ, amount, description)
}

// GetBalance 取得餘額與交易紀錄
func (c *CoreUseCase) GetBalance(ctx context.Context, userID string) (domain.Balance, error) {
	return c.balances.ComputeBalance(ctx, userID)
}

// GetStatement 取得單筆交易紀錄
func (c *CoreUseCase) GetStatement(ctx context.Context, userID, statementID string) (*domain.Statement, error) {
	return c.queries.GetStatementOperation(ctx, userID, statementID)
}
