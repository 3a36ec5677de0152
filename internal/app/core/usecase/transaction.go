package usecase

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
)

// TransactionService 建立存款 / 提款紀錄，保證餘額不為負
//
// 同一使用者的「讀餘額 -> 檢查 -> 寫入」在行程內以 userLocks 序列化；
// 若 Store 另外實作 UserLocker，會在同一個資料庫交易內再鎖一次，
// 讓多個行程共用同一個資料庫時依然安全。
type TransactionService struct {
	users     UserDirectory
	store     StatementStore
	publisher EventPublisher
	locks     *userLocks
	logger    *zap.Logger
}

func NewTransactionService(users UserDirectory, store StatementStore, publisher EventPublisher, logger *zap.Logger) *TransactionService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionService{
		users:     users,
		store:     store,
		publisher: publisher,
		locks:     newUserLocks(),
		logger:    logger,
	}
}

// CreateStatement 建立一筆存款或提款
//
// 參數:
//
//	ctx: 上下文
//	userID: 已驗證的使用者 ID
//	typ: 存款 / 提款
//	amount: 金額 (> 0)
//	description: 備註
//
// 回傳:
//
//	*domain.Statement: 寫入後的紀錄 (含 ID 與時間)
//	error: ErrInvalidAmount / ErrUserNotFound / ErrInsufficientFunds / StoreError
//
// 失敗時不會寫入任何資料
func (s *TransactionService) CreateStatement(ctx context.Context, userID string, typ domain.StatementType, amount decimal.Decimal, description string) (*domain.Statement, error) {
	// 1. 金額驗證 (在任何 I/O 之前)
	pending, err := domain.NewStatement(userID, typ, amount, description)
	if err != nil {
		statementsRejected.WithLabelValues(domain.KindOf(err).String()).Inc()
		return nil, err
	}

	// 2. 使用者必須存在，先於任何餘額讀取
	if err := ensureUser(ctx, s.users, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Warn("create statement for unknown user", zap.String("user_id", userID))
		}
		statementsRejected.WithLabelValues(domain.KindOf(err).String()).Inc()
		return nil, err
	}

	// 3. 同一使用者的寫入序列化 (只涵蓋檢查與寫入)
	created, err := s.persist(ctx, pending)
	if err != nil {
		s.logRejection(pending, err)
		return nil, err
	}

	statementsCreated.WithLabelValues(created.Type.String()).Inc()
	s.logger.Info("statement created",
		zap.String("statement_id", created.ID),
		zap.String("user_id", created.UserID),
		zap.Stringer("type", created.Type),
		zap.String("amount", created.Amount.StringFixed(domain.AmountScale)),
	)

	// 4. 事件發佈為 best effort，紀錄已經寫入
	if err := s.publisher.PublishStatementCreated(ctx, domain.NewStatementCreated(created)); err != nil {
		eventPublishErrors.Inc()
		s.logger.Error("publish statement created failed", zap.String("statement_id", created.ID), zap.Error(err))
	}
	return created, nil
}

// persist 在使用者鎖內執行餘額檢查與寫入，回傳前即釋放鎖
func (s *TransactionService) persist(ctx context.Context, pending *domain.Statement) (*domain.Statement, error) {
	unlock := s.locks.Lock(pending.UserID)
	defer unlock()

	locker, ok := s.store.(UserLocker)
	if !ok {
		return s.appendLocked(ctx, s.store, pending)
	}
	var created *domain.Statement
	err := locker.WithUserLock(ctx, pending.UserID, func(store StatementStore) error {
		var appendErr error
		created, appendErr = s.appendLocked(ctx, store, pending)
		return appendErr
	})
	return created, err
}

// appendLocked 呼叫端必須已持有該使用者的鎖
func (s *TransactionService) appendLocked(ctx context.Context, store StatementStore, pending *domain.Statement) (*domain.Statement, error) {
	if pending.Type == domain.StatementTypeWithdraw {
		balance, err := computeBalance(ctx, store, pending.UserID)
		if err != nil {
			return nil, err
		}
		if balance.Total.LessThan(pending.Amount) {
			return nil, domain.ErrInsufficientFunds
		}
	}
	return store.Create(ctx, pending.UserID, pending.Type, pending.Amount, pending.Description)
}

func (s *TransactionService) logRejection(pending *domain.Statement, err error) {
	statementsRejected.WithLabelValues(domain.KindOf(err).String()).Inc()
	fields := []zap.Field{
		zap.String("user_id", pending.UserID),
		zap.Stringer("type", pending.Type),
		zap.String("amount", pending.Amount.StringFixed(domain.AmountScale)),
		zap.Error(err),
	}
	switch domain.KindOf(err) {
	case domain.KindInsufficientFunds, domain.KindUserNotFound:
		s.logger.Info("statement rejected", fields...)
	default:
		s.logger.Error("create statement failed", fields...)
	}
}
