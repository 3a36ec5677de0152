package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
)

// QueryService 查詢單筆交易紀錄
type QueryService struct {
	users          UserDirectory
	store          StatementStore
	checkOwnership bool
	logger         *zap.Logger
}

func NewQueryService(users UserDirectory, store StatementStore, checkOwnership bool, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		users:          users,
		store:          store,
		checkOwnership: checkOwnership,
		logger:         logger,
	}
}

// GetStatementOperation 依 ID 取得紀錄
// checkOwnership 開啟時，別人的紀錄一律視為不存在，不透露該 ID 是否有效
func (q *QueryService) GetStatementOperation(ctx context.Context, userID, statementID string) (*domain.Statement, error) {
	if err := ensureUser(ctx, q.users, userID); err != nil {
		return nil, err
	}
	if statementID == "" {
		return nil, domain.ErrStatementNotFound
	}

	statement, err := q.store.FindByID(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if q.checkOwnership && statement.UserID != userID {
		q.logger.Warn("statement requested by non-owner",
			zap.String("statement_id", statementID),
			zap.String("user_id", userID),
		)
		return nil, domain.ErrStatementNotFound
	}
	return statement, nil
}
