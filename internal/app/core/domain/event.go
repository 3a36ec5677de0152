package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementCreated 交易紀錄寫入成功後發出的事件
type StatementCreated struct {
	StatementID string          `json:"statement_id"`
	UserID      string          `json:"user_id"`
	Type        StatementType   `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// NewStatementCreated 由已持久化的紀錄建立事件
func NewStatementCreated(s *Statement) StatementCreated {
	return StatementCreated{
		StatementID: s.ID,
		UserID:      s.UserID,
		Type:        s.Type,
		Amount:      s.Amount,
		OccurredAt:  s.CreatedAt,
	}
}
