package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AmountScale 金額保留的小數位數 (資料表欄位為 DECIMAL(15,2))
const AmountScale = 2

// MaxAmount DECIMAL(15,2) 可存放的最大金額 (整數部分最多 13 位)
var MaxAmount = decimal.RequireFromString("9999999999999.99")

// StatementType 交易類型 (封閉列舉)
type StatementType uint8

const (
	// 存款
	StatementTypeDeposit StatementType = 1
	// 提款
	StatementTypeWithdraw StatementType = 2
)

// String 回傳儲存與傳輸使用的小寫名稱
func (t StatementType) String() string {
	switch t {
	case StatementTypeDeposit:
		return "deposit"
	case StatementTypeWithdraw:
		return "withdraw"
	default:
		return "unknown"
	}
}

// Valid 是否為已知的交易類型
func (t StatementType) Valid() bool {
	return t == StatementTypeDeposit || t == StatementTypeWithdraw
}

// ParseStatementType 解析 "deposit" / "withdraw" (不分大小寫)
func ParseStatementType(s string) (StatementType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deposit":
		return StatementTypeDeposit, nil
	case "withdraw":
		return StatementTypeWithdraw, nil
	default:
		return 0, ErrInvalidStatementType
	}
}

// MarshalText 讓 JSON / WAL 以文字形式保存類型
func (t StatementType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, ErrInvalidStatementType
	}
	return []byte(t.String()), nil
}

// UnmarshalText 對應 MarshalText
func (t *StatementType) UnmarshalText(b []byte) error {
	parsed, err := ParseStatementType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Statement 一筆帳務紀錄，建立後不可變更
type Statement struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        StatementType   `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SignedAmount 存款為正、提款為負
func (s *Statement) SignedAmount() decimal.Decimal {
	if s.Type == StatementTypeWithdraw {
		return s.Amount.Neg()
	}
	return s.Amount
}

// NewStatement 建立待寫入的交易紀錄 (ID 與時間由 Store 指派)
//
// 參數:
//
//	userID: 擁有者
//	typ: 交易類型
//	amount: 金額，必須 > 0 且最多兩位小數
//	description: 備註 (可為空)
//
// 回傳:
//
//	*Statement: 尚未持久化的紀錄
//	error: ErrInvalidStatementType / ErrInvalidAmount
func NewStatement(userID string, typ StatementType, amount decimal.Decimal, description string) (*Statement, error) {
	if !typ.Valid() {
		return nil, ErrInvalidStatementType
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	return &Statement{
		UserID:      userID,
		Type:        typ,
		Amount:      amount,
		Description: description,
	}, nil
}

// ValidateAmount 金額必須為正數、不超過 MaxAmount，且不得超過 AmountScale 位小數
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(AmountScale)) {
		return ErrInvalidAmount
	}
	return nil
}

// Balance 由交易紀錄推導出的餘額
type Balance struct {
	Total      decimal.Decimal `json:"balance"`
	Statements []*Statement    `json:"statements"`
}

// ComputeBalance 單次線性走訪，存款加、提款減
// 回傳的 Statements 保持傳入順序
func ComputeBalance(statements []*Statement) Balance {
	total := decimal.Zero
	for _, s := range statements {
		total = total.Add(s.SignedAmount())
	}
	if statements == nil {
		statements = []*Statement{}
	}
	return Balance{
		Total:      total,
		Statements: statements,
	}
}
