package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount 金額必須為正數 (最多兩位小數)
	ErrInvalidAmount = errors.New("amount must be a positive value with at most 2 decimal places")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUserNotFound 找不到使用者
	ErrUserNotFound = errors.New("user not found")

	// ErrStatementNotFound 找不到交易紀錄
	ErrStatementNotFound = errors.New("statement not found")

	// ErrInvalidStatementType 未知的交易類型
	ErrInvalidStatementType = errors.New("invalid statement type")

	// ErrStoreUnavailable 儲存媒介無法使用
	ErrStoreUnavailable = errors.New("statement store unavailable")
)

// StoreError 包裝底層儲存錯誤，Op 記錄失敗的操作
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError 建立 StoreError，err 為 nil 時回傳 nil
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is 讓 errors.Is(err, ErrStoreUnavailable) 成立
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// ErrorKind 對外可見的錯誤分類
type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	KindUserNotFound
	KindStatementNotFound
	KindInsufficientFunds
	KindInvalidAmount
	KindInvalidType
	KindStore
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUserNotFound:
		return "user_not_found"
	case KindStatementNotFound:
		return "statement_not_found"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindInvalidAmount:
		return "invalid_amount"
	case KindInvalidType:
		return "invalid_type"
	case KindStore:
		return "store_error"
	default:
		return "unknown"
	}
}

// KindOf 將錯誤歸類，供傳輸層轉換為狀態碼
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUserNotFound):
		return KindUserNotFound
	case errors.Is(err, ErrStatementNotFound):
		return KindStatementNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrInvalidStatementType):
		return KindInvalidType
	case errors.Is(err, ErrStoreUnavailable):
		return KindStore
	default:
		return KindUnknown
	}
}
