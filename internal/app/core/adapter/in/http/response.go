package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
)

type statementResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type balanceResponse struct {
	Balance    string              `json:"balance"`
	Statements []statementResponse `json:"statements"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toStatementResponse(s *domain.Statement) statementResponse {
	return statementResponse{
		ID:          s.ID,
		UserID:      s.UserID,
		Type:        s.Type.String(),
		Amount:      s.Amount.StringFixed(domain.AmountScale),
		Description: s.Description,
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

func toBalanceResponse(b domain.Balance) balanceResponse {
	out := balanceResponse{
		Balance:    b.Total.StringFixed(domain.AmountScale),
		Statements: make([]statementResponse, 0, len(b.Statements)),
	}
	for _, s := range b.Statements {
		out.Statements = append(out.Statements, toStatementResponse(s))
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, reason, msg string) {
	writeJSON(w, code, errorResponse{Error: reason, Message: msg})
}

// statusOf 將 domain 錯誤種類對應到 HTTP 狀態碼
func statusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindUserNotFound, domain.KindStatementNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientFunds, domain.KindInvalidAmount, domain.KindInvalidType:
		return http.StatusBadRequest
	case domain.KindStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	msg := err.Error()
	var storeErr *domain.StoreError
	if code == http.StatusInternalServerError || errors.As(err, &storeErr) {
		// 不外洩底層錯誤細節
		msg = http.StatusText(code)
	}
	writeError(w, code, domain.KindOf(err).String(), msg)
}
