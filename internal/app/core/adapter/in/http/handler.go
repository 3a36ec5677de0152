package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
)

// Ledger 是 HTTP handler 依賴的業務介面 (由 usecase.CoreUseCase 實作)
type Ledger interface {
	CreateStatement(ctx context.Context, userID string, typ domain.StatementType, amount decimal.Decimal, description string) (*domain.Statement, error)
	GetBalance(ctx context.Context, userID string) (domain.Balance, error)
	GetStatement(ctx context.Context, userID, statementID string) (*domain.Statement, error)
}

// StatementHandler 處理 /api/v1/statements 下的請求
type StatementHandler struct {
	ledger Ledger
	logger *zap.Logger
}

func NewStatementHandler(ledger Ledger, logger *zap.Logger) *StatementHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatementHandler{ledger: ledger, logger: logger}
}

// createRequest 金額可為字串 ("100.00") 或數字 (100)
type createRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (h *StatementHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, domain.StatementTypeDeposit)
}

func (h *StatementHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, domain.StatementTypeWithdraw)
}

func (h *StatementHandler) create(w http.ResponseWriter, r *http.Request, typ domain.StatementType) {
	userID, _ := UserIDFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	st, err := h.ledger.CreateStatement(r.Context(), userID, typ, req.Amount, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStatementResponse(st))
}

func (h *StatementHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	b, err := h.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceResponse(b))
}

func (h *StatementHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	st, err := h.ledger.GetStatement(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementResponse(st))
}

func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
