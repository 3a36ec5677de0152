package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-statement-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-statement-ledger/pkg/wal"
)

// StatementStore 記憶體版的交易紀錄儲存
//
// 結構:
//
//	statements: 依寫入順序保存的紀錄
//	byID: 紀錄 ID 對應 statements 的索引
//	byUser: 使用者對應其紀錄索引 (已依寫入順序)
//	wal: Write-Ahead Log 實例 (可為 nil，此時重啟即遺失資料)
type StatementStore struct {
	mu         sync.RWMutex
	statements []*domain.Statement
	byID       map[string]int
	byUser     map[string][]int
	wal        *wal.WAL
	now        func() time.Time
}

// NewStatementStore 建立記憶體 Store，若有 WAL 則先從 WAL 恢復
//
// 參數:
//
//	w: Write-Ahead Log 實例，可為 nil
//
// 回傳:
//
//	*StatementStore: Store 實例
//	error: WAL 恢復失敗
func NewStatementStore(w *wal.WAL) (*StatementStore, error) {
	store := &StatementStore{
		byID:   make(map[string]int),
		byUser: make(map[string][]int),
		wal:    w,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if w != nil {
		if err := store.recoverFromWAL(); err != nil {
			return nil, fmt.Errorf("recover statements from wal: %w", err)
		}
	}
	return store, nil
}

// recoverFromWAL 只在建構時呼叫，無需 Lock (單執行緒)
func (m *StatementStore) recoverFromWAL() error {
	return m.wal.ReadAll(func(jsonRaw []byte) error {
		var s domain.Statement
		if err := json.Unmarshal(jsonRaw, &s); err != nil {
			return err
		}
		if _, ok := m.byID[s.ID]; ok {
			return nil
		}
		m.appendLocked(&s)
		return nil
	})
}

// Create 寫入一筆紀錄；有 WAL 時先落地再放入記憶體
func (m *StatementStore) Create(ctx context.Context, userID string, typ domain.StatementType, amount decimal.Decimal, description string) (*domain.Statement, error) {
	now := m.now()
	s := &domain.Statement{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        typ,
		Amount:      amount,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.wal != nil {
		if err := m.wal.Write(s); err != nil {
			return nil, domain.NewStoreError("create", err)
		}
	}
	m.appendLocked(s)

	out := *s
	return &out, nil
}

func (m *StatementStore) appendLocked(s *domain.Statement) {
	idx := len(m.statements)
	m.statements = append(m.statements, s)
	m.byID[s.ID] = idx
	m.byUser[s.UserID] = append(m.byUser[s.UserID], idx)
}

// FindByID 依 ID 查詢，回傳副本
func (m *StatementStore) FindByID(ctx context.Context, statementID string) (*domain.Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byID[statementID]
	if !ok {
		return nil, domain.ErrStatementNotFound
	}
	out := *m.statements[idx]
	return &out, nil
}

// FindAllByUser 在讀鎖內複製，確保回傳的是一致的快照
func (m *StatementStore) FindAllByUser(ctx context.Context, userID string) ([]*domain.Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	indexes := m.byUser[userID]
	result := make([]*domain.Statement, 0, len(indexes))
	for _, idx := range indexes {
		out := *m.statements[idx]
		result = append(result, &out)
	}
	return result, nil
}

var _ usecase.StatementStore = (*StatementStore)(nil)
