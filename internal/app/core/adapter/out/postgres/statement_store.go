package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-statement-ledger/internal/app/core/usecase"
)

// querier 為 *pgxpool.Pool 與 pgx.Tx 的共同子集
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StatementStore PostgreSQL 版的交易紀錄儲存
type StatementStore struct {
	pool *pgxpool.Pool
	db   querier
}

func NewStatementStore(pool *pgxpool.Pool) *StatementStore {
	return &StatementStore{
		pool: pool,
		db:   pool,
	}
}

// Migrate 建立資料表 (idempotent)
func (s *StatementStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

const insertStatement = `
	INSERT INTO statements (id, user_id, type, amount, description, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $6)
`

// Create 寫入一筆紀錄
func (s *StatementStore) Create(ctx context.Context, userID string, typ domain.StatementType, amount decimal.Decimal, description string) (*domain.Statement, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	st := &domain.Statement{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        typ,
		Amount:      amount,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.Exec(ctx, insertStatement,
		st.ID, st.UserID, st.Type.String(), st.Amount, st.Description, now)
	if err != nil {
		return nil, domain.NewStoreError("create", err)
	}
	return st, nil
}

const selectColumns = `SELECT id, user_id, type, amount, description, created_at, updated_at FROM statements`

// FindByID 依 ID 查詢
func (s *StatementStore) FindByID(ctx context.Context, statementID string) (*domain.Statement, error) {
	row := s.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, statementID)
	st, err := scanStatement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStatementNotFound
	}
	if err != nil {
		return nil, domain.NewStoreError("find by id", err)
	}
	return st, nil
}

// FindAllByUser 依 seq 排序
func (s *StatementStore) FindAllByUser(ctx context.Context, userID string) ([]*domain.Statement, error) {
	rows, err := s.db.Query(ctx, selectColumns+` WHERE user_id = $1 ORDER BY seq ASC`, userID)
	if err != nil {
		return nil, domain.NewStoreError("find all by user", err)
	}
	defer rows.Close()

	statements := make([]*domain.Statement, 0)
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, domain.NewStoreError("find all by user", err)
		}
		statements = append(statements, st)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("find all by user", err)
	}
	return statements, nil
}

// WithUserLock 以交易層級的 advisory lock 序列化同一使用者的寫入
// 鎖在 COMMIT / ROLLBACK 時自動釋放
func (s *StatementStore) WithUserLock(ctx context.Context, userID string, fn func(store usecase.StatementStore) error) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID); err != nil {
			return domain.NewStoreError("lock user", err)
		}
		return fn(&StatementStore{pool: s.pool, db: tx})
	})
	if err != nil && domain.KindOf(err) == domain.KindUnknown {
		return domain.NewStoreError("transaction", err)
	}
	return err
}

func scanStatement(row pgx.Row) (*domain.Statement, error) {
	var (
		st  domain.Statement
		typ string
	)
	if err := row.Scan(&st.ID, &st.UserID, &typ, &st.Amount, &st.Description, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseStatementType(typ)
	if err != nil {
		return nil, err
	}
	st.Type = parsed
	st.CreatedAt = st.CreatedAt.UTC()
	st.UpdatedAt = st.UpdatedAt.UTC()
	return &st, nil
}

var (
	_ usecase.StatementStore = (*StatementStore)(nil)
	_ usecase.UserLocker     = (*StatementStore)(nil)
)
