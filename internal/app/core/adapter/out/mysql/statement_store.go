package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-statement-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-statement-ledger/pkg/mysql"
)

// sqlUser 對應資料庫的 users 表 (由使用者服務維護，此處只讀取與鎖定)
type sqlUser struct {
	ID        string    `gorm:"primaryKey;type:char(36)"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (*sqlUser) TableName() string {
	return "users"
}

// sqlStatement 對應資料庫的 statements 表
// Seq 為自增序號，決定同一使用者紀錄的先後順序
type sqlStatement struct {
	Seq         int64           `gorm:"column:seq;primaryKey;autoIncrement"`
	ID          string          `gorm:"column:id;type:char(36);uniqueIndex"`
	UserID      string          `gorm:"column:user_id;type:char(36);index;not null"`
	Type        string          `gorm:"column:type;type:enum('deposit','withdraw');not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(15,2);not null"`
	Description string          `gorm:"column:description;type:text"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}

func (*sqlStatement) TableName() string {
	return "statements"
}

func (row *sqlStatement) toDomain() (*domain.Statement, error) {
	typ, err := domain.ParseStatementType(row.Type)
	if err != nil {
		return nil, err
	}
	return &domain.Statement{
		ID:          row.ID,
		UserID:      row.UserID,
		Type:        typ,
		Amount:      row.Amount,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

// StatementStore MySQL 版的交易紀錄儲存
type StatementStore struct {
	db *gorm.DB
}

func NewStatementStore(client *mysql.Client) *StatementStore {
	return &StatementStore{
		db: client.DB(),
	}
}

// AutoMigrate 建立 users / statements 表
func (s *StatementStore) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&sqlUser{}, &sqlStatement{})
}

// Create 寫入一筆紀錄
func (s *StatementStore) Create(ctx context.Context, userID string, typ domain.StatementType, amount decimal.Decimal, description string) (*domain.Statement, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	row := sqlStatement{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        typ.String(),
		Amount:      amount,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, domain.NewStoreError("create", err)
	}
	return row.toDomain()
}

// FindByID 依 ID 查詢
func (s *StatementStore) FindByID(ctx context.Context, statementID string) (*domain.Statement, error) {
	var row sqlStatement
	err := s.db.WithContext(ctx).Where("id = ?", statementID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrStatementNotFound
	}
	if err != nil {
		return nil, domain.NewStoreError("find by id", err)
	}
	return row.toDomain()
}

// FindAllByUser 依 seq 排序回傳，單一 SELECT 即為一致快照
func (s *StatementStore) FindAllByUser(ctx context.Context, userID string) ([]*domain.Statement, error) {
	var rows []sqlStatement
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, domain.NewStoreError("find all by user", err)
	}

	result := make([]*domain.Statement, 0, len(rows))
	for i := range rows {
		st, err := rows[i].toDomain()
		if err != nil {
			return nil, domain.NewStoreError("find all by user", err)
		}
		result = append(result, st)
	}
	return result, nil
}

// WithUserLock 在同一個資料庫交易中以 SELECT ... FOR UPDATE 鎖住使用者列 (悲觀鎖)
// 多個服務實例共用資料庫時，同一使用者的檢查與寫入依然序列化
func (s *StatementStore) WithUserLock(ctx context.Context, userID string, fn func(store usecase.StatementStore) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user sqlUser
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", userID).
			First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return domain.NewStoreError("lock user", err)
		}
		return fn(&StatementStore{db: tx})
	})
	if err != nil && domain.KindOf(err) == domain.KindUnknown {
		return domain.NewStoreError("transaction", err)
	}
	return err
}

var (
	_ usecase.StatementStore = (*StatementStore)(nil)
	_ usecase.UserLocker     = (*StatementStore)(nil)
)
