package mysql

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-statement-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-statement-ledger/pkg/mysql"
)

func TestSQLStatement_ToDomain(t *testing.T) {
	row := sqlStatement{
		ID:     "s1",
		UserID: "u1",
		Type:   "withdraw",
		Amount: decimal.RequireFromString("12.30"),
	}
	st, err := row.toDomain()
	if err != nil {
		t.Fatalf("to domain: %v", err)
	}
	if st.Type != domain.StatementTypeWithdraw || !st.Amount.Equal(decimal.RequireFromString("12.3")) {
		t.Fatalf("unexpected statement %+v", st)
	}

	row.Type = "transfer"
	if _, err := row.toDomain(); !errors.Is(err, domain.ErrInvalidStatementType) {
		t.Fatalf("expected ErrInvalidStatementType, got %v", err)
	}
}

// openTestDB 需要設定 LEDGER_MYSQL_DSN 才會執行整合測試
func openTestDB(t *testing.T) *mysql.Client {
	t.Helper()
	dsn := os.Getenv("LEDGER_MYSQL_DSN")
	if dsn == "" {
		t.Skip("LEDGER_MYSQL_DSN not set")
	}
	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open mysql: %v", err)
	}
	client := mysql.NewClientFromDB(db)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStatementStore_Integration(t *testing.T) {
	client := openTestDB(t)
	ctx := context.Background()

	store := NewStatementStore(client)
	if err := store.AutoMigrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	users := NewUserDirectory(client)
	userID, err := users.CreateUser(ctx, uuid.NewString()+"@test")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if ok, err := users.UserExists(ctx, userID); err != nil || !ok {
		t.Fatalf("expected user to exist: %v", err)
	}
	if ok, _ := users.UserExists(ctx, uuid.NewString()); ok {
		t.Fatalf("expected random user to be missing")
	}

	created, err := store.Create(ctx, userID, domain.StatementTypeDeposit, decimal.RequireFromString("100.00"), "deposit")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	found, err := store.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !found.Amount.Equal(decimal.NewFromInt(100)) || found.Type != domain.StatementTypeDeposit {
		t.Fatalf("unexpected statement %+v", found)
	}
	if _, err := store.FindByID(ctx, uuid.NewString()); !errors.Is(err, domain.ErrStatementNotFound) {
		t.Fatalf("expected ErrStatementNotFound, got %v", err)
	}

	err = store.WithUserLock(ctx, uuid.NewString(), func(usecase.StatementStore) error { return nil })
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound when locking a missing user, got %v", err)
	}
}

func TestStatementStore_LimitsIntegration(t *testing.T) {
	client := openTestDB(t)
	ctx := context.Background()

	store := NewStatementStore(client)
	if err := store.AutoMigrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	users := NewUserDirectory(client)
	userID, _ := users.CreateUser(ctx, uuid.NewString()+"@test")

	desc := strings.Repeat("x", 1000)
	created, err := store.Create(ctx, userID, domain.StatementTypeDeposit, domain.MaxAmount, desc)
	if err != nil {
		t.Fatalf("create max amount with long description: %v", err)
	}
	found, err := store.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !found.Amount.Equal(domain.MaxAmount) || found.Description != desc {
		t.Fatalf("round trip lost data: amount %s, description length %d", found.Amount, len(found.Description))
	}
}

func TestConcurrentWithdraws_Integration(t *testing.T) {
	client := openTestDB(t)
	ctx := context.Background()

	store := NewStatementStore(client)
	if err := store.AutoMigrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	users := NewUserDirectory(client)
	userID, _ := users.CreateUser(ctx, uuid.NewString()+"@test")

	// 兩個 CoreUseCase 模擬兩個服務實例，只靠資料庫列鎖序列化
	coreA := usecase.NewCoreUseCase(store, users)
	coreB := usecase.NewCoreUseCase(store, users)

	a := decimal.NewFromInt(10)
	if _, err := coreA.CreateStatement(ctx, userID, domain.StatementTypeDeposit, a.Mul(decimal.NewFromInt(5)), ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 12; i++ {
		core := coreA
		if i%2 == 1 {
			core = coreB
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := core.CreateStatement(ctx, userID, domain.StatementTypeWithdraw, a, ""); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 5 {
		t.Fatalf("expected 5 successful withdraws, got %d", ok)
	}
	b, err := coreA.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !b.Total.IsZero() {
		t.Fatalf("expected zero balance, got %s", b.Total)
	}
}
