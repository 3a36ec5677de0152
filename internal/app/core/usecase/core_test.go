package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-statement-ledger/internal/app/core/usecase"
)

// countingStore 記錄 Store 被呼叫的次數
type countingStore struct {
	usecase.StatementStore
	reads  atomic.Int64
	writes atomic.Int64
}

func (c *countingStore) Create(ctx context.Context, userID string, typ domain.StatementType, amount decimal.Decimal, description string) (*domain.Statement, error) {
	c.writes.Add(1)
	return c.StatementStore.Create(ctx, userID, typ, amount, description)
}

func (c *countingStore) FindByID(ctx context.Context, id string) (*domain.Statement, error) {
	c.reads.Add(1)
	return c.StatementStore.FindByID(ctx, id)
}

func (c *countingStore) FindAllByUser(ctx context.Context, userID string) ([]*domain.Statement, error) {
	c.reads.Add(1)
	return c.StatementStore.FindAllByUser(ctx, userID)
}

// recordingPublisher 收集發佈的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.StatementCreated
	err    error
}

func (p *recordingPublisher) PublishStatementCreated(_ context.Context, e domain.StatementCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	core  *usecase.CoreUseCase
	store *countingStore
	users *memory.UserDirectory
	pub   *recordingPublisher
}

func newFixture(t *testing.T, opts ...usecase.Option) *fixture {
	t.Helper()
	mem, err := memory.NewStatementStore(nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	store := &countingStore{StatementStore: mem}
	users := memory.NewUserDirectory()
	pub := &recordingPublisher{}
	opts = append([]usecase.Option{usecase.WithPublisher(pub)}, opts...)
	return &fixture{
		core:  usecase.NewCoreUseCase(store, users, opts...),
		store: store,
		users: users,
		pub:   pub,
	}
}

func (f *fixture) newUser(t *testing.T, email string) string {
	t.Helper()
	id, err := f.users.CreateUser(context.Background(), email)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGetBalance_NoStatements(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "empty@test")

	b, err := f.core.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !b.Total.IsZero() {
		t.Fatalf("expected zero balance, got %s", b.Total)
	}
	if len(b.Statements) != 0 {
		t.Fatalf("expected no statements, got %d", len(b.Statements))
	}
}

func TestGetBalance_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.core.GetBalance(context.Background(), "incorrect id")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if n := f.store.reads.Load(); n != 0 {
		t.Fatalf("expected no store reads, got %d", n)
	}
}

func TestCreateStatement_UnknownUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, typ := range []domain.StatementType{domain.StatementTypeDeposit, domain.StatementTypeWithdraw} {
		for _, amount := range []string{"0.01", "1000", "999999.99"} {
			_, err := f.core.CreateStatement(ctx, "incorrect id", typ, dec(amount), "x")
			if !errors.Is(err, domain.ErrUserNotFound) {
				t.Fatalf("%s %s: expected ErrUserNotFound, got %v", typ, amount, err)
			}
		}
	}
	if n := f.store.reads.Load(); n != 0 {
		t.Fatalf("expected no store reads, got %d", n)
	}
	if n := f.store.writes.Load(); n != 0 {
		t.Fatalf("expected no store writes, got %d", n)
	}
}

func TestCreateStatement_InvalidAmount(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "amount@test")

	for _, amount := range []string{"0", "-10", "1.001"} {
		_, err := f.core.CreateStatement(context.Background(), userID, domain.StatementTypeWithdraw, dec(amount), "")
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if f.store.reads.Load() != 0 || f.store.writes.Load() != 0 {
		t.Fatalf("expected store untouched")
	}
}

func TestCreateStatement_Deposit(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "deposit@test")

	s, err := f.core.CreateStatement(context.Background(), userID, domain.StatementTypeDeposit, dec("1000"), " Depositing 1000")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if s.ID == "" {
		t.Fatalf("expected id")
	}
	if !s.Amount.Equal(dec("1000")) || s.Type != domain.StatementTypeDeposit {
		t.Fatalf("unexpected statement %+v", s)
	}
	// 存款不需要讀取餘額
	if n := f.store.reads.Load(); n != 0 {
		t.Fatalf("expected deposit to skip balance read, got %d reads", n)
	}
	if len(f.pub.events) != 1 || f.pub.events[0].StatementID != s.ID {
		t.Fatalf("expected one statement created event, got %+v", f.pub.events)
	}
}

func TestCreateStatement_WithdrawBoundary(t *testing.T) {
	ctx := context.Background()

	t.Run("exact balance succeeds", func(t *testing.T) {
		f := newFixture(t)
		userID := f.newUser(t, "exact@test")
		if _, err := f.core.CreateStatement(ctx, userID, domain.StatementTypeDeposit, dec("1000"), ""); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		if _, err := f.core.CreateStatement(ctx, userID, domain.StatementTypeWithdraw, dec("1000"), ""); err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		b, _ := f.core.GetBalance(ctx, userID)
		if !b.Total.IsZero() {
			t.Fatalf("expected zero balance, got %s", b.Total)
		}
	})

	t.Run("one cent over fails", func(t *testing.T) {
		f := newFixture(t)
		userID := f.newUser(t, "over@test")
		if _, err := f.core.CreateStatement(ctx, userID, domain.StatementTypeDeposit, dec("1000"), ""); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		_, err := f.core.CreateStatement(ctx, userID, domain.StatementTypeWithdraw, dec("1000.01"), "")
		if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
		if n := f.store.writes.Load(); n != 1 {
			t.Fatalf("expected only the deposit to be written, got %d writes", n)
		}
		if len(f.pub.events) != 1 {
			t.Fatalf("expected no event for the rejected withdraw")
		}
	})
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.newUser(t, "email@test")

	steps := []struct {
		typ     domain.StatementType
		amount  string
		wantErr error
		balance string
		count   int
	}{
		{domain.StatementTypeDeposit, "1000", nil, "1000", 1},
		{domain.StatementTypeWithdraw, "400", nil, "600", 2},
		{domain.StatementTypeDeposit, "500", nil, "1100", 3},
		{domain.StatementTypeWithdraw, "1200", domain.ErrInsufficientFunds, "1100", 3},
	}

	for i, step := range steps {
		_, err := f.core.CreateStatement(ctx, userID, step.typ, dec(step.amount), "")
		if !errors.Is(err, step.wantErr) {
			t.Fatalf("step %d: expected %v, got %v", i, step.wantErr, err)
		}
		b, err := f.core.GetBalance(ctx, userID)
		if err != nil {
			t.Fatalf("step %d: get balance: %v", i, err)
		}
		if !b.Total.Equal(dec(step.balance)) {
			t.Fatalf("step %d: expected balance %s, got %s", i, step.balance, b.Total)
		}
		if len(b.Statements) != step.count {
			t.Fatalf("step %d: expected %d statements, got %d", i, step.count, len(b.Statements))
		}
	}
}

func TestBalanceEqualsDepositsMinusWithdraws(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.newUser(t, "sum@test")

	deposits := []string{"10.25", "300", "0.75", "89.99"}
	withdraws := []string{"5.25", "100", "0.01"}
	for _, d := range deposits {
		if _, err := f.core.CreateStatement(ctx, userID, domain.StatementTypeDeposit, dec(d), ""); err != nil {
			t.Fatalf("deposit %s: %v", d, err)
		}
	}
	for _, w := range withdraws {
		if _, err := f.core.CreateStatement(ctx, userID, domain.StatementTypeWithdraw, dec(w), ""); err != nil {
			t.Fatalf("withdraw %s: %v", w, err)
		}
	}

	want := decimal.Zero
	for _, d := range deposits {
		want = want.Add(dec(d))
	}
	for _, w := range withdraws {
		want = want.Sub(dec(w))
	}

	b, err := f.core.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !b.Total.Equal(want) {
		t.Fatalf("expected %s, got %s", want, b.Total)
	}
	if len(b.Statements) != len(deposits)+len(withdraws) {
		t.Fatalf("unexpected statement count %d", len(b.Statements))
	}
}

func TestConcurrentWithdraws(t *testing.T) {
	const (
		n = 40
		k = 13
	)
	f := newFixture(t)
	ctx := context.Background()
	userID := f.newUser(t, "race@test")
	a := dec("25.50")

	if _, err := f.core.CreateStatement(ctx, userID, domain.StatementTypeDeposit, a.Mul(decimal.NewFromInt(k)), ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	var (
		wg           sync.WaitGroup
		start        = make(chan struct{})
		succeeded    atomic.Int64
		insufficient atomic.Int64
		other        atomic.Int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.core.CreateStatement(ctx, userID, domain.StatementTypeWithdraw, a, "")
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrInsufficientFunds):
				insufficient.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if succeeded.Load() != k {
		t.Fatalf("expected %d successful withdraws, got %d", k, succeeded.Load())
	}
	if insufficient.Load() != n-k {
		t.Fatalf("expected %d insufficient funds, got %d", n-k, insufficient.Load())
	}
	if other.Load() != 0 {
		t.Fatalf("unexpected errors: %d", other.Load())
	}
	b, _ := f.core.GetBalance(ctx, userID)
	if !b.Total.IsZero() {
		t.Fatalf("expected final balance 0, got %s", b.Total)
	}
}

func TestConcurrentUsersAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const users = 8
	ids := make([]string, users)
	for i := range ids {
		ids[i] = f.newUser(t, uuid.NewString()+"@test")
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for j := 0; j < 10; j++ {
			wg.Add(1)
			go func(userID string) {
				defer wg.Done()
				if _, err := f.core.CreateStatement(ctx, userID, domain.StatementTypeDeposit, dec("1"), ""); err != nil {
					t.Errorf("deposit: %v", err)
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range ids {
		b, _ := f.core.GetBalance(ctx, id)
		if !b.Total.Equal(dec("10")) {
			t.Fatalf("user %s: expected 10, got %s", id, b.Total)
		}
	}
}

func TestGetStatement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.newUser(t, "get@test")

	created, err := f.core.CreateStatement(ctx, userID, domain.StatementTypeDeposit, dec("1000"), "Depositing 1000")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	got, err := f.core.GetStatement(ctx, userID, created.ID)
	if err != nil {
		t.Fatalf("get statement: %v", err)
	}
	if got.ID != created.ID || !got.Amount.Equal(dec("1000")) || got.Type.String() != "deposit" {
		t.Fatalf("unexpected statement %+v", got)
	}

	if _, err := f.core.GetStatement(ctx, userID, uuid.NewString()); !errors.Is(err, domain.ErrStatementNotFound) {
		t.Fatalf("expected ErrStatementNotFound, got %v", err)
	}
	if _, err := f.core.GetStatement(ctx, "incorrect id", created.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetStatement_Ownership(t *testing.T) {
	ctx := context.Background()

	t.Run("enforced by default", func(t *testing.T) {
		f := newFixture(t)
		owner := f.newUser(t, "owner@test")
		other := f.newUser(t, "other@test")
		s, _ := f.core.CreateStatement(ctx, owner, domain.StatementTypeDeposit, dec("5"), "")

		if _, err := f.core.GetStatement(ctx, other, s.ID); !errors.Is(err, domain.ErrStatementNotFound) {
			t.Fatalf("expected ErrStatementNotFound for non-owner, got %v", err)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, usecase.WithOwnershipCheck(false))
		owner := f.newUser(t, "owner@test")
		other := f.newUser(t, "other@test")
		s, _ := f.core.CreateStatement(ctx, owner, domain.StatementTypeDeposit, dec("5"), "")

		got, err := f.core.GetStatement(ctx, other, s.ID)
		if err != nil {
			t.Fatalf("expected statement to be readable, got %v", err)
		}
		if got.UserID != owner {
			t.Fatalf("unexpected owner %s", got.UserID)
		}
	})
}

func TestCreateStatement_PublisherFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	userID := f.newUser(t, "pub@test")

	if _, err := f.core.CreateStatement(context.Background(), userID, domain.StatementTypeDeposit, dec("1"), ""); err != nil {
		t.Fatalf("expected success despite publisher error, got %v", err)
	}
	b, _ := f.core.GetBalance(context.Background(), userID)
	if len(b.Statements) != 1 {
		t.Fatalf("expected statement to be persisted")
	}
}

// failingStore 模擬儲存媒介無法使用
type failingStore struct{}

func (failingStore) Create(context.Context, string, domain.StatementType, decimal.Decimal, string) (*domain.Statement, error) {
	return nil, domain.NewStoreError("create", errors.New("connection refused"))
}

func (failingStore) FindByID(context.Context, string) (*domain.Statement, error) {
	return nil, domain.NewStoreError("find by id", errors.New("connection refused"))
}

func (failingStore) FindAllByUser(context.Context, string) ([]*domain.Statement, error) {
	return nil, domain.NewStoreError("find all by user", errors.New("connection refused"))
}

func TestStoreErrorsSurface(t *testing.T) {
	users := memory.NewUserDirectory()
	userID, _ := users.CreateUser(context.Background(), "store@test")
	core := usecase.NewCoreUseCase(failingStore{}, users)
	ctx := context.Background()

	if _, err := core.CreateStatement(ctx, userID, domain.StatementTypeDeposit, dec("1"), ""); domain.KindOf(err) != domain.KindStore {
		t.Fatalf("deposit: expected store error, got %v", err)
	}
	if _, err := core.CreateStatement(ctx, userID, domain.StatementTypeWithdraw, dec("1"), ""); domain.KindOf(err) != domain.KindStore {
		t.Fatalf("withdraw: expected store error, got %v", err)
	}
	if _, err := core.GetBalance(ctx, userID); domain.KindOf(err) != domain.KindStore {
		t.Fatalf("balance: expected store error, got %v", err)
	}
	if _, err := core.GetStatement(ctx, userID, "any"); domain.KindOf(err) != domain.KindStore {
		t.Fatalf("get: expected store error, got %v", err)
	}
}

// lockingStore 模擬實作 UserLocker 的資料庫 Store
type lockingStore struct {
	usecase.StatementStore
	mu     sync.Mutex
	locked []string
}

func (l *lockingStore) WithUserLock(ctx context.Context, userID string, fn func(store usecase.StatementStore) error) error {
	l.mu.Lock()
	l.locked = append(l.locked, userID)
	l.mu.Unlock()
	return fn(l.StatementStore)
}

func TestCreateStatement_UsesStoreLock(t *testing.T) {
	mem, _ := memory.NewStatementStore(nil)
	store := &lockingStore{StatementStore: mem}
	users := memory.NewUserDirectory()
	userID, _ := users.CreateUser(context.Background(), "lock@test")
	core := usecase.NewCoreUseCase(store, users)
	ctx := context.Background()

	if _, err := core.CreateStatement(ctx, userID, domain.StatementTypeDeposit, dec("10"), ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := core.CreateStatement(ctx, userID, domain.StatementTypeWithdraw, dec("11"), ""); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(store.locked) != 2 || store.locked[0] != userID {
		t.Fatalf("expected store lock for every write, got %v", store.locked)
	}
}

// blockingPublisher 第一次發佈會卡住直到 release 被關閉
type blockingPublisher struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPublisher) PublishStatementCreated(ctx context.Context, _ domain.StatementCreated) error {
	if p.calls.Add(1) == 1 {
		close(p.entered)
		<-p.release
	}
	return nil
}

func TestCreateStatement_SlowPublishDoesNotBlockSameUser(t *testing.T) {
	pub := &blockingPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, usecase.WithPublisher(pub))
	ctx := context.Background()
	userID := f.newUser(t, "slow-publish@test")

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.core.CreateStatement(ctx, userID, domain.StatementTypeDeposit, dec("10"), "first")
		firstDone <- err
	}()
	<-pub.entered

	secondDone := make(chan error, 1)
	go func() {
		_, err := f.core.CreateStatement(ctx, userID, domain.StatementTypeWithdraw, dec("4"), "second")
		secondDone <- err
	}()

	select {
	case err := <-secondDone:
		if err != nil {
			t.Fatalf("second create: %v", err)
		}
	case <-time.After(2 * time.Second):
		close(pub.release)
		t.Fatal("second write for the same user waited on the first publish")
	}

	close(pub.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first create: %v", err)
	}
	b, err := f.core.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !b.Total.Equal(dec("6")) {
		t.Fatalf("expected balance 6, got %s", b.Total)
	}
}
