package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	grpc_adapter "github.com/JoeShih716/go-statement-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
	grpcpool "github.com/JoeShih716/go-statement-ledger/pkg/grpc"
)

// 同一使用者先存入 k*a，再同時發出 n 筆提款 a
// 預期成功 min(n, k) 筆，其餘回 InsufficientFunds，最終餘額 (k - 成功數) * a
func main() {
	var (
		target  = flag.String("addr", "localhost:50051", "gRPC server address")
		userID  = flag.String("user", os.Getenv("LEDGER_USER_ID"), "existing user id (default $LEDGER_USER_ID)")
		n       = flag.Int("n", 1000, "number of concurrent withdraws")
		k       = flag.Int("k", 400, "deposit k*a before the race")
		amount  = flag.String("amount", "25.50", "withdraw amount a")
		timeout = flag.Duration("timeout", 60*time.Second, "overall timeout")
	)
	flag.Parse()

	if *userID == "" {
		log.Fatal("user id is required (-user or LEDGER_USER_ID)")
	}
	a, err := decimal.NewFromString(*amount)
	if err != nil {
		log.Fatalf("invalid amount %q: %v", *amount, err)
	}

	pool := grpcpool.NewPool()
	defer pool.Close()
	conn, err := pool.GetConnection(*target)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	c := grpc_adapter.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	before, err := c.GetBalance(ctx, *userID)
	if err != nil {
		log.Fatalf("initial balance: %v", err)
	}
	// 先把餘額提領至 0，讓結果可預期
	if before.Total.IsPositive() {
		if _, err := c.CreateStatement(ctx, *userID, domain.StatementTypeWithdraw, before.Total, "reset before race"); err != nil {
			log.Fatalf("reset balance: %v", err)
		}
	}
	if *k > 0 {
		deposit := a.Mul(decimal.NewFromInt(int64(*k)))
		if _, err := c.CreateStatement(ctx, *userID, domain.StatementTypeDeposit, deposit, "race deposit"); err != nil {
			log.Fatalf("deposit: %v", err)
		}
	}

	var (
		wg           sync.WaitGroup
		ok, rejected atomic.Int64
		failed       atomic.Int64
	)
	start := make(chan struct{})
	wg.Add(*n)
	for i := 0; i < *n; i++ {
		go func(idx int) {
			defer wg.Done()
			<-start
			_, err := c.CreateStatement(ctx, *userID, domain.StatementTypeWithdraw, a, fmt.Sprintf("race withdraw %d", idx))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientFunds):
				rejected.Add(1)
			default:
				failed.Add(1)
				if failed.Load() <= 5 {
					log.Printf("withdraw %d failed: %v", idx, err)
				}
			}
		}(i)
	}

	startTime := time.Now()
	close(start)
	wg.Wait()
	elapsed := time.Since(startTime)

	after, err := c.GetBalance(ctx, *userID)
	if err != nil {
		log.Fatalf("final balance: %v", err)
	}

	expectedOK := int64(min(*n, *k))
	expectedBalance := a.Mul(decimal.NewFromInt(int64(*k) - ok.Load()))

	fmt.Printf("Completed %d withdraws in %v\n", *n, elapsed)
	fmt.Printf("succeeded=%d rejected=%d failed=%d (expected succeeded=%d)\n", ok.Load(), rejected.Load(), failed.Load(), expectedOK)
	fmt.Printf("final balance=%s (expected %s)\n", after.Total.StringFixed(domain.AmountScale), expectedBalance.StringFixed(domain.AmountScale))

	if failed.Load() == 0 && (ok.Load() != expectedOK || !after.Total.Equal(expectedBalance)) {
		fmt.Println("RESULT: MISMATCH")
		os.Exit(1)
	}
	fmt.Println("RESULT: OK")
}
