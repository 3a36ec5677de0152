package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-statement-ledger/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-statement-ledger/internal/app/core/adapter/in/http"
	kafka_adapter "github.com/JoeShih716/go-statement-ledger/internal/app/core/adapter/out/kafka"
	memory_adapter "github.com/JoeShih716/go-statement-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-statement-ledger/internal/app/core/adapter/out/mysql"
	postgres_adapter "github.com/JoeShih716/go-statement-ledger/internal/app/core/adapter/out/postgres"
	"github.com/JoeShih716/go-statement-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-statement-ledger/internal/config"
	"github.com/JoeShih716/go-statement-ledger/pkg/logger"
	"github.com/JoeShih716/go-statement-ledger/pkg/mysql"
	"github.com/JoeShih716/go-statement-ledger/pkg/postgres"
	"github.com/JoeShih716/go-statement-ledger/pkg/ratelimit"
	"github.com/JoeShih716/go-statement-ledger/pkg/wal"
)

func main() {
	// 1. 載入設定
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. 初始化 Logger
	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server exited with error", zap.Error(err))
	}
	lg.Info("Server exited")
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 初始化儲存層 (Driven Adapter)
	store, users, closeStore, err := openStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 4. 初始化 UseCase
	opts := []usecase.Option{
		usecase.WithLogger(lg),
		usecase.WithOwnershipCheck(cfg.OwnershipCheck()),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka_adapter.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = publisher.Close() }()
		opts = append(opts, usecase.WithPublisher(publisher))
		lg.Info("Publishing statement events", zap.Strings("brokers", cfg.Kafka.Brokers))
	}
	coreUseCase := usecase.NewCoreUseCase(store, users, opts...)

	errCh := make(chan error, 2)

	// 5. 啟動 gRPC Server (Driving Adapter)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_adapter.LoggingInterceptor(lg),
			grpc_adapter.MetricsInterceptor(),
		),
		// 客戶端連線池每 10 秒 ping 一次，MinTime 需小於該值
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	grpc_adapter.RegisterStatementServiceServer(s, grpc_adapter.NewGrpcServer(coreUseCase, lg))
	reflection.Register(s) // 方便 gRPC Client 測試 (如 grpcurl)
	go func() {
		lg.Info("Starting gRPC server", zap.String("addr", cfg.GRPCAddr))
		if err := s.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	// 6. 啟動 HTTP Server (未設定 JWT 密鑰時略過)
	var httpServer *http.Server
	if cfg.JWTSecret != "" {
		routerOpts := []http_adapter.RouterOption{http_adapter.WithMetrics()}
		if cfg.RateLimit.Addr != "" {
			rdb := ratelimit.NewClient(cfg.RateLimit)
			defer func() { _ = rdb.Close() }()
			routerOpts = append(routerOpts, http_adapter.WithRateLimiter(ratelimit.NewLimiter(rdb, cfg.RateLimit)))
			lg.Info("HTTP rate limit enabled",
				zap.String("redis", cfg.RateLimit.Addr),
				zap.Int("limit", cfg.RateLimit.Limit),
				zap.Duration("window", cfg.RateLimit.Window),
			)
		}
		handler := http_adapter.NewStatementHandler(coreUseCase, lg)
		httpServer = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           http_adapter.NewRouter(handler, http_adapter.NewTokenVerifier(cfg.JWTSecret), lg, routerOpts...),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			lg.Info("Starting HTTP server", zap.String("addr", cfg.HTTPAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http serve: %w", err)
			}
		}()
	} else {
		lg.Warn("jwt_secret is empty, HTTP API disabled")
	}

	// Graceful Shutdown
	var serveErr error
	select {
	case <-ctx.Done():
		lg.Info("Shutting down server...")
	case serveErr = <-errCh:
		lg.Error("server failed, shutting down", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			lg.Warn("http shutdown", zap.Error(err))
		}
	}
	s.GracefulStop()
	return serveErr
}

// openStore 依設定建立 StatementStore 與 UserDirectory
func openStore(ctx context.Context, cfg *config.Config, lg *zap.Logger) (usecase.StatementStore, usecase.UserDirectory, func(), error) {
	switch cfg.Store {
	case config.StoreMySQL:
		client, err := mysql.NewClient(cfg.MySQL, lg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect mysql: %w", err)
		}
		store := mysql_adapter.NewStatementStore(client)
		if err := store.AutoMigrate(ctx); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("migrate mysql: %w", err)
		}
		lg.Info("Connected to MySQL successfully")
		return store, mysql_adapter.NewUserDirectory(client), func() { _ = client.Close() }, nil

	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres, lg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := postgres_adapter.NewStatementStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		lg.Info("Connected to PostgreSQL successfully")
		return store, postgres_adapter.NewUserDirectory(pool), pool.Close, nil

	default:
		var (
			w       *wal.WAL
			closeFn = func() {}
		)
		if path := cfg.Memory.WALPath; path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return nil, nil, nil, fmt.Errorf("create wal dir: %w", err)
			}
			var err error
			if w, err = wal.NewWAL(path); err != nil {
				return nil, nil, nil, fmt.Errorf("open wal: %w", err)
			}
			// 程式結束時關閉 WAL
			closeFn = func() { _ = w.Close() }
		}
		store, err := memory_adapter.NewStatementStore(w)
		if err != nil {
			closeFn()
			return nil, nil, nil, fmt.Errorf("recover memory store: %w", err)
		}

		users := memory_adapter.NewUserDirectory()
		for _, u := range cfg.Memory.SeedUsers {
			if err := users.RegisterUser(ctx, u.ID, u.Email); err != nil {
				closeFn()
				return nil, nil, nil, fmt.Errorf("seed user %s: %w", u.ID, err)
			}
		}
		lg.Info("Using in-memory store",
			zap.String("wal", cfg.Memory.WALPath),
			zap.Int("seed_users", len(cfg.Memory.SeedUsers)),
		)
		return store, users, closeFn, nil
	}
}
