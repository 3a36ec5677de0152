package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type routerOptions struct {
	limiter Limiter
	metrics bool
}

// RouterOption 定義 NewRouter 的配置選項函數
type RouterOption func(*routerOptions)

// WithRateLimiter 對 /api/v1/statements 下的請求以使用者為單位限流
func WithRateLimiter(l Limiter) RouterOption {
	return func(o *routerOptions) {
		o.limiter = l
	}
}

// WithMetrics 掛上 GET /metrics (Prometheus)
func WithMetrics() RouterOption {
	return func(o *routerOptions) {
		o.metrics = true
	}
}

// NewRouter 組裝 REST 路由
//
// 參數:
//
//	h: 交易紀錄 handler
//	auth: bearer token 驗證器
//	logger: 請求日誌
//	opts: 限流、metrics 等選項
//
// 回傳:
//
//	http.Handler: 可直接交給 http.Server 的 handler
func NewRouter(h *StatementHandler, auth *TokenVerifier, logger *zap.Logger, opts ...RouterOption) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &routerOptions{}
	for _, opt := range opts {
		opt(o)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false, // 使用 "*" 時必須為 false
		MaxAge:           300,
	}))

	r.Get("/health", Health)
	if o.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1/statements", func(r chi.Router) {
		r.Use(auth.Middleware)
		if o.limiter != nil {
			r.Use(rateLimit(o.limiter, logger))
		}
		r.Post("/deposit", h.Deposit)
		r.Post("/withdraw", h.Withdraw)
		r.Get("/balance", h.Balance)
		r.Get("/{id}", h.Get)
	})
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
