package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-statement-ledger/pkg/ratelimit"
)

var rateLimitExceeded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ledger_http_rate_limited_total",
	Help: "Requests rejected by the per-user rate limiter",
})

// Limiter 由 ratelimit.Limiter 實作
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// rateLimit 以使用者 ID 限流，必須放在驗證 Middleware 之後
// Redis 無法使用時放行
func rateLimit(limiter Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			d, err := limiter.Allow(r.Context(), userID)
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				rateLimitExceeded.Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(d.ResetIn.Seconds())+1))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
