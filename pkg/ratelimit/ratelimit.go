package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindow 原子地遞增計數，第一次遞增時設定過期時間
// 回傳 {目前計數, 剩餘毫秒}
const fixedWindow = `
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {current, redis.call('PTTL', KEYS[1])}
`

// Config 限流設定，Addr 為空時不啟用
type Config struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Limit    int           `yaml:"limit"`  // 每個視窗允許的請求數
	Window   time.Duration `yaml:"window"` // 視窗長度
	Prefix   string        `yaml:"prefix"`
}

// ApplyDefaults 補全未設定的欄位
func (c *Config) ApplyDefaults() {
	if c.Limit == 0 {
		c.Limit = 100
	}
	if c.Window == 0 {
		c.Window = time.Minute
	}
	if c.Prefix == "" {
		c.Prefix = "ledger:ratelimit"
	}
}

// Decision 單次檢查的結果
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// evaler 為 *redis.Client 的子集，方便測試替換
type evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Limiter 以 Redis 實作的固定視窗限流器，多個服務實例共用計數
type Limiter struct {
	client evaler
	limit  int
	window time.Duration
	prefix string
}

// NewClient 依設定建立 Redis 客戶端
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewLimiter(client evaler, cfg Config) *Limiter {
	cfg.ApplyDefaults()
	return &Limiter{
		client: client,
		limit:  cfg.Limit,
		window: cfg.Window,
		prefix: cfg.Prefix,
	}
}

// Allow 為 key 計數一次並判斷是否超過上限
//
// 參數:
//
//	ctx: 上下文
//	key: 限流對象 (例如使用者 ID)
//
// 回傳:
//
//	Decision: 是否放行與剩餘額度
//	error: Redis 無法使用時回傳錯誤，由呼叫端決定是否放行
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := l.client.Eval(ctx, fixedWindow, []string{l.prefix + ":" + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit %s: unexpected reply %v", key, res)
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = l.window
	}
	return Decision{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: max(l.limit-count, 0),
		ResetIn:   ttl,
	}, nil
}
