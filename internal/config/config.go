package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-statement-ledger/pkg/logger"
	"github.com/JoeShih716/go-statement-ledger/pkg/mysql"
	"github.com/JoeShih716/go-statement-ledger/pkg/postgres"
	"github.com/JoeShih716/go-statement-ledger/pkg/ratelimit"
)

// DefaultPath 未指定 LEDGER_CONFIG 時讀取的設定檔
const DefaultPath = "config/config.yaml"

// 儲存層種類
const (
	StoreMemory   = "memory"
	StoreMySQL    = "mysql"
	StorePostgres = "postgres"
)

// placeholderSecrets 範例設定常見的佔位密鑰，不得用於簽章驗證
var placeholderSecrets = map[string]bool{
	"change-me": true,
	"changeme":  true,
	"secret":    true,
}

// Config 服務設定
type Config struct {
	Store    string `yaml:"store"`
	GRPCAddr string `yaml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr"`

	// JWTSecret HS256 簽章密鑰，空值時不啟動 HTTP API
	JWTSecret string `yaml:"jwt_secret"`

	// CheckOwnership 查詢單筆紀錄是否要求擁有者相符，未設定時為 true
	CheckOwnership *bool `yaml:"check_ownership"`

	Log      logger.Config   `yaml:"log"`
	Memory   MemoryConfig    `yaml:"memory"`
	MySQL    mysql.Config    `yaml:"mysql"`
	Postgres postgres.Config `yaml:"postgres"`
	Kafka    KafkaConfig     `yaml:"kafka"`

	// RateLimit HTTP API 的每使用者限流 (Redis)，Addr 為空時不啟用
	RateLimit ratelimit.Config `yaml:"rate_limit"`
}

// MemoryConfig 記憶體儲存層設定
type MemoryConfig struct {
	// WALPath 空值表示不落地
	WALPath   string     `yaml:"wal_path"`
	SeedUsers []SeedUser `yaml:"seed_users"`
}

// SeedUser 記憶體模式啟動時註冊的固定使用者
type SeedUser struct {
	ID    string `yaml:"id"`
	Email string `yaml:"email"`
}

// KafkaConfig 交易事件發佈設定，Brokers 為空時不發佈
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// OwnershipCheck 回傳是否啟用擁有者檢查
func (c *Config) OwnershipCheck() bool {
	return c.CheckOwnership == nil || *c.CheckOwnership
}

// Load 依序載入 .env、YAML 設定檔與環境變數覆寫，最後補上預設值
//
// 參數:
//
//	path: 設定檔路徑，空值時使用 LEDGER_CONFIG 或 DefaultPath
//
// 回傳:
//
//	*Config: 完整的設定
//	error: 檔案無法解析、環境變數格式錯誤或設定不合法
func Load(path string) (*Config, error) {
	// .env 不存在時直接使用系統環境變數
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	explicit := true
	if path == "" {
		path = os.Getenv("LEDGER_CONFIG")
	}
	if path == "" {
		path = DefaultPath
		explicit = false
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// 沒有預設設定檔，全部使用環境變數與預設值
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults 補全未設定的欄位
func (c *Config) ApplyDefaults() {
	if c.Store == "" {
		c.Store = StoreMemory
	}
	if c.GRPCAddr == "" {
		c.GRPCAddr = ":50051"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	c.MySQL.ApplyDefaults()
	c.Postgres.ApplyDefaults()
	c.RateLimit.ApplyDefaults()
}

// Validate 檢查設定是否合法
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreMySQL, StorePostgres:
	default:
		return fmt.Errorf("unknown store %q (want memory, mysql or postgres)", c.Store)
	}
	if placeholderSecrets[strings.ToLower(strings.TrimSpace(c.JWTSecret))] {
		return fmt.Errorf("jwt_secret %q is a placeholder, set a real secret or leave it empty", c.JWTSecret)
	}
	for i, u := range c.Memory.SeedUsers {
		if u.ID == "" || u.Email == "" {
			return fmt.Errorf("memory.seed_users[%d]: id and email are required", i)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Store, "LEDGER_STORE")
	setString(&c.GRPCAddr, "GRPC_ADDR")
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Memory.WALPath, "WAL_PATH")

	setString(&c.MySQL.Host, "MYSQL_HOST")
	setString(&c.MySQL.User, "MYSQL_USER")
	setString(&c.MySQL.Password, "MYSQL_PASSWORD")
	setString(&c.MySQL.DBName, "MYSQL_DBNAME")
	if err := setInt(&c.MySQL.Port, "MYSQL_PORT"); err != nil {
		return err
	}

	setString(&c.Postgres.Host, "POSTGRES_HOST")
	setString(&c.Postgres.User, "POSTGRES_USER")
	setString(&c.Postgres.Password, "POSTGRES_PASSWORD")
	setString(&c.Postgres.DBName, "POSTGRES_DBNAME")
	setString(&c.Postgres.SSLMode, "POSTGRES_SSLMODE")
	if err := setInt(&c.Postgres.Port, "POSTGRES_PORT"); err != nil {
		return err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")

	setString(&c.RateLimit.Addr, "REDIS_ADDR")
	setString(&c.RateLimit.Password, "REDIS_PASSWORD")

	if v := os.Getenv("CHECK_OWNERSHIP"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CHECK_OWNERSHIP: %w", err)
		}
		c.CheckOwnership = &b
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
