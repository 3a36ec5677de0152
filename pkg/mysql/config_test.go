package mysql

import (
	"testing"
	"time"
)

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 3307, User: "ledger", Password: "secret", DBName: "statements"}
	want := "ledger:secret@tcp(db:3307)/statements?charset=utf8mb4&parseTime=True&loc=UTC"
	if got := cfg.DSN(); got != want {
		t.Fatalf("unexpected dsn\nwant %s\ngot  %s", want, got)
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{MaxOpenConns: 5}
	cfg.ApplyDefaults()

	if cfg.Port != 3306 {
		t.Errorf("expected default port 3306, got %d", cfg.Port)
	}
	if cfg.MaxOpenConns != 5 {
		t.Errorf("explicit MaxOpenConns overwritten: %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 10 || cfg.ConnMaxLifetime != 30*time.Minute {
		t.Errorf("unexpected pool defaults: %+v", cfg)
	}
	if cfg.ConnectRetries != 10 || cfg.RetryInterval != 2*time.Second {
		t.Errorf("unexpected retry defaults: %+v", cfg)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	for _, level := range []string{"info", "warn", "error", "silent", ""} {
		if newLogger(level) == nil {
			t.Fatalf("nil logger for level %q", level)
		}
	}
}
