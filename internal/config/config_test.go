package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	content := `
version: "1"
server:
  port: 9090
  log_level: debug
store:
  driver: postgres
  dsn: postgres://localhost/aptgraph
session:
  backend: redis
  redis_addr: localhost:6379
`
	dir := t.TempDir()
	path := filepath.Join(dir, "aptgraph.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("log_level = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.DSN != "postgres://localhost/aptgraph" {
		t.Errorf("store = %+v, want postgres dsn set", cfg.Store)
	}
	if cfg.Session.Backend != "redis" || cfg.Session.RedisAddr != "localhost:6379" {
		t.Errorf("session = %+v, want redis backend", cfg.Session)
	}
	if cfg.Session.TTLMinute != 30 {
		t.Errorf("ttl default not applied, got %d", cfg.Session.TTLMinute)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != 8090 {
		t.Errorf("default port = %d, want 8090", cfg.Server.Port)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("default store driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.Session.Backend != "memory" {
		t.Errorf("default session backend = %q, want memory", cfg.Session.Backend)
	}
}

func TestValidateValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config should not error: %v", err)
	}
}

func TestValidateInvalidPort(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("port 0 should be invalid")
	}
}

func TestValidateMissingDSN(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DSN = ""
	if err := cfg.Validate(); err == nil {
		t.Error("postgres driver without dsn should be invalid")
	}
}

func TestValidateUnknownSessionBackend(t *testing.T) {
	cfg := Defaults()
	cfg.Session.Backend = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown session backend should be invalid")
	}
}

func TestValidateMissingRedisAddr(t *testing.T) {
	cfg := Defaults()
	cfg.Session.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Error("redis backend without redis_addr should be invalid")
	}
}

func TestSaveRoundTrips(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 9999
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("round-tripped port = %d, want 9999", loaded.Server.Port)
	}
}
