package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// unsetEnv clears keys for the test and restores them afterwards
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

const validYAML = `
server:
  host: "127.0.0.1"
  port: "9090"
  request_timeout: "3s"

log:
  level: "debug"
  format: "json"

store:
  backend: "cassandra"
  player_id: "kid-1"

cassandra:
  hosts: ["c1:9042", "c2:9042"]
  keyspace: "drill"
  consistency: "ONE"
  timeout: "2s"

creature:
  language: "en"
  catalog_path: "/etc/pokedrill/catalog.yaml"
  backoff: "100ms"

game:
  tick_interval: "500ms"
`

func TestLoad_ValidYAML(t *testing.T) {
	unsetEnv(t, "SERVER_HOST", "SERVER_PORT", "STORE_BACKEND", "CREATURE_ATTEMPTS")
	t.Setenv("CONFIG_PATH", writeYAML(t, validYAML))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Address() != "127.0.0.1:9090" {
		t.Errorf("address = %q, want %q", cfg.Address(), "127.0.0.1:9090")
	}
	if cfg.Server.RequestTimeout != 3*time.Second {
		t.Errorf("server.request_timeout = %v, want 3s", cfg.Server.RequestTimeout)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Store.Backend != BackendCassandra || cfg.Store.PlayerID != "kid-1" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if len(cfg.Cassandra.Hosts) != 2 || cfg.Cassandra.Hosts[1] != "c2:9042" {
		t.Errorf("cassandra.hosts = %v", cfg.Cassandra.Hosts)
	}
	if cfg.Cassandra.Timeout != 2*time.Second {
		t.Errorf("cassandra.timeout = %v, want 2s", cfg.Cassandra.Timeout)
	}
	if cfg.Creature.Language != "en" || cfg.Creature.Backoff != 100*time.Millisecond {
		t.Errorf("creature = %+v", cfg.Creature)
	}
	if cfg.Creature.Attempts != 3 {
		t.Errorf("creature.attempts = %d, want default 3", cfg.Creature.Attempts)
	}
	if cfg.Game.TickInterval != 500*time.Millisecond {
		t.Errorf("game.tick_interval = %v, want 500ms", cfg.Game.TickInterval)
	}
}

func TestLoad_ENVOverridesYAML(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeYAML(t, validYAML))
	t.Setenv("SERVER_PORT", "3000")
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("server.port = %q, want 3000 (ENV override)", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("store.backend = %q, want memory (ENV override)", cfg.Store.Backend)
	}
}

func TestLoad_ENVOnlyDefaults(t *testing.T) {
	unsetEnv(t, "CONFIG_PATH", "SERVER_PORT", "STORE_BACKEND", "STORE_FILE_PATH", "STORE_PLAYER_ID",
		"REDIS_CREATURE_CACHE", "CREATURE_ATTEMPTS", "GAME_TICK_INTERVAL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("server.port = %q, want 8080 (default)", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendFile {
		t.Errorf("store.backend = %q, want file (default)", cfg.Store.Backend)
	}
	if cfg.UsesRedis() {
		t.Error("defaults should not need redis")
	}
}

func TestLoad_ExplicitPathNotFound(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store:    StoreConfig{Backend: BackendFile, FilePath: "p.json", PlayerID: "local"},
			Creature: CreatureConfig{Attempts: 3},
			Game:     GameConfig{TickInterval: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }, "store.backend"},
		{"file without path", func(c *Config) { c.Store.FilePath = "" }, "store.file_path"},
		{"empty player", func(c *Config) { c.Store.PlayerID = "" }, "store.player_id"},
		{"cassandra without hosts", func(c *Config) { c.Store.Backend = BackendCassandra }, "cassandra.hosts"},
		{"zero attempts", func(c *Config) { c.Creature.Attempts = 0 }, "creature.attempts"},
		{"zero tick", func(c *Config) { c.Game.TickInterval = 0 }, "game.tick_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUsesRedis(t *testing.T) {
	cfg := Config{Store: StoreConfig{Backend: BackendRedis}}
	if !cfg.UsesRedis() {
		t.Error("redis backend needs redis")
	}
	cfg = Config{Store: StoreConfig{Backend: BackendFile}, Redis: RedisConfig{CacheOn: true}}
	if !cfg.UsesRedis() {
		t.Error("creature cache needs redis")
	}
}
