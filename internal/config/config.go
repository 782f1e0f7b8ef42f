package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Store backends
const (
	BackendMemory    = "memory"
	BackendFile      = "file"
	BackendRedis     = "redis"
	BackendCassandra = "cassandra"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Cassandra CassandraConfig `yaml:"cassandra"`
	Creature  CreatureConfig  `yaml:"creature"`
	Game      GameConfig      `yaml:"game"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            string        `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	RequestTimeout  time.Duration `yaml:"request_timeout"  env:"SERVER_REQUEST_TIMEOUT"  env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// StoreConfig selects where the progression snapshot lives
type StoreConfig struct {
	Backend   string `yaml:"backend"    env:"STORE_BACKEND"    env-default:"file"`
	FilePath  string `yaml:"file_path"  env:"STORE_FILE_PATH"  env-default:"./data/progress.json"`
	EvictPath string `yaml:"evict_path" env:"STORE_EVICT_PATH"`
	PlayerID  string `yaml:"player_id"  env:"STORE_PLAYER_ID"  env-default:"local"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr        string        `yaml:"addr"         env:"REDIS_ADDR"                env-default:"localhost:6379"`
	Password    string        `yaml:"password"     env:"REDIS_PASSWORD"`
	DB          int           `yaml:"db"           env:"REDIS_DB"                  env-default:"0"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl" env:"REDIS_SNAPSHOT_TTL"        env-default:"0s"`
	CacheOn     bool          `yaml:"cache"        env:"REDIS_CREATURE_CACHE"      env-default:"false"`
}

// CassandraConfig holds Cassandra-specific configuration
type CassandraConfig struct {
	Hosts       []string      `yaml:"hosts"       env:"CASSANDRA_HOSTS"       env-default:"localhost:9042" env-separator:","`
	Keyspace    string        `yaml:"keyspace"    env:"CASSANDRA_KEYSPACE"    env-default:"pokedrill"`
	Username    string        `yaml:"username"    env:"CASSANDRA_USERNAME"`
	Password    string        `yaml:"password"    env:"CASSANDRA_PASSWORD"`
	Consistency string        `yaml:"consistency" env:"CASSANDRA_CONSISTENCY" env-default:"QUORUM"`
	Timeout     time.Duration `yaml:"timeout"     env:"CASSANDRA_TIMEOUT"     env-default:"5s"`
	Retries     int           `yaml:"retries"     env:"CASSANDRA_RETRIES"     env-default:"2"`
}

// CreatureConfig holds creature API settings
type CreatureConfig struct {
	BaseURL     string        `yaml:"base_url"     env:"CREATURE_API_URL"      env-default:"https://pokeapi.co/api/v2"`
	Language    string        `yaml:"language"     env:"CREATURE_LANGUAGE"     env-default:"ja"`
	Attempts    int           `yaml:"attempts"     env:"CREATURE_ATTEMPTS"     env-default:"3"`
	Backoff     time.Duration `yaml:"backoff"      env:"CREATURE_BACKOFF"      env-default:"500ms"`
	Timeout     time.Duration `yaml:"timeout"      env:"CREATURE_TIMEOUT"      env-default:"10s"`
	CatalogPath string        `yaml:"catalog_path" env:"CREATURE_CATALOG_PATH"`
}

// GameConfig holds session settings
type GameConfig struct {
	TickInterval time.Duration `yaml:"tick_interval" env:"GAME_TICK_INTERVAL" env-default:"1s"`
}

// Load reads configuration from an optional YAML file and environment variables.
// Priority: ENV > YAML > defaults. The file path comes from CONFIG_PATH; without
// it only ENV and defaults are used.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field rules after loading
func (c *Config) Validate() error {
	var errs []error

	backends := []string{BackendMemory, BackendFile, BackendRedis, BackendCassandra}
	if !slices.Contains(backends, c.Store.Backend) {
		errs = append(errs, fmt.Errorf("store.backend must be one of %v (got %q)", backends, c.Store.Backend))
	}
	if c.Store.Backend == BackendFile && c.Store.FilePath == "" {
		errs = append(errs, errors.New("store.file_path is required for the file backend"))
	}
	if c.Store.PlayerID == "" {
		errs = append(errs, errors.New("store.player_id must not be empty"))
	}
	if c.Store.Backend == BackendCassandra && len(c.Cassandra.Hosts) == 0 {
		errs = append(errs, errors.New("cassandra.hosts is required for the cassandra backend"))
	}
	if c.Creature.Attempts < 1 {
		errs = append(errs, fmt.Errorf("creature.attempts must be >= 1 (got %d)", c.Creature.Attempts))
	}
	if c.Game.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("game.tick_interval must be > 0 (got %s)", c.Game.TickInterval))
	}
	return errors.Join(errs...)
}

// Address returns the full address (host:port)
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// UsesRedis reports whether any component needs a redis connection
func (c *Config) UsesRedis() bool {
	return c.Store.Backend == BackendRedis || c.Redis.CacheOn
}
