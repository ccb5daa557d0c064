package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

// Index backends.
const (
	BackendBleve         = "bleve"
	BackendElasticsearch = "elasticsearch"
)

// Sync state backends.
const (
	StateSQLite = "sqlite"
	StateRedis  = "redis"
	StateMemory = "memory"
)

// Environment overrides.
const (
	EnvIndexBackend = "SEARCHSYNC_INDEX_BACKEND"
	EnvESURL        = "SEARCHSYNC_ES_URL"
	EnvDataDir      = "SEARCHSYNC_DATA_DIR"
	EnvStateBackend = "SEARCHSYNC_STATE_BACKEND"
	EnvRedisAddr    = "SEARCHSYNC_REDIS_ADDR"
)

// Config is the complete searchsync configuration.
type Config struct {
	Index        IndexConfig        `toml:"index" yaml:"index"`
	Sync         SyncConfig         `toml:"sync" yaml:"sync"`
	State        StateConfig        `toml:"state" yaml:"state"`
	Store        StoreConfig        `toml:"store" yaml:"store"`
	QueryLog     QueryLogConfig     `toml:"query_log" yaml:"query_log"`
	Autocomplete AutocompleteConfig `toml:"autocomplete" yaml:"autocomplete"`
	Server       ServerConfig       `toml:"server" yaml:"server"`
}

// IndexConfig selects and tunes the search backend.
type IndexConfig struct {
	Backend    string   `toml:"backend" yaml:"backend"`
	Prefix     string   `toml:"prefix" yaml:"prefix"`
	DataDir    string   `toml:"data_dir" yaml:"data_dir"`
	Addresses  []string `toml:"addresses" yaml:"addresses"`
	Username   string   `toml:"username" yaml:"username"`
	Password   string   `toml:"password" yaml:"password"`
	APIKey     string   `toml:"api_key" yaml:"api_key"`
	Timeout    Duration `toml:"timeout" yaml:"timeout"`
	MaxRetries int      `toml:"max_retries" yaml:"max_retries"`
	RateLimit  float64  `toml:"rate_limit" yaml:"rate_limit"`
	Burst      int      `toml:"burst" yaml:"burst"`
}

// SyncConfig tunes the sync engine and scheduler.
type SyncConfig struct {
	Interval        Duration `toml:"interval" yaml:"interval"`
	BatchSize       int      `toml:"batch_size" yaml:"batch_size"`
	SafetyMargin    Duration `toml:"safety_margin" yaml:"safety_margin"`
	MaxCatchUp      Duration `toml:"max_catch_up" yaml:"max_catch_up"`
	InitialFullSync bool     `toml:"initial_full_sync" yaml:"initial_full_sync"`
	HistoryLimit    int      `toml:"history_limit" yaml:"history_limit"`
	WriteTimeout    Duration `toml:"write_timeout" yaml:"write_timeout"`
}

// StateConfig selects where the watermark is kept.
type StateConfig struct {
	Backend       string `toml:"backend" yaml:"backend"`
	RedisAddr     string `toml:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `toml:"redis_password" yaml:"redis_password"`
	RedisDB       int    `toml:"redis_db" yaml:"redis_db"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	DataDir string `toml:"data_dir" yaml:"data_dir"`
}

// QueryLogConfig tunes the asynchronous query log writer.
type QueryLogConfig struct {
	QueueSize    int      `toml:"queue_size" yaml:"queue_size"`
	WriteTimeout Duration `toml:"write_timeout" yaml:"write_timeout"`
}

// AutocompleteConfig tunes suggestion limits.
type AutocompleteConfig struct {
	MinPrefix    int `toml:"min_prefix" yaml:"min_prefix"`
	DefaultLimit int `toml:"default_limit" yaml:"default_limit"`
	MaxLimit     int `toml:"max_limit" yaml:"max_limit"`
	HistoryLimit int `toml:"history_limit" yaml:"history_limit"`
	PopularLimit int `toml:"popular_limit" yaml:"popular_limit"`
}

// ServerConfig sets the listen addresses used by serve.
type ServerConfig struct {
	MCPAddr     string `toml:"mcp_addr" yaml:"mcp_addr"`
	MetricsAddr string `toml:"metrics_addr" yaml:"metrics_addr"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() Config {
	return Config{
		Index: IndexConfig{
			Backend:    BackendBleve,
			Prefix:     domain.DefaultIndexPrefix,
			Addresses:  []string{"http://localhost:9200"},
			Timeout:    Duration(10 * time.Second),
			MaxRetries: 3,
		},
		Sync: SyncConfig{
			Interval:        Duration(5 * time.Minute),
			BatchSize:       100,
			SafetyMargin:    Duration(30 * time.Second),
			MaxCatchUp:      Duration(24 * time.Hour),
			InitialFullSync: true,
			HistoryLimit:    100,
			WriteTimeout:    Duration(5 * time.Second),
		},
		State: StateConfig{Backend: StateSQLite},
		QueryLog: QueryLogConfig{
			QueueSize:    256,
			WriteTimeout: Duration(2 * time.Second),
		},
		Autocomplete: AutocompleteConfig{
			MinPrefix:    domain.MinPrefixLength,
			DefaultLimit: domain.DefaultSuggestLimit,
			MaxLimit:     50,
			HistoryLimit: domain.HistorySuggestLimit,
			PopularLimit: domain.PopularSuggestLimit,
		},
		Server: ServerConfig{
			MCPAddr:     "localhost:8765",
			MetricsAddr: "localhost:9464",
		},
	}
}

// DefaultPath returns ~/.searchsync/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".searchsync", "config.toml"), nil
}

// Load reads the config file at path onto the defaults, then applies
// environment overrides. An empty path loads defaults only.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			if err := toml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse toml: %w", err)
			}
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse yaml: %w", err)
			}
		default:
			return Config{}, errors.New("config file must be .toml, .yaml, or .yml")
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvIndexBackend); ok && v != "" {
		c.Index.Backend = strings.ToLower(v)
	}
	if v, ok := lookup(EnvESURL); ok && v != "" {
		var addrs []string
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				addrs = append(addrs, a)
			}
		}
		c.Index.Addresses = addrs
	}
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		c.Index.DataDir = filepath.Join(v, "index")
		c.Store.DataDir = v
	}
	if v, ok := lookup(EnvStateBackend); ok && v != "" {
		c.State.Backend = strings.ToLower(v)
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		c.State.RedisAddr = v
		if b, set := lookup(EnvStateBackend); !set || b == "" {
			c.State.Backend = StateRedis
		}
	}
	return nil
}

// Validate reports configuration that cannot be used.
func (c Config) Validate() error {
	var errs []error

	switch c.Index.Backend {
	case BackendBleve:
	case BackendElasticsearch:
		if len(c.Index.Addresses) == 0 {
			errs = append(errs, errors.New("index.addresses is required for elasticsearch"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown index backend %q", c.Index.Backend))
	}

	switch c.State.Backend {
	case StateSQLite, StateMemory:
	case StateRedis:
		if c.State.RedisAddr == "" {
			errs = append(errs, errors.New("state.redis_addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown state backend %q", c.State.Backend))
	}

	if c.Sync.Interval.Std() <= 0 {
		errs = append(errs, errors.New("sync.interval must be positive"))
	}
	if c.Sync.BatchSize <= 0 {
		errs = append(errs, errors.New("sync.batch_size must be positive"))
	}
	if c.Index.MaxRetries < 0 {
		errs = append(errs, errors.New("index.max_retries must not be negative"))
	}
	if c.QueryLog.QueueSize <= 0 {
		errs = append(errs, errors.New("query_log.queue_size must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// ParseDuration is a helper for flags that accept the same duration syntax.
func ParseDuration(s string) (Duration, error) {
	var d Duration
	if err := d.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return d, nil
}

// String renders the config as TOML.
func (c Config) String() string {
	redacted := c
	if redacted.Index.Password != "" {
		redacted.Index.Password = "***"
	}
	if redacted.Index.APIKey != "" {
		redacted.Index.APIKey = "***"
	}
	if redacted.State.RedisPassword != "" {
		redacted.State.RedisPassword = "***"
	}
	out, err := toml.Marshal(redacted)
	if err != nil {
		return "error: " + strconv.Quote(err.Error())
	}
	return string(out)
}
