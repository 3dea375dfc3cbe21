package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/leafsii/kv-resave/internal/resave"
	"github.com/leafsii/kv-resave/pkg/kv"
)

type Config struct {
	Env string `mapstructure:"KVR_ENV"`

	Store   StoreConfig   `mapstructure:",squash"`
	Pacing  PacingConfig  `mapstructure:",squash"`
	Metrics MetricsConfig `mapstructure:",squash"`
}

type StoreConfig struct {
	Backend       string `mapstructure:"KVR_BACKEND"` // "redis", "memory"
	RedisURL      string `mapstructure:"KVR_REDIS_URL"`
	KeyPrefix     string `mapstructure:"KVR_KV_PREFIX"`
	ScanChunkSize int    `mapstructure:"KVR_SCAN_CHUNK_SIZE"`
	Debug         bool   `mapstructure:"KVR_STORAGE_DEBUG"` // Track per-key access stats
}

type PacingConfig struct {
	Min              time.Duration `mapstructure:"KVR_PACING_MIN"`
	Max              time.Duration `mapstructure:"KVR_PACING_MAX"`
	Target           time.Duration `mapstructure:"KVR_PACING_TARGET"`
	MaxKeysPerSecond float64       `mapstructure:"KVR_MAX_KEYS_PER_SEC"` // 0 = unlimited
}

type MetricsConfig struct {
	Addr string `mapstructure:"KVR_METRICS_ADDR"` // empty disables the endpoint
}

var keys = []string{
	"KVR_ENV",
	"KVR_BACKEND",
	"KVR_REDIS_URL",
	"KVR_KV_PREFIX",
	"KVR_SCAN_CHUNK_SIZE",
	"KVR_STORAGE_DEBUG",
	"KVR_PACING_MIN",
	"KVR_PACING_MAX",
	"KVR_PACING_TARGET",
	"KVR_MAX_KEYS_PER_SEC",
	"KVR_METRICS_ADDR",
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if !filepath.IsAbs(path) {
			if resolved, err := filepath.Abs(path); err == nil {
				abs = resolved
			}
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // ignore errors; env vars already set take precedence
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Unmarshal only sees keys viper knows about
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	// Set defaults
	v.SetDefault("KVR_ENV", "dev")
	v.SetDefault("KVR_BACKEND", string(kv.BackendRedis))
	v.SetDefault("KVR_REDIS_URL", "redis://127.0.0.1:6379/0")
	v.SetDefault("KVR_KV_PREFIX", "kv:")
	v.SetDefault("KVR_SCAN_CHUNK_SIZE", resave.DefaultBatchSize)
	v.SetDefault("KVR_STORAGE_DEBUG", false)
	v.SetDefault("KVR_PACING_MIN", resave.DefaultMinSleep.String())
	v.SetDefault("KVR_PACING_MAX", resave.DefaultMaxSleep.String())
	v.SetDefault("KVR_PACING_TARGET", resave.DefaultTargetDuration.String())
	v.SetDefault("KVR_MAX_KEYS_PER_SEC", 0)
	v.SetDefault("KVR_METRICS_ADDR", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch kv.Backend(c.Store.Backend) {
	case kv.BackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("KVR_REDIS_URL is required")
		}
	case kv.BackendMemory:
	default:
		return fmt.Errorf("invalid KVR_BACKEND %q (must be redis or memory)", c.Store.Backend)
	}
	if c.Store.ScanChunkSize <= 0 {
		return fmt.Errorf("KVR_SCAN_CHUNK_SIZE must be positive, got %d", c.Store.ScanChunkSize)
	}
	if c.Pacing.MaxKeysPerSecond < 0 {
		return fmt.Errorf("KVR_MAX_KEYS_PER_SEC must not be negative, got %v", c.Pacing.MaxKeysPerSecond)
	}
	if err := c.Pacer().Validate(); err != nil {
		return fmt.Errorf("KVR_PACING_*: %w", err)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// KV returns the store factory settings. Backend selection is logged
// through logger when it is not nil.
func (c *Config) KV(logger *zap.SugaredLogger) kv.Config {
	cfg := kv.Config{
		Backend:  kv.Backend(c.Store.Backend),
		RedisURL: c.Store.RedisURL,
	}
	if logger != nil {
		cfg.Logger = logger.Infow
	}
	return cfg
}

// Pacer returns the pacing bounds with the stock step sizes
func (c *Config) Pacer() resave.AdditivePacer {
	p := resave.DefaultPacer()
	p.Min = c.Pacing.Min
	p.Max = c.Pacing.Max
	p.Target = c.Pacing.Target
	return p
}

// Rewriter returns the settings for resave.NewRewriter
func (c *Config) Rewriter() resave.Config {
	return resave.Config{
		KeyPrefix:        c.Store.KeyPrefix,
		BatchSize:        c.Store.ScanChunkSize,
		Pacer:            c.Pacer(),
		MaxKeysPerSecond: c.Pacing.MaxKeysPerSecond,
	}
}
