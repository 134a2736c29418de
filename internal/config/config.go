package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/newthinker/algotrade/internal/backtest"
	"github.com/newthinker/algotrade/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Data     DataConfig     `mapstructure:"data"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	APIKey          string        `mapstructure:"api_key"`
	JobTTLHours     int           `mapstructure:"job_ttl_hours"`
	MaxJobs         int           `mapstructure:"max_jobs"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	BacktestTimeout time.Duration `mapstructure:"backtest_timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // "json" or "console"
}

// DataConfig selects the market data provider.
type DataConfig struct {
	Provider     string        `mapstructure:"provider"`
	BaseURL      string        `mapstructure:"base_url"`
	Interval     string        `mapstructure:"interval"`
	LookbackDays int           `mapstructure:"lookback_days"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// CacheConfig holds the price cache settings.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Type    string        `mapstructure:"type"` // "localfs" or "s3"
	Path    string        `mapstructure:"path"` // For localfs
	MaxAge  time.Duration `mapstructure:"max_age"`
	S3      S3Config      `mapstructure:"s3"` // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type StorageConfig struct {
	Runs RunStoreConfig `mapstructure:"runs"`
}

// RunStoreConfig selects where completed runs are kept.
type RunStoreConfig struct {
	Type    string `mapstructure:"type"` // "memory" or "postgres"
	DSN     string `mapstructure:"dsn"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// BacktestConfig holds defaults for omitted request fields.
type BacktestConfig struct {
	Strategy       string  `mapstructure:"strategy"`
	PeriodsPerYear int     `mapstructure:"periods_per_year"` // 0 derives it from the interval
	CostBps        float64 `mapstructure:"cost_bps"`
	SlippageBps    float64 `mapstructure:"slippage_bps"`
	RFRatePct      float64 `mapstructure:"rf_rate_pct"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file. Values missing from the file keep
// their defaults; ALGOTRADE_* environment variables override both. A .env
// file next to the config or in the working directory is loaded first.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	loadDotEnv(path)

	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix("ALGOTRADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, core.Errorf(core.ErrConfigInvalid, "reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if ok && strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, core.Errorf(core.ErrConfigInvalid, "unmarshaling config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv(path string) {
	if path != "" {
		_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	}
	_ = godotenv.Load() // best-effort
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			JobTTLHours:     1,
			MaxJobs:         100,
			CORSOrigins:     []string{"*"},
			BacktestTimeout: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
		Data: DataConfig{
			Provider:     "yahoo",
			Interval:     "1d",
			LookbackDays: 1825,
			FetchTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: true,
			Type:    "localfs",
			Path:    "data/cache",
		},
		Storage: StorageConfig{
			Runs: RunStoreConfig{
				Type:    "memory",
				MaxRuns: 500,
			},
		},
		Backtest: BacktestConfig{
			Strategy: "sma_crossover",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// setDefaults registers every default with viper so environment variables
// can override keys absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	defaults := map[string]any{
		"server.host":               d.Server.Host,
		"server.port":               d.Server.Port,
		"server.mode":               d.Server.Mode,
		"server.api_key":            d.Server.APIKey,
		"server.job_ttl_hours":      d.Server.JobTTLHours,
		"server.max_jobs":           d.Server.MaxJobs,
		"server.cors_origins":       d.Server.CORSOrigins,
		"server.backtest_timeout":   d.Server.BacktestTimeout,
		"log.level":                 d.Log.Level,
		"log.encoding":              d.Log.Encoding,
		"data.provider":             d.Data.Provider,
		"data.base_url":             d.Data.BaseURL,
		"data.interval":             d.Data.Interval,
		"data.lookback_days":        d.Data.LookbackDays,
		"data.fetch_timeout":        d.Data.FetchTimeout,
		"cache.enabled":             d.Cache.Enabled,
		"cache.type":                d.Cache.Type,
		"cache.path":                d.Cache.Path,
		"cache.max_age":             d.Cache.MaxAge,
		"cache.s3.bucket":           d.Cache.S3.Bucket,
		"cache.s3.endpoint":         d.Cache.S3.Endpoint,
		"cache.s3.region":           d.Cache.S3.Region,
		"cache.s3.access_key":       d.Cache.S3.AccessKey,
		"cache.s3.secret_key":       d.Cache.S3.SecretKey,
		"cache.s3.prefix":           d.Cache.S3.Prefix,
		"storage.runs.type":         d.Storage.Runs.Type,
		"storage.runs.dsn":          d.Storage.Runs.DSN,
		"storage.runs.max_runs":     d.Storage.Runs.MaxRuns,
		"backtest.strategy":         d.Backtest.Strategy,
		"backtest.periods_per_year": d.Backtest.PeriodsPerYear,
		"backtest.cost_bps":         d.Backtest.CostBps,
		"backtest.slippage_bps":     d.Backtest.SlippageBps,
		"backtest.rf_rate_pct":      d.Backtest.RFRatePct,
		"metrics.enabled":           d.Metrics.Enabled,
		"metrics.path":              d.Metrics.Path,
	}
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxJobs < 1 {
		return invalid("server.max_jobs must be positive, got %d", c.Server.MaxJobs)
	}
	if c.Server.JobTTLHours < 0 {
		return invalid("server.job_ttl_hours cannot be negative, got %d", c.Server.JobTTLHours)
	}

	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		return invalid("log.encoding must be json or console, got %q", c.Log.Encoding)
	}

	// Data validation
	if c.Data.Provider != "yahoo" {
		return invalid("unsupported data.provider %q", c.Data.Provider)
	}
	if !backtest.ValidInterval(c.Data.Interval) {
		return invalid("data.interval must be 1d, 1wk or 1mo, got %q", c.Data.Interval)
	}
	if c.Data.LookbackDays < 1 {
		return invalid("data.lookback_days must be positive, got %d", c.Data.LookbackDays)
	}
	if c.Data.FetchTimeout < 0 {
		return invalid("data.fetch_timeout cannot be negative")
	}

	// Cache validation
	if c.Cache.Enabled {
		switch c.Cache.Type {
		case "localfs":
			if c.Cache.Path == "" {
				return missing("cache.path required when cache.type is localfs")
			}
		case "s3":
			if c.Cache.S3.Bucket == "" {
				return missing("cache.s3.bucket required when cache.type is s3")
			}
		default:
			return invalid("cache.type must be localfs or s3, got %q", c.Cache.Type)
		}
		if c.Cache.MaxAge < 0 {
			return invalid("cache.max_age cannot be negative")
		}
	}

	// Run store validation
	switch c.Storage.Runs.Type {
	case "memory":
		if c.Storage.Runs.MaxRuns < 1 {
			return invalid("storage.runs.max_runs must be positive, got %d", c.Storage.Runs.MaxRuns)
		}
	case "postgres":
		if c.Storage.Runs.DSN == "" {
			return missing("storage.runs.dsn required when storage.runs.type is postgres")
		}
	default:
		return invalid("storage.runs.type must be memory or postgres, got %q", c.Storage.Runs.Type)
	}

	// Backtest defaults validation
	if c.Backtest.CostBps < 0 || c.Backtest.SlippageBps < 0 {
		return invalid("backtest cost_bps and slippage_bps cannot be negative")
	}
	if c.Backtest.PeriodsPerYear < 0 {
		return invalid("backtest.periods_per_year cannot be negative, got %d", c.Backtest.PeriodsPerYear)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	return nil
}

// JobTTL returns the async job retention.
func (c *Config) JobTTL() time.Duration {
	return time.Duration(c.Server.JobTTLHours) * time.Hour
}

// Lookback returns the default history window.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.Data.LookbackDays) * 24 * time.Hour
}

func invalid(format string, args ...any) error {
	return core.WrapError(core.ErrConfigInvalid, fmt.Errorf(format, args...))
}

func missing(format string, args ...any) error {
	return core.WrapError(core.ErrConfigMissing, fmt.Errorf(format, args...))
}
