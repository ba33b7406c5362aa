package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/macrocredit/internal/backtest"
	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/marketdata"
	"github.com/newthinker/macrocredit/internal/signal"
	"github.com/newthinker/macrocredit/internal/storage/archive"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Backtest   BacktestConfig          `mapstructure:"backtest"`
	Signals    SignalsConfig           `mapstructure:"signals"`
	Aggregator signal.AggregatorConfig `mapstructure:"aggregator"`
	Data       DataConfig              `mapstructure:"data"`
	Storage    StorageConfig           `mapstructure:"storage"`
	Metrics    MetricsConfig           `mapstructure:"metrics"`
	Log        LogConfig               `mapstructure:"log"`
}

// BacktestConfig mirrors backtest.Config in file form. MaxHoldingDays of 0
// means no holding limit.
type BacktestConfig struct {
	EntryThreshold     float64 `mapstructure:"entry_threshold"`
	ExitThreshold      float64 `mapstructure:"exit_threshold"`
	PositionSize       float64 `mapstructure:"position_size"`
	TransactionCostBps float64 `mapstructure:"transaction_cost_bps"`
	MaxHoldingDays     int     `mapstructure:"max_holding_days"`
	DV01PerMillion     float64 `mapstructure:"dv01_per_million"`
}

type SignalsConfig struct {
	Lookback   int    `mapstructure:"lookback"`
	MinPeriods int    `mapstructure:"min_periods"`
	Catalog    string `mapstructure:"catalog"` // JSON catalog path; empty uses the built-ins
}

// Data sources
const (
	SourceSample  = "sample"
	SourceArchive = "archive"
)

type DataConfig struct {
	Source  string            `mapstructure:"source"` // "sample" or "archive"
	Prefix  string            `mapstructure:"prefix"` // archive prefix for market data
	Format  string            `mapstructure:"format"` // parquet or csv for written files
	Start   string            `mapstructure:"start"`  // sample start date, YYYY-MM-DD
	Periods int               `mapstructure:"periods"`
	Seed    uint64            `mapstructure:"seed"`
	From    string            `mapstructure:"from"` // inclusive date range applied to any source
	To      string            `mapstructure:"to"`
	Filter  marketdata.Filter `mapstructure:"filter"`
	Cache   CacheConfig       `mapstructure:"cache"`
}

// CacheConfig controls the local market data cache used with archive data
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`
	TTL     time.Duration `mapstructure:"ttl"` // 0 never expires
	Refresh bool          `mapstructure:"refresh"`
}

type StorageConfig struct {
	archive.Config `mapstructure:",squash"`
	PersistRuns    bool `mapstructure:"persist_runs"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"` // node exporter textfile output
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from file on top of Defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	bt := backtest.DefaultConfig()
	sig := signal.DefaultConfig()
	gen := marketdata.DefaultGenerateConfig()
	return &Config{
		Backtest: BacktestConfig{
			EntryThreshold:     bt.EntryThreshold(),
			ExitThreshold:      bt.ExitThreshold(),
			PositionSize:       bt.PositionSize(),
			TransactionCostBps: bt.TransactionCostBps(),
			DV01PerMillion:     bt.DV01PerMillion(),
		},
		Signals: SignalsConfig{
			Lookback:   sig.Lookback,
			MinPeriods: sig.MinPeriods,
		},
		Data: DataConfig{
			Source:  SourceSample,
			Prefix:  marketdata.DefaultPrefix,
			Start:   gen.Start.Format(core.DateLayout),
			Periods: gen.Periods,
			Seed:    gen.Seed,
			Format:  string(marketdata.FormatParquet),
			Cache: CacheConfig{
				Path: "cache",
				TTL:  marketdata.DefaultCacheTTL,
			},
		},
		Storage: StorageConfig{
			Config: archive.Config{
				Type: archive.TypeLocalFS,
				Path: "data",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.BacktestConfig(); err != nil {
		return err
	}
	if err := c.SignalConfig().Validate(); err != nil {
		return err
	}
	// empty weights mean equal weights over the enabled signals
	if len(c.Aggregator.Weights) > 0 {
		if err := c.Aggregator.Validate(); err != nil {
			return err
		}
	}

	switch c.Data.Source {
	case SourceSample:
		if _, err := c.GenerateConfig(); err != nil {
			return err
		}
	case SourceArchive:
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.source must be %q or %q, got %q", SourceSample, SourceArchive, c.Data.Source))
	}

	if _, err := marketdata.ParseFormat(c.Data.Format); err != nil {
		return err
	}
	if _, err := c.Range(); err != nil {
		return err
	}
	if c.Data.Cache.Enabled && c.Data.Cache.Path == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("data.cache.path required when the cache is enabled"))
	}
	if c.Data.Cache.TTL < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("data.cache.ttl cannot be negative, got %s", c.Data.Cache.TTL))
	}

	switch c.Storage.Type {
	case archive.TypeLocalFS, "":
		if c.Storage.Path == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.path required for localfs"))
		}
	case archive.TypeS3:
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.s3.bucket required for s3"))
		}
	case archive.TypeMemory:
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage.type %q", c.Storage.Type))
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("log.level: %w", err))
	}

	return nil
}

// BacktestConfig converts the backtest section to a validated backtest.Config
func (c *Config) BacktestConfig() (backtest.Config, error) {
	b := c.Backtest
	opts := []backtest.Option{
		backtest.WithEntryThreshold(b.EntryThreshold),
		backtest.WithExitThreshold(b.ExitThreshold),
		backtest.WithPositionSize(b.PositionSize),
		backtest.WithTransactionCostBps(b.TransactionCostBps),
		backtest.WithDV01PerMillion(b.DV01PerMillion),
	}
	if b.MaxHoldingDays != 0 {
		opts = append(opts, backtest.WithMaxHoldingDays(b.MaxHoldingDays))
	}
	return backtest.NewConfig(opts...)
}

// SignalConfig returns the rolling-window parameters for signal computation
func (c *Config) SignalConfig() signal.Config {
	return signal.Config{Lookback: c.Signals.Lookback, MinPeriods: c.Signals.MinPeriods}
}

// GenerateConfig returns the synthetic sample parameters of the data section
func (c *Config) GenerateConfig() (marketdata.GenerateConfig, error) {
	gen := marketdata.DefaultGenerateConfig()
	if c.Data.Start != "" {
		start, err := time.Parse(core.DateLayout, c.Data.Start)
		if err != nil {
			return gen, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("data.start: %w", err))
		}
		gen.Start = start
	}
	if c.Data.Periods < 1 {
		return gen, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.periods must be positive, got %d", c.Data.Periods))
	}
	gen.Periods = c.Data.Periods
	gen.Seed = c.Data.Seed
	return gen, nil
}

// Range returns the validated from/to date range of the data section
func (c *Config) Range() (marketdata.Range, error) {
	var r marketdata.Range
	for _, b := range []struct {
		key   string
		value string
		dst   *time.Time
	}{
		{"data.from", c.Data.From, &r.Start},
		{"data.to", c.Data.To, &r.End},
	} {
		if b.value == "" {
			continue
		}
		t, err := time.Parse(core.DateLayout, b.value)
		if err != nil {
			return r, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s: %w", b.key, err))
		}
		*b.dst = t
	}
	return r, r.Validate()
}

// Format returns the market data file format
func (c *Config) Format() marketdata.Format {
	f, err := marketdata.ParseFormat(c.Data.Format)
	if err != nil {
		return marketdata.FormatParquet
	}
	return f
}
