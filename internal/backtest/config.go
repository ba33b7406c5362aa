package backtest

import (
	"fmt"
	"math"

	"github.com/newthinker/macrocredit/internal/core"
)

// costScale converts cost_bps × position_size_millions into dollars:
// one basis point of $1MM notional is $100.
const costScale = 100.0

// Config is the immutable parameter set of a backtest. Build it with
// NewConfig; a Config obtained that way is always valid.
type Config struct {
	entryThreshold     float64
	exitThreshold      float64
	positionSize       float64
	transactionCostBps float64
	maxHoldingDays     int // 0 means unconstrained
	dv01PerMillion     float64
}

// Option adjusts a Config under construction
type Option func(*Config)

// WithEntryThreshold sets the absolute signal magnitude required to open a position
func WithEntryThreshold(v float64) Option {
	return func(c *Config) { c.entryThreshold = v }
}

// WithExitThreshold sets the absolute signal magnitude below which a position is closed
func WithExitThreshold(v float64) Option {
	return func(c *Config) { c.exitThreshold = v }
}

// WithPositionSize sets the constant notional in millions
func WithPositionSize(v float64) Option {
	return func(c *Config) { c.positionSize = v }
}

// WithTransactionCostBps sets the cost charged on each entry and each exit
func WithTransactionCostBps(v float64) Option {
	return func(c *Config) { c.transactionCostBps = v }
}

// WithMaxHoldingDays forces an exit after n days in a position. Zero clears the limit.
func WithMaxHoldingDays(n int) Option {
	return func(c *Config) { c.maxHoldingDays = n }
}

// WithDV01PerMillion sets the dollar value of one basis point per $1MM notional
func WithDV01PerMillion(v float64) Option {
	return func(c *Config) { c.dv01PerMillion = v }
}

// NewConfig builds and validates a Config starting from the defaults
func NewConfig(opts ...Option) (Config, error) {
	c := Config{
		entryThreshold:     1.5,
		exitThreshold:      0.75,
		positionSize:       10.0,
		transactionCostBps: 1.0,
		dv01PerMillion:     4750.0,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// DefaultConfig returns the default parameter set
func DefaultConfig() Config {
	c, err := NewConfig()
	if err != nil {
		panic(err)
	}
	return c
}

func (c Config) validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"entry_threshold", c.entryThreshold},
		{"exit_threshold", c.exitThreshold},
		{"position_size", c.positionSize},
		{"transaction_cost_bps", c.transactionCostBps},
		{"dv01_per_million", c.dv01PerMillion},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s must be finite, got %v", f.name, f.value))
		}
	}
	if c.entryThreshold <= c.exitThreshold {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("entry_threshold (%v) must be > exit_threshold (%v)", c.entryThreshold, c.exitThreshold))
	}
	if c.positionSize <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("position_size must be positive, got %v", c.positionSize))
	}
	if c.transactionCostBps < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("transaction_cost_bps must be non-negative, got %v", c.transactionCostBps))
	}
	if c.maxHoldingDays < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_holding_days must be positive when set, got %d", c.maxHoldingDays))
	}
	return nil
}

func (c Config) EntryThreshold() float64     { return c.entryThreshold }
func (c Config) ExitThreshold() float64      { return c.exitThreshold }
func (c Config) PositionSize() float64       { return c.positionSize }
func (c Config) TransactionCostBps() float64 { return c.transactionCostBps }
func (c Config) DV01PerMillion() float64     { return c.dv01PerMillion }

// MaxHoldingDays returns the forced-exit limit and whether one is set
func (c Config) MaxHoldingDays() (int, bool) {
	return c.maxHoldingDays, c.maxHoldingDays > 0
}

// TransactionCost is the dollar cost of a single entry or exit:
// cost_bps × position_size_millions × 100.
func (c Config) TransactionCost() float64 {
	return c.transactionCostBps * c.positionSize * costScale
}

// ConfigSnapshot is the serializable echo of a Config
type ConfigSnapshot struct {
	EntryThreshold     float64 `json:"entry_threshold"`
	ExitThreshold      float64 `json:"exit_threshold"`
	PositionSize       float64 `json:"position_size"`
	TransactionCostBps float64 `json:"transaction_cost_bps"`
	MaxHoldingDays     *int    `json:"max_holding_days"`
	DV01PerMillion     float64 `json:"dv01_per_million"`
}

// Snapshot returns the resolved configuration for run metadata
func (c Config) Snapshot() ConfigSnapshot {
	s := ConfigSnapshot{
		EntryThreshold:     c.entryThreshold,
		ExitThreshold:      c.exitThreshold,
		PositionSize:       c.positionSize,
		TransactionCostBps: c.transactionCostBps,
		DV01PerMillion:     c.dv01PerMillion,
	}
	if n, ok := c.MaxHoldingDays(); ok {
		s.MaxHoldingDays = &n
	}
	return s
}

// Options converts a snapshot back into construction options
func (s ConfigSnapshot) Options() []Option {
	opts := []Option{
		WithEntryThreshold(s.EntryThreshold),
		WithExitThreshold(s.ExitThreshold),
		WithPositionSize(s.PositionSize),
		WithTransactionCostBps(s.TransactionCostBps),
		WithDV01PerMillion(s.DV01PerMillion),
	}
	if s.MaxHoldingDays != nil {
		opts = append(opts, WithMaxHoldingDays(*s.MaxHoldingDays))
	}
	return opts
}
