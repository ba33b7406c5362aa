// Package signal computes z-score normalized credit signals from market
// series and combines them into a composite positioning score. All signals
// follow one convention: positive means long credit risk.
package signal

import (
	"fmt"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/indicator"
	"github.com/newthinker/macrocredit/internal/series"
)

// Built-in signal names
const (
	BasisSignal    = "cdx_etf_basis"
	VIXGapSignal   = "cdx_vix_gap"
	MomentumSignal = "spread_momentum"
)

// Config holds the rolling-window parameters shared by every signal
type Config struct {
	Lookback   int `mapstructure:"lookback" json:"lookback"`
	MinPeriods int `mapstructure:"min_periods" json:"min_periods"`
}

// DefaultConfig returns a 20-day lookback with 10 required observations
func DefaultConfig() Config {
	return Config{Lookback: 20, MinPeriods: 10}
}

// Validate checks the window parameters
func (c Config) Validate() error {
	if c.Lookback < 2 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("lookback must be at least 2, got %d", c.Lookback))
	}
	if c.MinPeriods < 1 || c.MinPeriods > c.Lookback {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_periods must be between 1 and lookback (%d), got %d", c.Lookback, c.MinPeriods))
	}
	return nil
}

// CDXETFBasis measures CDX spreads against ETF-implied levels. The ETF series
// is forward-filled onto the CDX calendar and the raw basis is z-scored.
// Positive values mean CDX is cheap relative to the ETF.
func CDXETFBasis(cdx, etf series.Series, cfg Config) series.Series {
	dates := cdx.Dates()
	etfOnCDX := series.Reindex(etf, dates).Values()
	raw := make([]float64, len(dates))
	for i, p := range cdx.Points {
		raw[i] = p.Value - etfOnCDX[i]
	}
	return series.New(BasisSignal, dates, indicator.ZScore(raw, cfg.Lookback, cfg.MinPeriods))
}

// CDXVIXGap compares credit stress with equity stress. Each leg is measured
// as its deviation from its own rolling mean; the gap is normalized by its
// rolling deviation. Positive values mean credit stress is outpacing equity.
func CDXVIXGap(cdx, vix series.Series, cfg Config) series.Series {
	dates := cdx.Dates()
	c := cdx.Values()
	v := series.Reindex(vix, dates).Values()

	cMean := indicator.RollingMean(c, cfg.Lookback, cfg.MinPeriods)
	vMean := indicator.RollingMean(v, cfg.Lookback, cfg.MinPeriods)

	gap := make([]float64, len(dates))
	for i := range dates {
		gap[i] = (c[i] - cMean[i]) - (v[i] - vMean[i])
	}
	std := indicator.RollingStd(gap, cfg.Lookback, cfg.MinPeriods)

	out := make([]float64, len(dates))
	for i := range gap {
		out[i] = indicator.Divide(gap[i], std[i])
	}
	return series.New(VIXGapSignal, dates, out)
}

// SpreadMomentum is the negated lookback change in spreads scaled by rolling
// spread volatility. Tightening spreads give a positive signal.
func SpreadMomentum(cdx series.Series, cfg Config) series.Series {
	dates := cdx.Dates()
	s := cdx.Values()
	lagged := indicator.Shift(s, cfg.Lookback)
	std := indicator.RollingStd(s, cfg.Lookback, cfg.MinPeriods)

	out := make([]float64, len(s))
	for i := range s {
		out[i] = indicator.Divide(-(s[i] - lagged[i]), std[i])
	}
	return series.New(MomentumSignal, dates, out)
}
