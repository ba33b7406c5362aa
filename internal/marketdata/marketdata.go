// Package marketdata validates, generates and persists the CDX, VIX and ETF
// series the signal pipeline consumes.
package marketdata

import (
	"fmt"
	"math"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/series"
	"go.uber.org/zap"
)

// MarketData holds one series per instrument
type MarketData struct {
	CDX series.Series
	VIX series.Series
	ETF series.Series
}

// Bounds is the accepted value range for an instrument
type Bounds struct {
	Min float64
	Max float64
}

// schema bounds: spreads in basis points, VIX level, ETF price
var bounds = map[core.Instrument]Bounds{
	core.InstrumentCDX: {Min: 0, Max: 10000},
	core.InstrumentVIX: {Min: 0, Max: 200},
	core.InstrumentETF: {Min: 0, Max: 10000},
}

// BoundsFor returns the accepted value range for an instrument
func BoundsFor(i core.Instrument) Bounds {
	return bounds[i]
}

// Get returns the series for an instrument
func (m MarketData) Get(i core.Instrument) series.Series {
	switch i {
	case core.InstrumentCDX:
		return m.CDX
	case core.InstrumentVIX:
		return m.VIX
	case core.InstrumentETF:
		return m.ETF
	}
	return series.Series{}
}

// Set replaces the series for an instrument
func (m *MarketData) Set(i core.Instrument, s series.Series) {
	switch i {
	case core.InstrumentCDX:
		m.CDX = s
	case core.InstrumentVIX:
		m.VIX = s
	case core.InstrumentETF:
		m.ETF = s
	}
}

// ByName returns the non-empty series keyed by instrument name
func (m MarketData) ByName() map[string]series.Series {
	out := make(map[string]series.Series, len(core.Instruments))
	for _, i := range core.Instruments {
		if s := m.Get(i); s.Len() > 0 {
			out[string(i)] = s
		}
	}
	return out
}

// Validate checks every instrument against its bounds and returns a cleaned
// copy: dates truncated to UTC days, sorted, and duplicate dates dropped
// keeping the first. CDX is required; VIX and ETF may be empty. NaN values
// are missing observations and pass through.
func Validate(m MarketData, logger *zap.Logger) (MarketData, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m.CDX.Len() == 0 {
		return MarketData{}, core.WrapError(core.ErrNoData, fmt.Errorf("cdx series is empty"))
	}

	var out MarketData
	for _, inst := range core.Instruments {
		s := m.Get(inst)
		if s.Len() == 0 {
			continue
		}
		if s.Name == "" {
			s.Name = string(inst)
		}
		if err := checkBounds(inst, s); err != nil {
			return MarketData{}, err
		}

		clean, dups := s.Normalize().Sorted().Dedupe()
		if dups > 0 {
			logger.Warn("dropped duplicate dates",
				zap.String("instrument", string(inst)),
				zap.Int("duplicates", dups),
			)
		}
		if err := clean.Validate(); err != nil {
			return MarketData{}, err
		}
		out.Set(inst, clean)

		logger.Debug("validated market data",
			zap.String("instrument", string(inst)),
			zap.Int("rows", clean.Len()),
		)
	}
	return out, nil
}

func checkBounds(inst core.Instrument, s series.Series) error {
	b := bounds[inst]
	var invalid int
	var first series.Point
	for _, p := range s.Points {
		if math.IsNaN(p.Value) {
			continue
		}
		if p.Value < b.Min || p.Value > b.Max {
			if invalid == 0 {
				first = p
			}
			invalid++
		}
	}
	if invalid > 0 {
		return core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("%s: %d values outside [%g, %g], first %g on %s",
				inst, invalid, b.Min, b.Max, first.Value, first.Date.Format(core.DateLayout)))
	}
	return nil
}
