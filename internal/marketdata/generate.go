package marketdata

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/series"
)

// GenerateConfig parameterizes the synthetic sample
type GenerateConfig struct {
	Start   time.Time
	Periods int
	Seed    uint64

	BaseSpread float64 // CDX starting and mean level, bp
	SpreadVol  float64 // daily CDX shock, bp
	BaseVIX    float64
	VIXVol     float64
	BaseETF    float64
	ETFVol     float64
}

// DefaultGenerateConfig returns one year of daily data starting 2024-01-01
func DefaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Periods:    252,
		Seed:       42,
		BaseSpread: 100,
		SpreadVol:  5,
		BaseVIX:    15,
		VIXVol:     2,
		BaseETF:    80,
		ETFVol:     0.5,
	}
}

const (
	spreadReversion = 0.1
	vixReversion    = 0.15
	vixSpikeProb    = 0.05
	spreadFloor     = 1.0
	vixFloor        = 8.0
	etfDrift        = 0.0001
	// ETF return per bp of CDX change; credit ETFs fall when spreads widen
	etfSpreadBeta = 0.0005
)

// Generate produces a deterministic synthetic sample on consecutive calendar
// days. CDX and VIX mean-revert to their base levels; VIX spikes up with 5%
// probability per day; the ETF follows a geometric walk that moves against
// CDX spread changes. The same config always yields the same data.
func Generate(cfg GenerateConfig) (MarketData, error) {
	if cfg.Periods < 1 {
		return MarketData{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("periods must be positive, got %d", cfg.Periods))
	}
	if cfg.BaseSpread <= 0 || cfg.BaseVIX <= 0 || cfg.BaseETF <= 0 {
		return MarketData{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("base levels must be positive"))
	}
	if cfg.SpreadVol < 0 || cfg.VIXVol < 0 || cfg.ETFVol < 0 {
		return MarketData{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("volatilities cannot be negative"))
	}

	start := series.Day(cfg.Start)
	dates := make([]time.Time, cfg.Periods)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}

	cdx := generateSpread(cfg)
	vix := generateVIX(cfg)
	etf := generateETF(cfg, cdx)

	return MarketData{
		CDX: series.New(string(core.InstrumentCDX), dates, cdx),
		VIX: series.New(string(core.InstrumentVIX), dates, vix),
		ETF: series.New(string(core.InstrumentETF), dates, etf),
	}, nil
}

func newRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

func generateSpread(cfg GenerateConfig) []float64 {
	r := newRand(cfg.Seed, 0)
	out := make([]float64, cfg.Periods)
	out[0] = cfg.BaseSpread
	for i := 1; i < cfg.Periods; i++ {
		drift := spreadReversion * (cfg.BaseSpread - out[i-1])
		shock := r.NormFloat64() * cfg.SpreadVol
		out[i] = math.Max(spreadFloor, out[i-1]+drift+shock)
	}
	return out
}

func generateVIX(cfg GenerateConfig) []float64 {
	r := newRand(cfg.Seed, 2)
	out := make([]float64, cfg.Periods)
	out[0] = cfg.BaseVIX
	for i := 1; i < cfg.Periods; i++ {
		var spike float64
		if r.Float64() < vixSpikeProb {
			spike = 5 + 10*r.Float64()
		}
		drift := vixReversion * (cfg.BaseVIX - out[i-1])
		shock := r.NormFloat64() * cfg.VIXVol
		out[i] = math.Max(vixFloor, out[i-1]+drift+shock+spike)
	}
	return out
}

func generateETF(cfg GenerateConfig, cdx []float64) []float64 {
	r := newRand(cfg.Seed, 3)
	out := make([]float64, cfg.Periods)
	logPrice := math.Log(cfg.BaseETF)
	for i := range out {
		ret := etfDrift + r.NormFloat64()*cfg.ETFVol/cfg.BaseETF
		if i > 0 {
			ret -= etfSpreadBeta * (cdx[i] - cdx[i-1])
		}
		logPrice += ret
		out[i] = math.Exp(logPrice)
	}
	return out
}
