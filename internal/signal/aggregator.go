package signal

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/series"
	"go.uber.org/zap"
)

// CompositeSignal is the name given to the aggregated series
const CompositeSignal = "composite_signal"

const weightTolerance = 0.01

// AggregatorConfig holds per-signal weights
type AggregatorConfig struct {
	Weights map[string]float64 `mapstructure:"weights" json:"weights"`
}

// EqualWeights assigns 1/n to each named signal
func EqualWeights(names ...string) AggregatorConfig {
	w := make(map[string]float64, len(names))
	for _, n := range names {
		w[n] = 1 / float64(len(names))
	}
	return AggregatorConfig{Weights: w}
}

// Validate checks each weight is in [0, 1] and that they sum to 1
func (c AggregatorConfig) Validate() error {
	if len(c.Weights) == 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("aggregator weights cannot be empty"))
	}
	var sum float64
	for _, name := range c.names() {
		w := c.Weights[name]
		if math.IsNaN(w) || w < 0 || w > 1 {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("weight for %s must be in [0, 1], got %v", name, w))
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("signal weights must sum to 1.0, got %.4f", sum))
	}
	return nil
}

func (c AggregatorConfig) names() []string {
	names := make([]string, 0, len(c.Weights))
	for n := range c.Weights {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Aggregate combines weighted signals on the union of their calendars. A date
// where any weighted component is missing is NaN in the composite. The result
// is not re-normalized.
func Aggregate(signals map[string]series.Series, cfg AggregatorConfig, logger *zap.Logger) (series.Series, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return series.Series{}, err
	}

	names := cfg.names()
	components := make([]series.Series, 0, len(names))
	lookups := make([]map[time.Time]float64, 0, len(names))
	for _, name := range names {
		s, ok := signals[name]
		if !ok {
			return series.Series{}, core.WrapError(core.ErrSignalNotFound, fmt.Errorf("no computed series for weighted signal %s", name))
		}
		components = append(components, s)
		lookups = append(lookups, series.Lookup(s))
	}

	dates := series.Union(components...)
	values := make([]float64, len(dates))
	for i, d := range dates {
		var total float64
		for j, name := range names {
			v, ok := lookups[j][d]
			if !ok || math.IsNaN(v) {
				total = math.NaN()
				break
			}
			total += v * cfg.Weights[name]
		}
		values[i] = total
	}

	composite := series.New(CompositeSignal, dates, values)
	logger.Info("aggregated signals",
		zap.Strings("components", names),
		zap.Int("dates", len(dates)),
		zap.Int("valid", composite.ValidCount()),
	)
	return composite, nil
}
