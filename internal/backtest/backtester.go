package backtest

import (
	"context"
	"time"

	"github.com/newthinker/macrocredit/internal/series"
	"go.uber.org/zap"
)

// Recorder receives run outcomes, typically a metrics registry
type Recorder interface {
	RecordBacktest(status string, duration float64)
	RecordBacktestResult(trades int, totalPnL, sharpe float64)
}

// Backtester runs the engine with logging, a run timestamp and metrics
type Backtester struct {
	cfg      Config
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// BacktesterOption configures a Backtester
type BacktesterOption func(*Backtester)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) BacktesterOption {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) BacktesterOption {
	return func(b *Backtester) { b.recorder = r }
}

// WithClock overrides the clock used to stamp run metadata
func WithClock(now func() time.Time) BacktesterOption {
	return func(b *Backtester) { b.now = now }
}

// New creates a new Backtester for the given configuration
func New(cfg Config, opts ...BacktesterOption) *Backtester {
	b := &Backtester{
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Config returns the configuration the backtester runs with
func (b *Backtester) Config() Config {
	return b.cfg
}

// Run executes a backtest of the composite signal against the spread series
func (b *Backtester) Run(ctx context.Context, signal, spread series.Series) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := b.now()
	b.logger.Info("starting backtest",
		zap.Int("dates", signal.Len()),
		zap.Float64("entry_threshold", b.cfg.entryThreshold),
		zap.Float64("exit_threshold", b.cfg.exitThreshold),
		zap.Float64("position_size_mm", b.cfg.positionSize),
	)

	result, err := Run(signal, spread, b.cfg)
	if err != nil {
		b.logger.Error("backtest failed", zap.Error(err))
		b.record("failed", start)
		return nil, err
	}
	result.Metadata.Timestamp = start.Format(time.RFC3339)

	s := result.Metadata.Summary
	b.logger.Info("backtest complete",
		zap.Int("signal_dates", signal.Len()),
		zap.Int("aligned_dates", s.TotalDays),
		zap.Int("trades", s.NTrades),
		zap.Float64("total_pnl", s.TotalPnL),
		zap.Float64("avg_pnl_per_trade", s.AvgPnLPerTrade),
	)
	b.record("success", start)
	return result, nil
}

// Evaluate computes performance metrics for a result and logs the headline numbers
func (b *Backtester) Evaluate(result *Result) PerformanceMetrics {
	m := ComputePerformanceMetrics(result.PnL, result.Positions)

	b.logger.Info("metrics computed",
		zap.Float64("sharpe", m.SharpeRatio),
		zap.Float64("max_drawdown", m.MaxDrawdown),
		zap.Float64("hit_rate_pct", m.HitRate*100),
	)
	if b.recorder != nil {
		b.recorder.RecordBacktestResult(m.NTrades, m.TotalReturn, m.SharpeRatio)
	}
	return m
}

func (b *Backtester) record(status string, start time.Time) {
	if b.recorder == nil {
		return
	}
	b.recorder.RecordBacktest(status, b.now().Sub(start).Seconds())
}
