package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	backtestsTotal    *prometheus.CounterVec
	backtestDuration  prometheus.Histogram
	backtestTrades    prometheus.Gauge
	backtestTotalPnL  prometheus.Gauge
	backtestSharpe    prometheus.Gauge
	signalsComputed   *prometheus.CounterVec
	archiveWrites     *prometheus.CounterVec
	archiveWriteBytes prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{Registry: reg}

	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macrocredit_backtests_total",
			Help: "Total number of backtests",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "macrocredit_backtest_duration_seconds",
			Help:    "Backtest duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		},
	)
	r.backtestTrades = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "macrocredit_backtest_trades",
			Help: "Number of trades in the last backtest",
		},
	)
	r.backtestTotalPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "macrocredit_backtest_total_pnl",
			Help: "Total net P&L of the last backtest in dollars",
		},
	)
	r.backtestSharpe = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "macrocredit_backtest_sharpe_ratio",
			Help: "Annualized Sharpe ratio of the last backtest",
		},
	)
	r.signalsComputed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macrocredit_signals_computed_total",
			Help: "Total number of signal series computed",
		},
		[]string{"signal"},
	)
	r.archiveWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macrocredit_archive_writes_total",
			Help: "Total number of archive writes",
		},
		[]string{"status"},
	)
	r.archiveWriteBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "macrocredit_archive_write_bytes_total",
			Help: "Total bytes written to the archive",
		},
	)

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.backtestTrades)
	reg.MustRegister(r.backtestTotalPnL)
	reg.MustRegister(r.backtestSharpe)
	reg.MustRegister(r.signalsComputed)
	reg.MustRegister(r.archiveWrites)
	reg.MustRegister(r.archiveWriteBytes)

	return r
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordBacktestResult sets the headline gauges for the latest run.
func (r *Registry) RecordBacktestResult(trades int, totalPnL, sharpe float64) {
	r.backtestTrades.Set(float64(trades))
	r.backtestTotalPnL.Set(totalPnL)
	r.backtestSharpe.Set(sharpe)
}

// RecordSignal records a computed signal series.
func (r *Registry) RecordSignal(name string) {
	r.signalsComputed.WithLabelValues(name).Inc()
}

// RecordArchiveWrite records an archive write outcome.
func (r *Registry) RecordArchiveWrite(status string, bytes int) {
	r.archiveWrites.WithLabelValues(status).Inc()
	if status == StatusSuccess {
		r.archiveWriteBytes.Add(float64(bytes))
	}
}

// WriteTextfile writes every gathered metric in the text exposition format,
// for pickup by the node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Outcome labels
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)
