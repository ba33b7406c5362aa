package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledger(net []float64) []PnLRecord {
	records := make([]PnLRecord, len(net))
	var cum float64
	for i, v := range net {
		cum += v
		records[i] = PnLRecord{Date: baseDate.AddDate(0, 0, i), SpreadPnL: v, NetPnL: v, CumulativePnL: cum}
	}
	return records
}

func history(positions []Position, daysHeld []int) []PositionRecord {
	records := make([]PositionRecord, len(positions))
	for i := range positions {
		records[i] = PositionRecord{Date: baseDate.AddDate(0, 0, i), Position: positions[i], DaysHeld: daysHeld[i]}
	}
	return records
}

func TestComputePerformanceMetrics_KnownLedger(t *testing.T) {
	pnl := ledger([]float64{200, -100, 300, -100})
	positions := history([]Position{Long, Long, Flat, Short}, []int{0, 1, 0, 0})

	m := ComputePerformanceMetrics(pnl, positions)

	dailyStd := math.Sqrt(127500.0 / 3)
	nYears := 4 / 252.0

	assert.Equal(t, 300.0, m.TotalReturn)
	assert.InDelta(t, 300/nYears, m.AnnualizedReturn, 1e-9)
	assert.InDelta(t, dailyStd*math.Sqrt(252), m.AnnualizedVolatility, 1e-9)
	assert.InDelta(t, 75/dailyStd*math.Sqrt(252), m.SharpeRatio, 1e-9)

	// Both negative days are identical, so downside deviation is zero.
	assert.Equal(t, 0.0, m.SortinoRatio)

	assert.Equal(t, -100.0, m.MaxDrawdown)
	assert.InDelta(t, (300/nYears)/100, m.CalmarRatio, 1e-9)

	assert.Equal(t, 2, m.NTrades)
	assert.Equal(t, 0.5, m.HitRate)
	assert.Equal(t, 100.0, m.AvgWin)
	assert.Equal(t, -100.0, m.AvgLoss)
	assert.Equal(t, 1.0, m.WinLossRatio)
	assert.InDelta(t, 1.0/3, m.AvgHoldingDays, 1e-12)
}

func TestComputePerformanceMetrics_Sortino(t *testing.T) {
	pnl := ledger([]float64{300, -100, 200, -300, 100})
	positions := history(make([]Position, 5), make([]int, 5))

	m := ComputePerformanceMetrics(pnl, positions)

	downsideStd := math.Sqrt(20000.0) // sample std of {-100, -300}
	assert.InDelta(t, 40/downsideStd*math.Sqrt(252), m.SortinoRatio, 1e-9)
}

func TestComputePerformanceMetrics_NoDownsideFallsBackToSharpe(t *testing.T) {
	m := ComputePerformanceMetrics(ledger([]float64{100, 50, 0, 25}), history(make([]Position, 4), make([]int, 4)))

	assert.Positive(t, m.SharpeRatio)
	assert.Equal(t, m.SharpeRatio, m.SortinoRatio)
	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.Equal(t, 0.0, m.CalmarRatio)
}

func TestComputePerformanceMetrics_ZeroVolatility(t *testing.T) {
	m := ComputePerformanceMetrics(ledger(make([]float64, 10)), history(make([]Position, 10), make([]int, 10)))

	assert.Equal(t, PerformanceMetrics{}, m)
}

func TestComputePerformanceMetrics_SingleDay(t *testing.T) {
	m := ComputePerformanceMetrics(ledger([]float64{-1000}), history([]Position{Long}, []int{0}))

	assert.Equal(t, 0.0, m.SharpeRatio)
	assert.Equal(t, 0.0, m.SortinoRatio)
	assert.Equal(t, 0.0, m.AnnualizedVolatility)
	assert.Equal(t, 0.0, m.MaxDrawdown, "first date sets the running peak")
	assert.Equal(t, 1, m.NTrades)
	assert.Equal(t, -1000.0, m.AvgLoss)
}

func TestComputePerformanceMetrics_Empty(t *testing.T) {
	assert.Equal(t, PerformanceMetrics{}, ComputePerformanceMetrics(nil, nil))
}

func TestComputePerformanceMetrics_DrawdownUsesExpandingMax(t *testing.T) {
	// cumulative: 100, 300, 100, 200, -50, 250
	pnl := ledger([]float64{100, 200, -200, 100, -250, 300})
	m := ComputePerformanceMetrics(pnl, history(make([]Position, 6), make([]int, 6)))

	assert.Equal(t, -350.0, m.MaxDrawdown)
}

func TestComputePerformanceMetrics_SimpleLongTradeScenario(t *testing.T) {
	result := mustRun(t, concat(constant(10, 2.0), constant(10, 0.0)), constant(20, 100.0), DefaultConfig())
	m := ComputePerformanceMetrics(result.PnL, result.Positions)

	assert.Equal(t, 1, m.NTrades)
	assert.Equal(t, -2000.0, m.TotalReturn)
	assert.Equal(t, -1000.0, m.MaxDrawdown)
	assert.Equal(t, 0.0, m.HitRate)
	assert.Equal(t, -1000.0, m.AvgLoss, "exit date is flat, so only the entry cost lands in the trade")
	assert.Equal(t, 0.0, m.WinLossRatio)
	assert.Equal(t, 4.5, m.AvgHoldingDays)
}

func TestComputePerformanceMetrics_Invariants(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		sig, spread := randomWalk(400, seed)
		result := mustRun(t, sig, spread, mustConfig(t, WithMaxHoldingDays(int(seed%7)+1)))
		m := ComputePerformanceMetrics(result.PnL, result.Positions)

		assert.LessOrEqual(t, m.MaxDrawdown, 0.0)
		assert.GreaterOrEqual(t, m.HitRate, 0.0)
		assert.LessOrEqual(t, m.HitRate, 1.0)
		assert.GreaterOrEqual(t, m.NTrades, 0)
		assert.LessOrEqual(t, m.AvgLoss, 0.0)
		assert.GreaterOrEqual(t, m.AvgWin, 0.0)
		assert.Equal(t, result.Metadata.Summary.NTrades, m.NTrades)
		assert.Equal(t, result.Metadata.Summary.TotalPnL, m.TotalReturn)
	}
}

func TestTradeSegments(t *testing.T) {
	positions := history(
		[]Position{Flat, Long, Long, Flat, Short, Short, Short, Flat, Long},
		[]int{0, 0, 1, 0, 0, 1, 2, 0, 0},
	)
	pnl := ledger([]float64{5, -10, 30, 7, -10, 4, 1, 9, -3})

	trades := TradeSegments(positions, pnl)

	require.Len(t, trades, 3)
	assert.Equal(t, Trade{Direction: Long, StartDate: baseDate.AddDate(0, 0, 1), EndDate: baseDate.AddDate(0, 0, 2), Days: 2, PnL: 20}, trades[0])
	assert.Equal(t, Trade{Direction: Short, StartDate: baseDate.AddDate(0, 0, 4), EndDate: baseDate.AddDate(0, 0, 6), Days: 3, PnL: -5}, trades[1])
	assert.Equal(t, Trade{Direction: Long, StartDate: baseDate.AddDate(0, 0, 8), EndDate: baseDate.AddDate(0, 0, 8), Days: 1, PnL: -3}, trades[2], "open trade at series end")

	assert.True(t, trades[0].IsWin())
	assert.False(t, trades[1].IsWin())
}

func TestTradeSegments_DirectReversal(t *testing.T) {
	// The engine never reverses without a flat date, but a hand-built
	// history that does still splits into two segments and one entry.
	positions := history([]Position{Long, Short}, []int{0, 0})
	pnl := ledger([]float64{10, -20})

	assert.Len(t, TradeSegments(positions, pnl), 2)
	m := ComputePerformanceMetrics(pnl, positions)
	assert.Equal(t, 1, m.NTrades)
	assert.Equal(t, 0.5, m.HitRate)
}

func TestSampleStd(t *testing.T) {
	assert.Equal(t, 0.0, sampleStd(nil))
	assert.Equal(t, 0.0, sampleStd([]float64{3}))
	assert.InDelta(t, math.Sqrt(2.5), sampleStd([]float64{1, 2, 3, 4, 5}), 1e-12)
}
