package backtest

import (
	"math"
)

// ComputePerformanceMetrics computes risk/return statistics from a P&L
// ledger and its position history. The two slices are expected to come from
// the same Result and are not re-validated; runs without trades yield
// neutral metrics. All ratios assume a zero risk-free rate.
func ComputePerformanceMetrics(pnl []PnLRecord, positions []PositionRecord) PerformanceMetrics {
	var m PerformanceMetrics
	if len(pnl) == 0 {
		return m
	}

	daily := make([]float64, len(pnl))
	cumulative := make([]float64, len(pnl))
	for i, r := range pnl {
		daily[i] = r.NetPnL
		cumulative[i] = r.CumulativePnL
	}

	nYears := float64(len(pnl)) / TradingDaysPerYear
	annualization := math.Sqrt(TradingDaysPerYear)

	m.TotalReturn = cumulative[len(cumulative)-1]
	if nYears > 0 {
		m.AnnualizedReturn = m.TotalReturn / nYears
	}

	dailyMean := mean(daily)
	dailyStd := sampleStd(daily)
	m.AnnualizedVolatility = dailyStd * annualization
	if dailyStd > 0 {
		m.SharpeRatio = dailyMean / dailyStd * annualization
	}

	m.SortinoRatio = sortinoRatio(daily, dailyMean, m.SharpeRatio)

	m.MaxDrawdown = maxDrawdown(cumulative)
	if m.MaxDrawdown < 0 {
		m.CalmarRatio = m.AnnualizedReturn / math.Abs(m.MaxDrawdown)
	}

	m.NTrades = countEntries(positions)
	trades := TradeSegments(positions, pnl)
	m.HitRate, m.AvgWin, m.AvgLoss, m.WinLossRatio = tradeStats(trades)
	m.AvgHoldingDays = avgHoldingDays(positions)

	return m
}

// TradeSegments splits the position history into maximal runs of identical
// non-flat positions and sums net P&L within each run. Every date where the
// position differs from the previous date (flat before the first date)
// starts a new segment.
func TradeSegments(positions []PositionRecord, pnl []PnLRecord) []Trade {
	var (
		trades []Trade
		open   *Trade
	)
	prev := Flat
	for i, p := range positions {
		if p.Position != prev {
			if open != nil {
				trades = append(trades, *open)
				open = nil
			}
			if p.Position != Flat {
				open = &Trade{Direction: p.Position, StartDate: p.Date}
			}
		}
		if open != nil {
			open.EndDate = p.Date
			open.Days++
			if i < len(pnl) {
				open.PnL += pnl[i].NetPnL
			}
		}
		prev = p.Position
	}
	if open != nil {
		trades = append(trades, *open)
	}
	return trades
}

// sortinoRatio uses the standard deviation of negative days only. With no
// negative days it falls back to the Sharpe ratio.
func sortinoRatio(daily []float64, dailyMean, sharpe float64) float64 {
	var downside []float64
	for _, v := range daily {
		if v < 0 {
			downside = append(downside, v)
		}
	}
	if len(downside) == 0 {
		return sharpe
	}
	downsideStd := sampleStd(downside)
	if downsideStd > 0 {
		return dailyMean / downsideStd * math.Sqrt(TradingDaysPerYear)
	}
	return 0
}

// maxDrawdown is the most negative distance of cumulative P&L below its
// expanding maximum
func maxDrawdown(cumulative []float64) float64 {
	var maxDD float64
	peak := math.Inf(-1)
	for _, v := range cumulative {
		if v > peak {
			peak = v
		}
		if dd := v - peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// countEntries counts flat to non-flat transitions
func countEntries(positions []PositionRecord) int {
	var n int
	prev := Flat
	for _, p := range positions {
		if prev == Flat && p.Position != Flat {
			n++
		}
		prev = p.Position
	}
	return n
}

func tradeStats(trades []Trade) (hitRate, avgWin, avgLoss, winLoss float64) {
	if len(trades) == 0 {
		return 0, 0, 0, 0
	}

	var wins, losses []float64
	for _, t := range trades {
		switch {
		case t.PnL > 0:
			wins = append(wins, t.PnL)
		case t.PnL < 0:
			losses = append(losses, t.PnL)
		}
	}

	hitRate = float64(len(wins)) / float64(len(trades))
	if len(wins) > 0 {
		avgWin = mean(wins)
	}
	if len(losses) > 0 {
		avgLoss = mean(losses)
	}
	if avgLoss < 0 {
		winLoss = math.Abs(avgWin / avgLoss)
	}
	return hitRate, avgWin, avgLoss, winLoss
}

func avgHoldingDays(positions []PositionRecord) float64 {
	var held []float64
	for _, p := range positions {
		if p.Position != Flat {
			held = append(held, float64(p.DaysHeld))
		}
	}
	if len(held) == 0 {
		return 0
	}
	return mean(held)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the n-1 standard deviation; fewer than two values give 0
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var variance float64
	for _, x := range xs {
		variance += (x - m) * (x - m)
	}
	return math.Sqrt(variance / float64(len(xs)-1))
}
