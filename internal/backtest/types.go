package backtest

import (
	"time"
)

// TradingDaysPerYear annualizes daily statistics. It is a fixed constant,
// not calendar-adjusted.
const TradingDaysPerYear = 252.0

// Position is the directional state of the overlay
type Position int8

const (
	Short Position = -1 // short credit risk (long protection)
	Flat  Position = 0
	Long  Position = 1 // long credit risk (short protection)
)

// String returns the lowercase name of the position
func (p Position) String() string {
	switch p {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// Event marks a transition decided on a date
type Event string

const (
	EventNone  Event = ""
	EventEntry Event = "entry"
	EventExit  Event = "exit"
)

// PositionRecord is the state of the overlay at the close of one date
type PositionRecord struct {
	Date     time.Time `json:"date"`
	Signal   float64   `json:"signal"`
	Position Position  `json:"position"`
	DaysHeld int       `json:"days_held"`
	Spread   float64   `json:"spread"`
}

// PnLRecord is the P&L booked on one date, aligned 1:1 with PositionRecord
type PnLRecord struct {
	Date          time.Time `json:"date"`
	SpreadPnL     float64   `json:"spread_pnl"`
	Cost          float64   `json:"cost"`
	NetPnL        float64   `json:"net_pnl"`
	CumulativePnL float64   `json:"cumulative_pnl"`
	Event         Event     `json:"event,omitempty"`
}

// Summary holds run-level totals
type Summary struct {
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	TotalDays      int       `json:"total_days"`
	NTrades        int       `json:"n_trades"`
	TotalPnL       float64   `json:"total_pnl"`
	AvgPnLPerTrade float64   `json:"avg_pnl_per_trade"`
}

// Metadata describes a backtest run. Timestamp is empty for pure runs so
// that identical inputs produce identical results.
type Metadata struct {
	Timestamp string         `json:"timestamp,omitempty"`
	Config    ConfigSnapshot `json:"config"`
	Summary   Summary        `json:"summary"`
}

// Result holds the complete backtest output
type Result struct {
	Positions []PositionRecord `json:"positions"`
	PnL       []PnLRecord      `json:"pnl"`
	Metadata  Metadata         `json:"metadata"`
}

// Trade is a maximal run of non-flat dates. It is derived from the position
// history and never stored by the engine.
type Trade struct {
	Direction Position  `json:"direction"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Days      int       `json:"days"`
	PnL       float64   `json:"pnl"`
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.PnL > 0
}

// PerformanceMetrics holds risk/return statistics for a run
type PerformanceMetrics struct {
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	MaxDrawdown          float64 `json:"max_drawdown"` // Always <= 0, in dollars
	CalmarRatio          float64 `json:"calmar_ratio"`
	TotalReturn          float64 `json:"total_return"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	HitRate              float64 `json:"hit_rate"` // Fraction of profitable trades, 0 to 1
	AvgWin               float64 `json:"avg_win"`
	AvgLoss              float64 `json:"avg_loss"` // Negative or zero
	WinLossRatio         float64 `json:"win_loss_ratio"`
	NTrades              int     `json:"n_trades"`
	AvgHoldingDays       float64 `json:"avg_holding_days"`
}
