package backtest

import (
	"fmt"
	"math"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/series"
)

// state is carried from one date to the next by the fold
type state struct {
	position    Position
	daysHeld    int
	entrySpread float64
}

// Run converts a composite signal into positions and simulates daily P&L
// against the spread series. It is a pure function of its inputs.
//
// Position logic:
//   - flat: enter long when signal > entry, short when signal < -entry
//   - in position: exit when |signal| < exit or the holding limit is reached
//   - a date is either an entry step or an exit step, never both
//
// Spread P&L on a date uses the position and entry spread held at the start
// of that date, so the exit date is marked and the entry date books zero.
// Long profits when spreads tighten, short when they widen.
func Run(signal, spread series.Series, cfg Config) (*Result, error) {
	if signal.Name == "" {
		signal.Name = "composite_signal"
	}
	if spread.Name == "" {
		spread.Name = "spread"
	}
	if err := signal.Validate(); err != nil {
		return nil, err
	}
	if err := spread.Validate(); err != nil {
		return nil, err
	}

	rows := series.Align(signal, spread)
	if len(rows) == 0 {
		return nil, core.WrapError(core.ErrEmptyData,
			fmt.Errorf("%s (%d points) and %s (%d points) share no valid dates",
				signal.Name, signal.Len(), spread.Name, spread.Len()))
	}

	positions := make([]PositionRecord, 0, len(rows))
	pnl := make([]PnLRecord, 0, len(rows))

	var (
		st         state
		cumulative float64
		nTrades    int
	)
	for _, row := range rows {
		var (
			pos PositionRecord
			rec PnLRecord
		)
		st, pos, rec = step(cfg, st, row)

		cumulative += rec.NetPnL
		rec.CumulativePnL = cumulative
		if rec.Event == EventEntry {
			nTrades++
		}

		positions = append(positions, pos)
		pnl = append(pnl, rec)
	}

	var avg float64
	if nTrades > 0 {
		avg = cumulative / float64(nTrades)
	}

	return &Result{
		Positions: positions,
		PnL:       pnl,
		Metadata: Metadata{
			Config: cfg.Snapshot(),
			Summary: Summary{
				StartDate:      rows[0].Date,
				EndDate:        rows[len(rows)-1].Date,
				TotalDays:      len(rows),
				NTrades:        nTrades,
				TotalPnL:       cumulative,
				AvgPnLPerTrade: avg,
			},
		},
	}, nil
}

// step applies one date to the carried state. It returns the next state and
// the records for the date; CumulativePnL is filled in by the caller.
func step(cfg Config, prev state, row series.Row) (state, PositionRecord, PnLRecord) {
	sig, spread := row.A, row.B
	next := prev
	event := EventNone

	if prev.position == Flat {
		switch {
		case sig > cfg.entryThreshold:
			next = state{position: Long, daysHeld: 0, entrySpread: spread}
			event = EventEntry
		case sig < -cfg.entryThreshold:
			next = state{position: Short, daysHeld: 0, entrySpread: spread}
			event = EventEntry
		}
	} else {
		next.daysHeld++
		exitSignal := math.Abs(sig) < cfg.exitThreshold
		limit, hasLimit := cfg.MaxHoldingDays()
		exitTime := hasLimit && next.daysHeld >= limit
		if exitSignal || exitTime {
			next = state{position: Flat, daysHeld: 0, entrySpread: prev.entrySpread}
			event = EventExit
		}
	}

	var spreadPnL float64
	if prev.position != Flat {
		change := spread - prev.entrySpread
		spreadPnL = -float64(prev.position) * change * cfg.dv01PerMillion * cfg.positionSize
	}

	var cost float64
	if event != EventNone {
		cost = cfg.TransactionCost()
	}

	return next,
		PositionRecord{
			Date:     row.Date,
			Signal:   sig,
			Position: next.position,
			DaysHeld: next.daysHeld,
			Spread:   spread,
		},
		PnLRecord{
			Date:      row.Date,
			SpreadPnL: clearNegZero(spreadPnL),
			Cost:      cost,
			NetPnL:    clearNegZero(spreadPnL - cost),
			Event:     event,
		}
}

// clearNegZero maps -0 to +0 so serialized ledgers never show "-0"
func clearNegZero(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}
