package persistence

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/newthinker/macrocredit/internal/backtest"
)

// PositionRow is the Parquet schema for the position history
type PositionRow struct {
	Date     int64   `parquet:"date,timestamp(millisecond)"`
	Signal   float64 `parquet:"signal"`
	Position int32   `parquet:"position"`
	DaysHeld int32   `parquet:"days_held"`
	Spread   float64 `parquet:"spread"`
}

// PnLRow is the Parquet schema for the P&L ledger
type PnLRow struct {
	Date          int64   `parquet:"date,timestamp(millisecond)"`
	SpreadPnL     float64 `parquet:"spread_pnl"`
	Cost          float64 `parquet:"cost"`
	NetPnL        float64 `parquet:"net_pnl"`
	CumulativePnL float64 `parquet:"cumulative_pnl"`
	Event         string  `parquet:"event"`
}

func toPositionRows(records []backtest.PositionRecord) []PositionRow {
	rows := make([]PositionRow, len(records))
	for i, r := range records {
		rows[i] = PositionRow{
			Date:     r.Date.UnixMilli(),
			Signal:   r.Signal,
			Position: int32(r.Position),
			DaysHeld: int32(r.DaysHeld),
			Spread:   r.Spread,
		}
	}
	return rows
}

func fromPositionRows(rows []PositionRow) []backtest.PositionRecord {
	records := make([]backtest.PositionRecord, len(rows))
	for i, r := range rows {
		records[i] = backtest.PositionRecord{
			Date:     time.UnixMilli(r.Date).UTC(),
			Signal:   r.Signal,
			Position: backtest.Position(r.Position),
			DaysHeld: int(r.DaysHeld),
			Spread:   r.Spread,
		}
	}
	return records
}

func toPnLRows(records []backtest.PnLRecord) []PnLRow {
	rows := make([]PnLRow, len(records))
	for i, r := range records {
		rows[i] = PnLRow{
			Date:          r.Date.UnixMilli(),
			SpreadPnL:     r.SpreadPnL,
			Cost:          r.Cost,
			NetPnL:        r.NetPnL,
			CumulativePnL: r.CumulativePnL,
			Event:         string(r.Event),
		}
	}
	return rows
}

func fromPnLRows(rows []PnLRow) []backtest.PnLRecord {
	records := make([]backtest.PnLRecord, len(rows))
	for i, r := range rows {
		records[i] = backtest.PnLRecord{
			Date:          time.UnixMilli(r.Date).UTC(),
			SpreadPnL:     r.SpreadPnL,
			Cost:          r.Cost,
			NetPnL:        r.NetPnL,
			CumulativePnL: r.CumulativePnL,
			Event:         backtest.Event(r.Event),
		}
	}
	return records
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeParquet[T any](name string, data []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return rows, nil
}
