package marketdata

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/series"
)

// ObservationRecord is the Parquet schema for one dated observation. The
// attribute columns are optional and only set by external feeds holding
// several indices or tickers in one file.
type ObservationRecord struct {
	Date   int64   `parquet:"date,timestamp(millisecond)"` // Unix ms, UTC
	Value  float64 `parquet:"value"`
	Index  string  `parquet:"index,optional"`
	Tenor  string  `parquet:"tenor,optional"`
	Ticker string  `parquet:"ticker,optional"`
}

// EncodeSeries serializes a series to Parquet bytes
func EncodeSeries(s series.Series) ([]byte, error) {
	records := make([]ObservationRecord, len(s.Points))
	for i, p := range s.Points {
		records[i] = ObservationRecord{Date: p.Date.UnixMilli(), Value: p.Value}
	}
	return writeRecords(s.Name, records)
}

func writeRecords(name string, records []ObservationRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, records); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func readRecords(name string, data []byte) ([]ObservationRecord, error) {
	records, err := parquet.Read[ObservationRecord](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return records, nil
}

// DecodeSeries reads Parquet bytes written by EncodeSeries. Rows keep their
// stored order.
func DecodeSeries(name string, data []byte) (series.Series, error) {
	records, err := readRecords(name, data)
	if err != nil {
		return series.Series{}, err
	}
	points := make([]series.Point, len(records))
	for i, r := range records {
		points[i] = series.Point{Date: time.UnixMilli(r.Date).UTC(), Value: r.Value}
	}
	return series.Series{Name: name, Points: points}, nil
}

// decodeParquet returns the rows and the attribute columns holding any value
func decodeParquet(inst core.Instrument, data []byte) ([]Observation, map[string]bool, error) {
	records, err := readRecords(string(inst), data)
	if err != nil {
		return nil, nil, core.WrapError(core.ErrInvalidInput, err)
	}
	rows := make([]Observation, len(records))
	columns := map[string]bool{"date": true, "value": true}
	for i, r := range records {
		rows[i] = Observation{
			Date:   time.UnixMilli(r.Date).UTC(),
			Value:  r.Value,
			Index:  r.Index,
			Tenor:  r.Tenor,
			Ticker: r.Ticker,
		}
		columns[colIndex] = columns[colIndex] || r.Index != ""
		columns[colTenor] = columns[colTenor] || r.Tenor != ""
		columns[colTicker] = columns[colTicker] || r.Ticker != ""
	}
	return rows, columns, nil
}
