package marketdata

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/series"
)

// dateLayouts are tried in order when parsing the date column
var dateLayouts = []string{
	core.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseValue treats empty cells and NaN as missing
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// EncodeCSV writes a date column and the instrument's value column
func EncodeCSV(inst core.Instrument, s series.Series) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"date", valueColumn(inst)}); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", inst, err)
	}
	for _, p := range s.Points {
		value := ""
		if !math.IsNaN(p.Value) {
			value = strconv.FormatFloat(p.Value, 'f', -1, 64)
		}
		if err := w.Write([]string{p.Date.UTC().Format(core.DateLayout), value}); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", inst, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", inst, err)
	}
	return buf.Bytes(), nil
}

// decodeCSV reads a headered CSV. The date column is "date"; the value
// column is "spread" for CDX and "close" otherwise, with "value" accepted
// for any instrument. Optional index, tenor and ticker columns feed filters.
func decodeCSV(inst core.Instrument, data []byte) ([]Observation, map[string]bool, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("%s: empty csv", inst))
		}
		return nil, nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("%s: reading csv header: %w", inst, err))
	}

	idx := make(map[string]int, len(header))
	columns := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		idx[name] = i
		columns[name] = true
	}

	dateCol, ok := idx["date"]
	if !ok {
		return nil, nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("%s: csv missing required column date", inst))
	}
	valueCol, ok := idx[valueColumn(inst)]
	if !ok {
		if valueCol, ok = idx["value"]; !ok {
			return nil, nil, core.WrapError(core.ErrInvalidInput,
				fmt.Errorf("%s: csv missing required column %s", inst, valueColumn(inst)))
		}
	}
	cell := func(rec []string, name string) string {
		if i, ok := idx[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var rows []Observation
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("%s: line %d: %w", inst, line, err))
		}

		date, err := parseDate(strings.TrimSpace(rec[dateCol]))
		if err != nil {
			return nil, nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("%s: line %d: %w", inst, line, err))
		}
		value, err := parseValue(rec[valueCol])
		if err != nil {
			return nil, nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("%s: line %d: bad value: %w", inst, line, err))
		}
		rows = append(rows, Observation{
			Date:   date,
			Value:  value,
			Index:  cell(rec, colIndex),
			Tenor:  cell(rec, colTenor),
			Ticker: cell(rec, colTicker),
		})
	}
	return rows, columns, nil
}
