package marketdata

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/series"
)

// Format is an on-disk encoding for instrument files
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

// Formats lists the supported encodings in lookup order
var Formats = []Format{FormatParquet, FormatCSV}

// ParseFormat validates a format name. Empty means parquet.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case "", FormatParquet:
		return FormatParquet, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unsupported market data format %q", name))
}

// FormatFromPath detects the encoding from a file extension
func FormatFromPath(p string) (Format, error) {
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return "", core.WrapError(core.ErrInvalidInput, fmt.Errorf("%s: no file extension", p))
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return "", core.WrapError(core.ErrInvalidInput, fmt.Errorf("%s: unsupported file format .%s", p, ext))
	}
	return f, nil
}

// Range limits loaded observations to [Start, End] by day. Zero bounds are open.
type Range struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range keeps everything
func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Validate rejects an end before the start
func (r Range) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("date range end %s is before start %s",
				r.End.Format(core.DateLayout), r.Start.Format(core.DateLayout)))
	}
	return nil
}

func (r Range) String() string {
	format := func(t time.Time) string {
		if t.IsZero() {
			return "none"
		}
		return t.Format(core.DateLayout)
	}
	return format(r.Start) + ".." + format(r.End)
}

// Between keeps the observations of every instrument inside the range
func (m MarketData) Between(r Range) MarketData {
	if r.IsZero() {
		return m
	}
	var out MarketData
	for _, inst := range core.Instruments {
		out.Set(inst, m.Get(inst).Between(r.Start, r.End))
	}
	return out
}

// Filter selects one series out of a file holding several. Index and Tenor
// apply to CDX files (e.g. CDX_IG, 5Y), Ticker to ETF files (e.g. HYG).
type Filter struct {
	Index  string `mapstructure:"index"`
	Tenor  string `mapstructure:"tenor"`
	Ticker string `mapstructure:"ticker"`
}

func (f Filter) String() string {
	return "index=" + f.Index + ",tenor=" + f.Tenor + ",ticker=" + f.Ticker
}

// Observation is one decoded row of an instrument file
type Observation struct {
	Date   time.Time
	Value  float64
	Index  string
	Tenor  string
	Ticker string
}

// attribute columns an instrument file may carry
const (
	colIndex  = "index"
	colTenor  = "tenor"
	colTicker = "ticker"
)

// valueColumn is the column holding the observation for an instrument
func valueColumn(inst core.Instrument) string {
	if inst == core.InstrumentCDX {
		return "spread"
	}
	return "close"
}

// apply keeps the rows matching the filter fields relevant to inst. Filtering
// on a column the file does not carry is an error.
func (f Filter) apply(inst core.Instrument, rows []Observation, columns map[string]bool) ([]Observation, error) {
	type criterion struct {
		column string
		want   string
		value  func(Observation) string
	}
	var criteria []criterion
	switch inst {
	case core.InstrumentCDX:
		criteria = []criterion{
			{colIndex, f.Index, func(o Observation) string { return o.Index }},
			{colTenor, f.Tenor, func(o Observation) string { return o.Tenor }},
		}
	case core.InstrumentETF:
		criteria = []criterion{
			{colTicker, f.Ticker, func(o Observation) string { return o.Ticker }},
		}
	}

	for _, c := range criteria {
		if c.want == "" {
			continue
		}
		if !columns[c.column] {
			return nil, core.WrapError(core.ErrInvalidInput,
				fmt.Errorf("%s: cannot filter by %s, column not found", inst, c.column))
		}
		kept := rows[:0:0]
		for _, r := range rows {
			if c.value(r) == c.want {
				kept = append(kept, r)
			}
		}
		rows = kept
	}
	return rows, nil
}

// Decode reads an instrument file, applies the filter and returns the
// series. Intraday timestamps are resampled to the last value of each day.
func Decode(format Format, inst core.Instrument, data []byte, f Filter) (series.Series, error) {
	var (
		rows    []Observation
		columns map[string]bool
		err     error
	)
	switch format {
	case FormatCSV:
		rows, columns, err = decodeCSV(inst, data)
	case FormatParquet:
		rows, columns, err = decodeParquet(inst, data)
	default:
		return series.Series{}, core.WrapError(core.ErrInvalidInput, fmt.Errorf("unsupported market data format %q", format))
	}
	if err != nil {
		return series.Series{}, err
	}

	if rows, err = f.apply(inst, rows, columns); err != nil {
		return series.Series{}, err
	}

	points := make([]series.Point, len(rows))
	for i, r := range rows {
		points[i] = series.Point{Date: r.Date, Value: r.Value}
	}
	s := series.Series{Name: string(inst), Points: points}
	if s.HasIntraday() {
		s = s.ResampleDaily(series.AggLast)
	}
	return s, nil
}

// Encode serializes a series in the given format
func Encode(format Format, inst core.Instrument, s series.Series) ([]byte, error) {
	switch format {
	case FormatCSV:
		return EncodeCSV(inst, s)
	case FormatParquet:
		return EncodeSeries(s)
	}
	return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("unsupported market data format %q", format))
}
