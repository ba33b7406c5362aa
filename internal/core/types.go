package core

// Instrument identifies a market data series consumed by the pipeline
type Instrument string

const (
	InstrumentCDX Instrument = "cdx" // credit index spread, basis points
	InstrumentVIX Instrument = "vix" // volatility index level
	InstrumentETF Instrument = "etf" // credit ETF close price
)

// Instruments lists every supported instrument in load order
var Instruments = []Instrument{InstrumentCDX, InstrumentVIX, InstrumentETF}

// IsValid reports whether the instrument is supported
func (i Instrument) IsValid() bool {
	switch i {
	case InstrumentCDX, InstrumentVIX, InstrumentETF:
		return true
	}
	return false
}

// DateLayout is the calendar date format used in metadata and CLI flags
const DateLayout = "2006-01-02"
