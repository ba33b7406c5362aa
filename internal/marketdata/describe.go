package marketdata

import (
	"math"
	"time"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/indicator"
)

const tradingDaysPerYear = 252

// Stats summarizes one instrument series
type Stats struct {
	Instrument core.Instrument
	Rows       int
	Valid      int
	Start      time.Time
	End        time.Time
	Last       float64
	// MeanChange is the average daily change: basis points for CDX, simple
	// return for VIX and ETF
	MeanChange float64
	// AnnualizedVol is the annualized deviation of daily spread changes for
	// CDX and of daily log returns for VIX and ETF
	AnnualizedVol float64
}

// Describe summarizes every non-empty instrument in load order
func Describe(m MarketData) []Stats {
	var out []Stats
	for _, inst := range core.Instruments {
		s := m.Get(inst)
		if s.Len() == 0 {
			continue
		}
		values := s.Values()
		st := Stats{
			Instrument: inst,
			Rows:       s.Len(),
			Valid:      s.ValidCount(),
			Start:      s.Points[0].Date,
			End:        s.Points[s.Len()-1].Date,
			Last:       math.NaN(),
		}
		for i := len(values) - 1; i >= 0; i-- {
			if !math.IsNaN(values[i]) {
				st.Last = values[i]
				break
			}
		}

		var changes, vol []float64
		if inst == core.InstrumentCDX {
			changes = indicator.Diff(values, 1)
			vol = changes
		} else {
			changes = indicator.PctChange(values, 1)
			vol = indicator.LogReturns(values, 1)
		}
		st.MeanChange, _, _ = indicator.MeanStd(changes)
		_, std, _ := indicator.MeanStd(vol)
		st.AnnualizedVol = std * math.Sqrt(tradingDaysPerYear)

		out = append(out, st)
	}
	return out
}
