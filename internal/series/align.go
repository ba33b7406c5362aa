package series

import (
	"math"
	"sort"
	"time"
)

// Row is one date of two aligned series
type Row struct {
	Date time.Time
	A    float64
	B    float64
}

// Align inner-joins two sorted series on exact date equality and drops rows
// where either value is missing.
func Align(a, b Series) []Row {
	rows := make([]Row, 0, min(len(a.Points), len(b.Points)))
	i, j := 0, 0
	for i < len(a.Points) && j < len(b.Points) {
		pa, pb := a.Points[i], b.Points[j]
		switch {
		case pa.Date.Before(pb.Date):
			i++
		case pb.Date.Before(pa.Date):
			j++
		default:
			if !math.IsNaN(pa.Value) && !math.IsNaN(pb.Value) {
				rows = append(rows, Row{Date: pa.Date, A: pa.Value, B: pb.Value})
			}
			i++
			j++
		}
	}
	return rows
}

// Reindex places src onto the calendar of target, carrying the last known
// value forward. Dates before the first observation of src are NaN.
func Reindex(src Series, target []time.Time) Series {
	out := make([]Point, len(target))
	k := 0
	last := math.NaN()
	for i, d := range target {
		for k < len(src.Points) && !src.Points[k].Date.After(d) {
			if !math.IsNaN(src.Points[k].Value) {
				last = src.Points[k].Value
			}
			k++
		}
		out[i] = Point{Date: d, Value: last}
	}
	return Series{Name: src.Name, Points: out}
}

// Union returns the sorted set of dates present in any of the series.
// Dates are map keys here, so callers should Normalize first.
func Union(all ...Series) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, s := range all {
		for _, p := range s.Points {
			seen[p.Date] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Lookup returns the series values keyed by date
func Lookup(s Series) map[time.Time]float64 {
	m := make(map[time.Time]float64, len(s.Points))
	for _, p := range s.Points {
		m[p.Date] = p.Value
	}
	return m
}
