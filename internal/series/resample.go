package series

import (
	"math"
	"time"
)

// Agg selects how observations falling on the same day are combined
type Agg int

const (
	AggLast Agg = iota
	AggFirst
	AggMean
)

// Between keeps observations whose day lies in [start, end]. A zero bound
// is open.
func (s Series) Between(start, end time.Time) Series {
	if start.IsZero() && end.IsZero() {
		return s
	}
	from, to := Day(start), Day(end)
	points := make([]Point, 0, len(s.Points))
	for _, p := range s.Points {
		d := Day(p.Date)
		if !start.IsZero() && d.Before(from) {
			continue
		}
		if !end.IsZero() && d.After(to) {
			continue
		}
		points = append(points, p)
	}
	return Series{Name: s.Name, Points: points}
}

// HasIntraday reports whether any observation carries a time of day
func (s Series) HasIntraday() bool {
	for _, p := range s.Points {
		if !p.Date.UTC().Equal(Day(p.Date)) {
			return true
		}
	}
	return false
}

// ResampleDaily collapses observations to one per UTC day. NaN values are
// ignored by the aggregation and days with no valid value are dropped.
// The result is sorted.
func (s Series) ResampleDaily(agg Agg) Series {
	sorted := s.Sorted()
	points := make([]Point, 0, len(sorted.Points))

	var (
		day   time.Time
		group []float64
		open  bool
	)
	flush := func() {
		if open && len(group) > 0 {
			points = append(points, Point{Date: day, Value: aggregate(group, agg)})
		}
		group = group[:0]
	}
	for _, p := range sorted.Points {
		d := Day(p.Date)
		if !open || !d.Equal(day) {
			flush()
			day, open = d, true
		}
		if !math.IsNaN(p.Value) {
			group = append(group, p.Value)
		}
	}
	flush()
	return Series{Name: s.Name, Points: points}
}

func aggregate(values []float64, agg Agg) float64 {
	switch agg {
	case AggFirst:
		return values[0]
	case AggMean:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	default:
		return values[len(values)-1]
	}
}
