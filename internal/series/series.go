// Package series provides date-indexed numeric time series and the
// alignment rules used when combining them.
package series

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/newthinker/macrocredit/internal/core"
)

// Point is a single dated observation. A missing observation is NaN.
type Point struct {
	Date  time.Time
	Value float64
}

// Series is an ordered, date-indexed sequence of observations
type Series struct {
	Name   string
	Points []Point
}

// New creates a series from parallel date and value slices.
// It panics if the slices differ in length.
func New(name string, dates []time.Time, values []float64) Series {
	if len(dates) != len(values) {
		panic(fmt.Sprintf("series %s: %d dates but %d values", name, len(dates), len(values)))
	}
	points := make([]Point, len(dates))
	for i := range dates {
		points[i] = Point{Date: dates[i], Value: values[i]}
	}
	return Series{Name: name, Points: points}
}

// FromMap builds a series from a date-keyed map, sorted by date
func FromMap(name string, m map[time.Time]float64) Series {
	points := make([]Point, 0, len(m))
	for d, v := range m {
		points = append(points, Point{Date: d, Value: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return Series{Name: name, Points: points}
}

// Len returns the number of observations
func (s Series) Len() int {
	return len(s.Points)
}

// Dates returns the index of the series
func (s Series) Dates() []time.Time {
	dates := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date
	}
	return dates
}

// Values returns the observations in date order
func (s Series) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

// Last returns the final observation and false if the series is empty
func (s Series) Last() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// ValidCount returns the number of non-NaN observations
func (s Series) ValidCount() int {
	var n int
	for _, p := range s.Points {
		if !math.IsNaN(p.Value) {
			n++
		}
	}
	return n
}

// Validate checks that the series carries a proper calendar index: every
// point has a date, and dates are strictly increasing.
func (s Series) Validate() error {
	for i, p := range s.Points {
		if p.Date.IsZero() {
			return core.WrapError(core.ErrInvalidInput,
				fmt.Errorf("%s must be date-indexed: zero date at position %d", s.Name, i))
		}
		if i > 0 && !p.Date.After(s.Points[i-1].Date) {
			return core.WrapError(core.ErrInvalidInput,
				fmt.Errorf("%s must have a strictly increasing date index: %s follows %s at position %d",
					s.Name, p.Date.Format(core.DateLayout), s.Points[i-1].Date.Format(core.DateLayout), i))
		}
	}
	return nil
}

// Normalize truncates every date to UTC midnight so calendars from
// different sources compare equal.
func (s Series) Normalize() Series {
	points := make([]Point, len(s.Points))
	for i, p := range s.Points {
		points[i] = Point{Date: Day(p.Date), Value: p.Value}
	}
	return Series{Name: s.Name, Points: points}
}

// Dedupe drops repeated dates keeping the first occurrence. It assumes the
// series is sorted and returns the number of points removed.
func (s Series) Dedupe() (Series, int) {
	if len(s.Points) == 0 {
		return s, 0
	}
	points := make([]Point, 0, len(s.Points))
	points = append(points, s.Points[0])
	for _, p := range s.Points[1:] {
		if p.Date.Equal(points[len(points)-1].Date) {
			continue
		}
		points = append(points, p)
	}
	return Series{Name: s.Name, Points: points}, len(s.Points) - len(points)
}

// Sorted returns a copy of the series ordered by date
func (s Series) Sorted() Series {
	points := make([]Point, len(s.Points))
	copy(points, s.Points)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return Series{Name: s.Name, Points: points}
}

// Day truncates t to midnight UTC
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
