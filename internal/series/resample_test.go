package series

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeries_Between(t *testing.T) {
	s := New("cdx", []time.Time{day(0), day(1), day(2), day(3), day(4)}, []float64{1, 2, 3, 4, 5})

	assert.Equal(t, []float64{2, 3, 4}, s.Between(day(1), day(3)).Values())
	assert.Equal(t, []float64{4, 5}, s.Between(day(3), time.Time{}).Values())
	assert.Equal(t, []float64{1, 2}, s.Between(time.Time{}, day(1)).Values())
	assert.Equal(t, s, s.Between(time.Time{}, time.Time{}))
	assert.Equal(t, 0, s.Between(day(10), day(12)).Len())

	// bounds compare by day, so an afternoon end keeps that day
	assert.Equal(t, 4, s.Between(day(0), day(3).Add(15*time.Hour)).Len())
}

func TestSeries_HasIntraday(t *testing.T) {
	daily := New("cdx", []time.Time{day(0), day(1)}, []float64{1, 2})
	assert.False(t, daily.HasIntraday())

	intraday := New("cdx", []time.Time{day(0), day(0).Add(time.Hour)}, []float64{1, 2})
	assert.True(t, intraday.HasIntraday())
}

func TestSeries_ResampleDaily(t *testing.T) {
	at := func(d, h int) time.Time { return day(d).Add(time.Duration(h) * time.Hour) }
	s := New("vix",
		[]time.Time{at(1, 10), at(0, 16), at(0, 9), at(1, 15), at(2, 9), at(3, 12)},
		[]float64{20, 14, 12, 22, math.NaN(), 30},
	)

	last := s.ResampleDaily(AggLast)
	require.Equal(t, []time.Time{day(0), day(1), day(3)}, last.Dates(), "all-missing days are dropped")
	assert.Equal(t, []float64{14, 22, 30}, last.Values())

	first := s.ResampleDaily(AggFirst)
	assert.Equal(t, []float64{12, 20, 30}, first.Values())

	mean := s.ResampleDaily(AggMean)
	assert.Equal(t, []float64{13, 21, 30}, mean.Values())
	assert.Equal(t, "vix", mean.Name)
}
