package marketdata

import (
	"math"
	"testing"
	"time"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		md      MarketData
		wantErr error
	}{
		{
			name: "valid",
			md: MarketData{
				CDX: series.New("cdx", []time.Time{day(0), day(1)}, []float64{100, 101}),
				VIX: series.New("vix", []time.Time{day(0), day(1)}, []float64{15, 16}),
			},
		},
		{
			name:    "missing cdx",
			md:      MarketData{VIX: series.New("vix", []time.Time{day(0)}, []float64{15})},
			wantErr: core.ErrNoData,
		},
		{
			name:    "negative spread",
			md:      MarketData{CDX: series.New("cdx", []time.Time{day(0), day(1)}, []float64{100, -1})},
			wantErr: core.ErrInvalidInput,
		},
		{
			name: "vix above cap",
			md: MarketData{
				CDX: series.New("cdx", []time.Time{day(0)}, []float64{100}),
				VIX: series.New("vix", []time.Time{day(0)}, []float64{250}),
			},
			wantErr: core.ErrInvalidInput,
		},
		{
			name: "etf above cap",
			md: MarketData{
				CDX: series.New("cdx", []time.Time{day(0)}, []float64{100}),
				ETF: series.New("etf", []time.Time{day(0)}, []float64{10001}),
			},
			wantErr: core.ErrInvalidInput,
		},
		{
			name:    "zero date",
			md:      MarketData{CDX: series.New("cdx", []time.Time{{}, day(1)}, []float64{100, 101})},
			wantErr: core.ErrInvalidInput,
		},
		{
			name: "nan is missing, not invalid",
			md:   MarketData{CDX: series.New("cdx", []time.Time{day(0), day(1)}, []float64{math.NaN(), 101})},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.md, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidate_CleansSeries(t *testing.T) {
	obsCore, logs := observer.New(zap.WarnLevel)
	logger := zap.New(obsCore)

	intraday := time.Date(2024, 1, 3, 16, 30, 0, 0, time.UTC)
	md := MarketData{
		CDX: series.New("", []time.Time{day(1), day(0), intraday, day(2)}, []float64{101, 100, 102, 999}),
	}

	got, err := Validate(md, logger)
	require.NoError(t, err)

	assert.Equal(t, "cdx", got.CDX.Name)
	assert.Equal(t, []time.Time{day(0), day(1), day(2)}, got.CDX.Dates())
	assert.Equal(t, []float64{100, 101, 102}, got.CDX.Values(), "keeps the first of duplicate dates")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "dropped duplicate dates", entry.Message)
	assert.Equal(t, int64(1), entry.ContextMap()["duplicates"])
}

func TestMarketData_ByName(t *testing.T) {
	md := MarketData{
		CDX: series.New("cdx", []time.Time{day(0)}, []float64{100}),
		ETF: series.New("etf", []time.Time{day(0)}, []float64{80}),
	}

	got := md.ByName()
	assert.Len(t, got, 2)
	assert.Contains(t, got, "cdx")
	assert.Contains(t, got, "etf")
	assert.NotContains(t, got, "vix")
}

func TestBoundsFor(t *testing.T) {
	assert.Equal(t, Bounds{Min: 0, Max: 10000}, BoundsFor(core.InstrumentCDX))
	assert.Equal(t, Bounds{Min: 0, Max: 200}, BoundsFor(core.InstrumentVIX))
}
