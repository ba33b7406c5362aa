package marketdata

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/series"
	"github.com/newthinker/macrocredit/internal/storage/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEncodeDecodeSeries(t *testing.T) {
	s := series.New("cdx", []time.Time{day(0), day(1), day(2)}, []float64{100.25, math.NaN(), 98.5})

	data, err := EncodeSeries(s)
	require.NoError(t, err)

	got, err := DecodeSeries("cdx", data)
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, s.Dates(), got.Dates())
	assert.Equal(t, 100.25, got.Points[0].Value)
	assert.True(t, math.IsNaN(got.Points[1].Value))
	assert.Equal(t, 98.5, got.Points[2].Value)
}

func TestDecodeSeries_Garbage(t *testing.T) {
	_, err := DecodeSeries("cdx", []byte("not parquet"))
	assert.Error(t, err)
}

func TestLoader_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := archive.NewMemory()
	loader := NewLoader(store, "", nil)

	cfg := DefaultGenerateConfig()
	cfg.Periods = 60
	md, err := Generate(cfg)
	require.NoError(t, err)

	paths, err := loader.Save(ctx, md)
	require.NoError(t, err)
	assert.Equal(t, []string{"market/cdx.parquet", "market/vix.parquet", "market/etf.parquet"}, paths)

	got, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, md, got)
}

func TestLoader_OptionalInstruments(t *testing.T) {
	ctx := context.Background()
	store := archive.NewMemory()
	loader := NewLoader(store, "data", nil)

	md := MarketData{CDX: series.New("cdx", []time.Time{day(0), day(1)}, []float64{100, 101})}
	_, err := loader.Save(ctx, md)
	require.NoError(t, err)

	got, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CDX.Len())
	assert.Equal(t, 0, got.VIX.Len())
	assert.Equal(t, 0, got.ETF.Len())
}

func TestLoader_MissingCDX(t *testing.T) {
	loader := NewLoader(archive.NewMemory(), "", nil)
	_, err := loader.Load(context.Background())
	assert.ErrorIs(t, err, core.ErrDatasetNotFound)
}

func TestLoader_CSVFallback(t *testing.T) {
	ctx := context.Background()
	store := archive.NewMemory()
	require.NoError(t, store.Write(ctx, "market/cdx.csv", []byte("date,spread\n2024-01-01,100\n2024-01-02,101\n")))

	got, err := NewLoader(store, "", nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 101}, got.CDX.Values())
}

func TestLoader_PrefersConfiguredFormat(t *testing.T) {
	ctx := context.Background()
	store := archive.NewMemory()
	md := MarketData{CDX: series.New("cdx", []time.Time{day(0)}, []float64{100})}
	_, err := NewLoader(store, "", nil).Save(ctx, md)
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, "market/cdx.csv", []byte("date,spread\n2024-01-01,200\n")))

	got, err := NewLoader(store, "", nil, WithFormat(FormatCSV)).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{200}, got.CDX.Values())

	got, err = NewLoader(store, "", nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{100}, got.CDX.Values())
}

func TestLoader_Range(t *testing.T) {
	ctx := context.Background()
	store := archive.NewMemory()
	d := []time.Time{day(0), day(1), day(2), day(3)}
	md := MarketData{
		CDX: series.New("cdx", d, []float64{100, 101, 102, 103}),
		VIX: series.New("vix", d, []float64{15, 16, 17, 18}),
	}
	_, err := NewLoader(store, "", nil).Save(ctx, md)
	require.NoError(t, err)

	got, err := NewLoader(store, "", nil, WithRange(Range{Start: day(1), End: day(2)})).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(1), day(2)}, got.CDX.Dates())
	assert.Equal(t, []float64{16, 17}, got.VIX.Values())

	_, err = NewLoader(store, "", nil, WithRange(Range{Start: day(10)})).Load(ctx)
	assert.ErrorIs(t, err, core.ErrNoData, "required instrument empty after range")

	_, err = NewLoader(store, "", nil, WithRange(Range{Start: day(2), End: day(1)})).Load(ctx)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestLoader_Filter(t *testing.T) {
	ctx := context.Background()
	store := archive.NewMemory()
	require.NoError(t, store.Write(ctx, "market/cdx.csv", []byte(cdxFeed)))

	got, err := NewLoader(store, "", nil, WithFilter(Filter{Index: "CDX_IG", Tenor: "5Y"})).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{55.5, 56, 54.25}, got.CDX.Values())

	_, err = NewLoader(store, "", nil, WithFilter(Filter{Index: "CDX_EM"})).Load(ctx)
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestLoader_RequiredInstrumentMissing(t *testing.T) {
	ctx := context.Background()
	store := archive.NewMemory()
	md := MarketData{CDX: series.New("cdx", []time.Time{day(0)}, []float64{100})}
	_, err := NewLoader(store, "", nil).Save(ctx, md)
	require.NoError(t, err)

	_, err = NewLoader(store, "", nil, WithRequired(core.InstrumentVIX)).Load(ctx)
	assert.ErrorIs(t, err, core.ErrDatasetNotFound)
	assert.Contains(t, err.Error(), "loading vix")

	obs, logs := observer.New(zapcore.WarnLevel)
	_, err = NewLoader(store, "", zap.New(obs)).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, logs.FilterMessage("market data not found").Len(), "optional vix and etf only warn")
}

func TestLoader_Cache(t *testing.T) {
	ctx := context.Background()
	store := archive.NewMemory()
	cache := NewCache(archive.NewMemory(), time.Hour, nil)

	md := MarketData{CDX: series.New("cdx", []time.Time{day(0), day(1)}, []float64{100, 101})}
	_, err := NewLoader(store, "", nil).Save(ctx, md)
	require.NoError(t, err)

	_, err = NewLoader(store, "", nil, WithCache(cache, "")).Load(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "market/cdx.parquet"))

	got, err := NewLoader(store, "", nil, WithCache(cache, "")).Load(ctx)
	require.NoError(t, err, "served from cache")
	assert.Equal(t, []float64{100, 101}, got.CDX.Values())

	_, err = NewLoader(store, "", nil, WithCache(cache, ""), WithRefresh()).Load(ctx)
	assert.ErrorIs(t, err, core.ErrDatasetNotFound, "refresh bypasses cache")

	_, err = NewLoader(store, "", nil, WithCache(cache, ""), WithRange(Range{Start: day(1)})).Load(ctx)
	assert.ErrorIs(t, err, core.ErrDatasetNotFound, "different range misses")
}

func TestLoader_SaveCSV(t *testing.T) {
	ctx := context.Background()
	store := archive.NewMemory()
	loader := NewLoader(store, "data", nil, WithFormat(FormatCSV))

	md := MarketData{
		CDX: series.New("cdx", []time.Time{day(0), day(1)}, []float64{100, 101}),
		ETF: series.New("etf", []time.Time{day(0), day(1)}, []float64{80, 80.5}),
	}
	paths, err := loader.Save(ctx, md)
	require.NoError(t, err)
	assert.Equal(t, []string{"data/cdx.csv", "data/etf.csv"}, paths)

	got, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, md.CDX.Values(), got.CDX.Values())
	assert.Equal(t, md.ETF.Dates(), got.ETF.Dates())
}
