package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/newthinker/macrocredit/internal/backtest"
	"github.com/newthinker/macrocredit/internal/config"
	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/marketdata"
	"github.com/newthinker/macrocredit/internal/metrics"
	"github.com/newthinker/macrocredit/internal/persistence"
	"github.com/newthinker/macrocredit/internal/signal"
	"github.com/newthinker/macrocredit/internal/storage/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Storage.Type = archive.TypeMemory
	cfg.Backtest.EntryThreshold = 0.5
	cfg.Backtest.ExitThreshold = 0.25
	cfg.Backtest.MaxHoldingDays = 10
	return cfg
}

func sample(t *testing.T) marketdata.MarketData {
	t.Helper()
	md, err := marketdata.Generate(marketdata.DefaultGenerateConfig())
	require.NoError(t, err)
	return md
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Backtest.ExitThreshold = 5

	_, err := New(cfg, nil, nil, nil)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestNew_PersistWithoutStorage(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.PersistRuns = true

	_, err := New(cfg, nil, nil, nil)
	assert.ErrorIs(t, err, core.ErrConfigMissing)
}

func TestPipeline_Run(t *testing.T) {
	p, err := New(testConfig(), nil, metrics.NewRegistry(), nil)
	require.NoError(t, err)

	report, err := p.Run(context.Background(), sample(t))
	require.NoError(t, err)

	assert.Empty(t, report.RunID, "runs are not persisted by default")
	require.Len(t, report.Signals, 3)
	for _, name := range []string{signal.BasisSignal, signal.VIXGapSignal, signal.MomentumSignal} {
		assert.Contains(t, report.Signals, name)
	}

	res := report.Result
	require.NotEmpty(t, res.Positions)
	assert.Len(t, res.PnL, len(res.Positions))
	assert.NotEmpty(t, res.Metadata.Timestamp)
	assert.Equal(t, report.Composite.ValidCount(), len(res.Positions),
		"composite dates without a value are dropped by alignment")

	limit := res.Metadata.Config.MaxHoldingDays
	require.NotNil(t, limit)

	var sum float64
	for i, rec := range res.PnL {
		sum += rec.NetPnL
		assert.InDelta(t, sum, rec.CumulativePnL, 1e-6)
		assert.False(t, math.IsNaN(res.Positions[i].Signal))
		assert.Less(t, res.Positions[i].DaysHeld, *limit)
	}

	assert.Equal(t, res.Metadata.Summary.NTrades, report.Metrics.NTrades)
	assert.Len(t, report.Trades, report.Metrics.NTrades, "every entry opens exactly one trade")
}

func TestPipeline_RunIsDeterministic(t *testing.T) {
	p, err := New(testConfig(), nil, nil, nil)
	require.NoError(t, err)

	md := sample(t)
	a, err := p.Run(context.Background(), md)
	require.NoError(t, err)
	b, err := p.Run(context.Background(), md)
	require.NoError(t, err)

	assert.Equal(t, a.Result.Positions, b.Result.Positions)
	assert.Equal(t, a.Result.PnL, b.Result.PnL)
	assert.Equal(t, a.Metrics, b.Metrics)
}

func TestPipeline_RunPersists(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Storage.PersistRuns = true
	store := archive.NewMemory()

	reg := metrics.NewRegistry()
	p, err := New(cfg, store, reg, nil)
	require.NoError(t, err)

	report, err := p.Run(ctx, sample(t))
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)

	exists, err := store.Exists(ctx, persistence.Dir(report.RunID)+"/"+persistence.PnLFile)
	require.NoError(t, err)
	assert.True(t, exists)

	catalog, err := p.Registry(ctx)
	require.NoError(t, err)
	entries := catalog.List(persistence.KindRun)
	require.Len(t, entries, 1)
	assert.Equal(t, report.RunID, entries[0].ID)
	assert.Equal(t, report.Result.Metadata.Summary.TotalDays, entries[0].Rows)

	run, err := p.LoadRun(ctx, report.RunID)
	require.NoError(t, err)
	assert.Equal(t, report.Result.PnL, run.Result.PnL)
	assert.Equal(t, report.Metrics, run.Metrics)

	_, err = p.LoadRun(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrDatasetNotFound)
}

// registryDown rejects every write of the registry catalog
type registryDown struct {
	archive.Storage
}

func (s registryDown) Write(ctx context.Context, path string, data []byte) error {
	if strings.HasSuffix(path, persistence.RegistryFile) {
		return errors.New("disk full")
	}
	return s.Storage.Write(ctx, path, data)
}

func TestPipeline_RegistryFailureRemovesRun(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Storage.PersistRuns = true
	mem := archive.NewMemory()

	p, err := New(cfg, registryDown{Storage: mem}, nil, nil)
	require.NoError(t, err)

	_, err = p.Run(ctx, sample(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorageFailed)
	assert.Contains(t, err.Error(), "registering run")
	assert.Contains(t, err.Error(), "writing registry.json: disk full")

	paths, err := mem.List(ctx, persistence.RunsPrefix)
	require.NoError(t, err)
	assert.Empty(t, paths, "run artifacts must not outlive a failed registration")
}

func TestPipeline_ArchiveSource(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Data.Source = config.SourceArchive
	store := archive.NewMemory()

	p, err := New(cfg, store, nil, nil)
	require.NoError(t, err)

	md := sample(t)
	entries, err := p.SaveMarket(ctx, md)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "market/cdx.parquet", entries[0].Path)
	assert.Equal(t, md.CDX.Len(), entries[0].Rows)

	loaded, err := p.LoadMarket(ctx)
	require.NoError(t, err)
	assert.Equal(t, md, loaded)

	catalog, err := p.Registry(ctx)
	require.NoError(t, err)
	assert.Len(t, catalog.List(persistence.KindDataset), 3)
}

func TestPipeline_SampleSource(t *testing.T) {
	cfg := testConfig()
	cfg.Data.Periods = 40
	p, err := New(cfg, nil, nil, nil)
	require.NoError(t, err)

	md, err := p.LoadMarket(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, md.CDX.Len())
}

func TestPipeline_SampleSourceRange(t *testing.T) {
	cfg := testConfig()
	cfg.Data.Start = "2024-01-01"
	cfg.Data.Periods = 40
	cfg.Data.From = "2024-01-15"
	cfg.Data.To = "2024-01-31"
	p, err := New(cfg, nil, nil, nil)
	require.NoError(t, err)

	md, err := p.LoadMarket(context.Background())
	require.NoError(t, err)
	require.Equal(t, 17, md.CDX.Len())
	assert.Equal(t, "2024-01-15", md.CDX.Points[0].Date.Format(core.DateLayout))
	assert.Equal(t, "2024-01-31", md.ETF.Points[16].Date.Format(core.DateLayout))
}

func TestPipeline_ArchiveRequiresSignalInputs(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Data.Source = config.SourceArchive
	store := archive.NewMemory()

	p, err := New(cfg, store, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []core.Instrument{core.InstrumentCDX, core.InstrumentETF, core.InstrumentVIX}, p.requiredInstruments())

	md := sample(t)
	_, err = p.SaveMarket(ctx, marketdata.MarketData{CDX: md.CDX, ETF: md.ETF})
	require.NoError(t, err)

	_, err = p.LoadMarket(ctx)
	assert.ErrorIs(t, err, core.ErrDatasetNotFound)
	assert.Contains(t, err.Error(), "loading vix")
}

func TestPipeline_ArchiveCache(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Data.Source = config.SourceArchive
	cfg.Data.Cache.Enabled = true
	cfg.Data.Cache.Path = t.TempDir()
	store := archive.NewMemory()

	p, err := New(cfg, store, nil, nil)
	require.NoError(t, err)

	_, err = p.SaveMarket(ctx, sample(t))
	require.NoError(t, err)
	first, err := p.LoadMarket(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "market/cdx.parquet"))

	cached, err := p.LoadMarket(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	cfg.Data.Cache.Refresh = true
	_, err = p.LoadMarket(ctx)
	assert.ErrorIs(t, err, core.ErrDatasetNotFound)
}

func TestPipeline_CustomWeights(t *testing.T) {
	cfg := testConfig()
	cfg.Aggregator.Weights = map[string]float64{signal.MomentumSignal: 1}
	p, err := New(cfg, nil, nil, nil)
	require.NoError(t, err)

	report, err := p.Run(context.Background(), sample(t))
	require.NoError(t, err)

	mom := report.Signals[signal.MomentumSignal]
	require.Equal(t, mom.Len(), report.Composite.Len())
	for i, pt := range report.Composite.Points {
		if math.IsNaN(pt.Value) {
			assert.True(t, math.IsNaN(mom.Points[i].Value))
			continue
		}
		assert.Equal(t, mom.Points[i].Value, pt.Value)
	}
}

func TestPipeline_Errors(t *testing.T) {
	p, err := New(testConfig(), nil, nil, nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), marketdata.MarketData{})
	assert.ErrorIs(t, err, core.ErrNoData)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx, sample(t))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = p.SaveMarket(context.Background(), sample(t))
	assert.ErrorIs(t, err, core.ErrConfigMissing)
}

func TestPipeline_BacktesterRecordsMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	p, err := New(testConfig(), nil, reg, nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), sample(t))
	require.NoError(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["macrocredit_backtests_total"])
	assert.True(t, names["macrocredit_signals_computed_total"])
}

var _ backtest.Recorder = (*metrics.Registry)(nil)
