// Package pipeline wires market data, signals, the backtest engine,
// performance metrics and run persistence into a single research run.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/macrocredit/internal/backtest"
	"github.com/newthinker/macrocredit/internal/config"
	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/marketdata"
	"github.com/newthinker/macrocredit/internal/metrics"
	"github.com/newthinker/macrocredit/internal/persistence"
	"github.com/newthinker/macrocredit/internal/series"
	"github.com/newthinker/macrocredit/internal/signal"
	"github.com/newthinker/macrocredit/internal/storage/archive"
)

// Report is the outcome of one pipeline run
type Report struct {
	RunID     string
	Result    *backtest.Result
	Metrics   backtest.PerformanceMetrics
	Trades    []backtest.Trade
	Signals   map[string]series.Series
	Composite series.Series
}

// Pipeline is the research run orchestrator
type Pipeline struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Registry
	store      archive.Storage
	signals    *signal.Registry
	backtester *backtest.Backtester
	runs       *persistence.RunStore

	cache      *marketdata.Cache

	mu       sync.Mutex
	registry *persistence.Registry
}

// New creates a pipeline. store may be nil when runs are not persisted and
// market data is sampled; reg may be nil to disable metrics.
func New(cfg *config.Config, store archive.Storage, reg *metrics.Registry, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	btCfg, err := cfg.BacktestConfig()
	if err != nil {
		return nil, err
	}

	var signals *signal.Registry
	if cfg.Signals.Catalog != "" {
		signals, err = signal.LoadCatalog(cfg.Signals.Catalog, logger)
	} else {
		signals, err = signal.NewRegistry(signal.DefaultCatalog(), logger)
	}
	if err != nil {
		return nil, err
	}

	opts := []backtest.BacktesterOption{backtest.WithLogger(logger)}
	if reg != nil {
		opts = append(opts, backtest.WithRecorder(reg))
	}

	p := &Pipeline{
		cfg:        cfg,
		logger:     logger,
		metrics:    reg,
		signals:    signals,
		backtester: backtest.New(btCfg, opts...),
	}

	if store != nil {
		p.store = metrics.InstrumentStorage(store, reg)
	}
	if cfg.Data.Cache.Enabled {
		cacheStore, err := archive.New(archive.Config{Type: archive.TypeLocalFS, Path: cfg.Data.Cache.Path})
		if err != nil {
			return nil, err
		}
		p.cache = marketdata.NewCache(cacheStore, cfg.Data.Cache.TTL, logger)
	}
	if cfg.Storage.PersistRuns {
		if p.store == nil {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage required to persist runs"))
		}
		p.runs = persistence.NewRunStore(p.store, logger)
	}
	return p, nil
}

// Signals returns the signal registry in use
func (p *Pipeline) Signals() *signal.Registry {
	return p.signals
}

// LoadMarket returns market data from the configured source, limited to the
// configured date range
func (p *Pipeline) LoadMarket(ctx context.Context) (marketdata.MarketData, error) {
	rng, err := p.cfg.Range()
	if err != nil {
		return marketdata.MarketData{}, err
	}

	switch p.cfg.Data.Source {
	case config.SourceArchive:
		if p.store == nil {
			return marketdata.MarketData{}, core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage required for archive data"))
		}
		opts := []marketdata.LoaderOption{
			marketdata.WithFormat(p.cfg.Format()),
			marketdata.WithRange(rng),
			marketdata.WithFilter(p.cfg.Data.Filter),
			marketdata.WithRequired(p.requiredInstruments()...),
		}
		if p.cache != nil {
			opts = append(opts, marketdata.WithCache(p.cache, p.cacheSource()))
			if p.cfg.Data.Cache.Refresh {
				opts = append(opts, marketdata.WithRefresh())
			}
		}
		return marketdata.NewLoader(p.store, p.cfg.Data.Prefix, p.logger, opts...).Load(ctx)
	default:
		gen, err := p.cfg.GenerateConfig()
		if err != nil {
			return marketdata.MarketData{}, err
		}
		p.logger.Info("generating sample market data",
			zap.Int("periods", gen.Periods),
			zap.Uint64("seed", gen.Seed),
		)
		md, err := marketdata.Generate(gen)
		if err != nil {
			return marketdata.MarketData{}, err
		}
		return md.Between(rng), nil
	}
}

// requiredInstruments lists the instruments the enabled signals read
func (p *Pipeline) requiredInstruments() []core.Instrument {
	var out []core.Instrument
	for _, name := range p.signals.RequiredData() {
		if inst := core.Instrument(name); inst.IsValid() {
			out = append(out, inst)
		}
	}
	return out
}

// cacheSource identifies the archive location in cache keys
func (p *Pipeline) cacheSource() string {
	st := p.cfg.Storage
	location := st.Path
	if st.Type == archive.TypeS3 {
		location = st.S3.Bucket + "/" + st.S3.Prefix
	}
	return st.Type + ":" + location + "/" + p.cfg.Data.Prefix
}

// SaveMarket writes market data to storage and registers each instrument
// as a dataset
func (p *Pipeline) SaveMarket(ctx context.Context, md marketdata.MarketData) ([]persistence.Entry, error) {
	if p.store == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage required to save market data"))
	}
	md, err := marketdata.Validate(md, p.logger)
	if err != nil {
		return nil, err
	}

	loader := marketdata.NewLoader(p.store, p.cfg.Data.Prefix, p.logger, marketdata.WithFormat(p.cfg.Format()))
	if _, err := loader.Save(ctx, md); err != nil {
		return nil, err
	}

	reg, err := p.openRegistry(ctx)
	if err != nil {
		return nil, err
	}

	var entries []persistence.Entry
	for _, inst := range core.Instruments {
		s := md.Get(inst)
		if s.Len() == 0 {
			continue
		}
		e := persistence.Entry{
			ID:        string(inst),
			Kind:      persistence.KindDataset,
			Name:      string(inst),
			Path:      loader.Path(inst),
			StartDate: s.Points[0].Date,
			EndDate:   s.Points[s.Len()-1].Date,
			Rows:      s.Len(),
		}
		if err := reg.Register(ctx, e); err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Run validates market data, computes and aggregates signals, backtests the
// composite against CDX spreads, evaluates performance and, when enabled,
// persists the run.
func (p *Pipeline) Run(ctx context.Context, market marketdata.MarketData) (*Report, error) {
	start := time.Now()

	md, err := marketdata.Validate(market, p.logger)
	if err != nil {
		return nil, err
	}
	for _, st := range marketdata.Describe(md) {
		p.logger.Debug("market data",
			zap.String("instrument", string(st.Instrument)),
			zap.Int("rows", st.Rows),
			zap.Time("start", st.Start),
			zap.Time("end", st.End),
			zap.Float64("annualized_vol", st.AnnualizedVol),
		)
	}

	computed, err := p.signals.ComputeRegistered(ctx, md.ByName(), p.cfg.SignalConfig())
	if err != nil {
		return nil, err
	}
	for name := range computed {
		if p.metrics != nil {
			p.metrics.RecordSignal(name)
		}
	}

	composite, err := signal.Aggregate(computed, p.weights(computed), p.logger)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spread := md.CDX
	spread.Name = "spread"
	result, err := p.backtester.Run(ctx, composite, spread)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Result:    result,
		Metrics:   p.backtester.Evaluate(result),
		Trades:    backtest.TradeSegments(result.Positions, result.PnL),
		Signals:   computed,
		Composite: composite,
	}

	if p.runs != nil {
		id, err := p.persist(ctx, report)
		if err != nil {
			return nil, err
		}
		report.RunID = id
	}

	p.logger.Info("pipeline complete",
		zap.String("run_id", report.RunID),
		zap.Int("signals", len(computed)),
		zap.Int("trades", len(report.Trades)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// weights returns the configured aggregator weights, or equal weights over
// the computed signals when none are configured
func (p *Pipeline) weights(computed map[string]series.Series) signal.AggregatorConfig {
	if len(p.cfg.Aggregator.Weights) > 0 {
		return p.cfg.Aggregator
	}
	names := make([]string, 0, len(computed))
	for n := range computed {
		names = append(names, n)
	}
	sort.Strings(names)
	return signal.EqualWeights(names...)
}

func (p *Pipeline) persist(ctx context.Context, report *Report) (string, error) {
	id, err := p.runs.Save(ctx, report.Result, report.Metrics)
	if err != nil {
		return "", err
	}

	reg, err := p.openRegistry(ctx)
	if err != nil {
		p.runs.Discard(id)
		return "", core.WrapError(core.ErrStorageFailed, fmt.Errorf("registering run %s: %w", id, err))
	}

	s := report.Result.Metadata.Summary
	entry := persistence.Entry{
		ID:        id,
		Kind:      persistence.KindRun,
		Path:      persistence.Dir(id),
		StartDate: s.StartDate,
		EndDate:   s.EndDate,
		Rows:      s.TotalDays,
		Metadata: map[string]string{
			"n_trades":     strconv.Itoa(s.NTrades),
			"total_pnl":    strconv.FormatFloat(s.TotalPnL, 'f', 2, 64),
			"sharpe_ratio": strconv.FormatFloat(report.Metrics.SharpeRatio, 'f', 4, 64),
		},
	}
	if err := reg.Register(ctx, entry); err != nil {
		p.runs.Discard(id)
		return "", core.WrapError(core.ErrStorageFailed, fmt.Errorf("registering run %s: %w", id, err))
	}
	return id, nil
}

// Registry opens the run and dataset catalog in storage
func (p *Pipeline) Registry(ctx context.Context) (*persistence.Registry, error) {
	if p.store == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage required for the registry"))
	}
	return p.openRegistry(ctx)
}

func (p *Pipeline) openRegistry(ctx context.Context) (*persistence.Registry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registry != nil {
		return p.registry, nil
	}
	reg, err := persistence.OpenRegistry(ctx, p.store, p.logger)
	if err != nil {
		return nil, err
	}
	p.registry = reg
	return reg, nil
}

// LoadRun reads a persisted run from storage
func (p *Pipeline) LoadRun(ctx context.Context, id string) (*persistence.Run, error) {
	if p.store == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage required to load runs"))
	}
	if _, err := p.openRegistry(ctx); err != nil {
		return nil, err
	}
	if _, err := p.registry.Get(id); err != nil {
		return nil, err
	}
	return persistence.NewRunStore(p.store, p.logger).Load(ctx, id)
}
