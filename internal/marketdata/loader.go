package marketdata

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/series"
	"github.com/newthinker/macrocredit/internal/storage/archive"
	"go.uber.org/zap"
)

// DefaultPrefix is where market data lives inside the archive
const DefaultPrefix = "market"

// Loader reads and writes instrument files as <prefix>/<instrument>.<format>
type Loader struct {
	store    archive.Storage
	prefix   string
	logger   *zap.Logger
	format   Format
	rng      Range
	filter   Filter
	required map[core.Instrument]bool
	cache    *Cache
	source   string
	refresh  bool
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithFormat sets the encoding used by Save and tried first by Load
func WithFormat(f Format) LoaderOption {
	return func(l *Loader) {
		if f != "" {
			l.format = f
		}
	}
}

// WithRange limits loaded observations to a date range
func WithRange(r Range) LoaderOption {
	return func(l *Loader) { l.rng = r }
}

// WithFilter selects an index, tenor or ticker inside multi-series files
func WithFilter(f Filter) LoaderOption {
	return func(l *Loader) { l.filter = f }
}

// WithRequired marks instruments whose absence fails Load. CDX is always
// required.
func WithRequired(insts ...core.Instrument) LoaderOption {
	return func(l *Loader) {
		for _, i := range insts {
			l.required[i] = true
		}
	}
}

// WithCache reads through c. source identifies the archive in cache keys.
func WithCache(c *Cache, source string) LoaderOption {
	return func(l *Loader) {
		l.cache = c
		l.source = source
	}
}

// WithRefresh bypasses cached entries on Load and rewrites them
func WithRefresh() LoaderOption {
	return func(l *Loader) { l.refresh = true }
}

// NewLoader creates a loader over the given storage
func NewLoader(store archive.Storage, prefix string, logger *zap.Logger, opts ...LoaderOption) *Loader {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{
		store:    store,
		prefix:   prefix,
		logger:   logger,
		format:   FormatParquet,
		required: map[core.Instrument]bool{core.InstrumentCDX: true},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.source == "" {
		l.source = prefix
	}
	return l
}

// Path returns the storage path Save writes for an instrument
func (l *Loader) Path(i core.Instrument) string {
	return l.pathFor(i, l.format)
}

func (l *Loader) pathFor(i core.Instrument, f Format) string {
	return path.Join(l.prefix, string(i)+"."+string(f))
}

// Load reads every instrument and validates the result. Each instrument is
// looked up in the configured format first, then the others. A missing
// required instrument is an error; a missing optional one is logged and
// left empty, so any signal reading it fails later with core.ErrNoData.
func (l *Loader) Load(ctx context.Context) (MarketData, error) {
	if err := l.rng.Validate(); err != nil {
		return MarketData{}, err
	}

	var md MarketData
	for _, inst := range core.Instruments {
		s, err := l.loadInstrument(ctx, inst)
		if err != nil {
			if errors.Is(err, core.ErrDatasetNotFound) && !l.required[inst] {
				l.logger.Warn("market data not found",
					zap.String("instrument", string(inst)),
					zap.String("prefix", l.prefix),
				)
				continue
			}
			return MarketData{}, fmt.Errorf("loading %s: %w", inst, err)
		}
		if s.Len() == 0 && l.required[inst] {
			return MarketData{}, core.WrapError(core.ErrNoData,
				fmt.Errorf("%s: no observations in range %s with filter %s", inst, l.rng, l.filter))
		}
		md.Set(inst, s)

		l.logger.Info("loaded market data",
			zap.String("instrument", string(inst)),
			zap.Int("rows", s.Len()),
		)
	}
	return Validate(md, l.logger)
}

func (l *Loader) loadInstrument(ctx context.Context, inst core.Instrument) (series.Series, error) {
	if l.cache != nil && !l.refresh {
		if s, ok := l.cache.Get(ctx, l.source, inst, l.rng, l.filter); ok {
			return s, nil
		}
	}

	data, p, err := l.find(ctx, inst)
	if err != nil {
		return series.Series{}, err
	}
	format, err := FormatFromPath(p)
	if err != nil {
		return series.Series{}, err
	}
	s, err := Decode(format, inst, data, l.filter)
	if err != nil {
		return series.Series{}, err
	}
	s = s.Between(l.rng.Start, l.rng.End)

	l.logger.Debug("read market data file",
		zap.String("instrument", string(inst)),
		zap.String("path", p),
		zap.String("range", l.rng.String()),
	)

	if l.cache != nil {
		if err := l.cache.Put(ctx, l.source, inst, l.rng, l.filter, s); err != nil {
			l.logger.Warn("failed to cache market data", zap.String("instrument", string(inst)), zap.Error(err))
		}
	}
	return s, nil
}

// find reads the first existing file for inst, preferring the loader format
func (l *Loader) find(ctx context.Context, inst core.Instrument) ([]byte, string, error) {
	order := []Format{l.format}
	for _, f := range Formats {
		if f != l.format {
			order = append(order, f)
		}
	}
	for _, f := range order {
		p := l.pathFor(inst, f)
		data, err := l.store.Read(ctx, p)
		if err == nil {
			return data, p, nil
		}
		if !errors.Is(err, core.ErrDatasetNotFound) {
			return nil, p, err
		}
	}
	return nil, "", core.WrapError(core.ErrDatasetNotFound,
		fmt.Errorf("no %s file under %s", inst, l.prefix))
}

// Save writes every non-empty instrument and returns the written paths
func (l *Loader) Save(ctx context.Context, md MarketData) ([]string, error) {
	var written []string
	for _, inst := range core.Instruments {
		s := md.Get(inst)
		if s.Len() == 0 {
			continue
		}
		data, err := Encode(l.format, inst, s)
		if err != nil {
			return written, err
		}
		p := l.Path(inst)
		if err := l.store.Write(ctx, p, data); err != nil {
			return written, fmt.Errorf("saving %s: %w", inst, err)
		}
		written = append(written, p)

		l.logger.Info("saved market data",
			zap.String("instrument", string(inst)),
			zap.String("path", p),
			zap.String("format", string(l.format)),
			zap.Int("rows", s.Len()),
		)
	}
	return written, nil
}
