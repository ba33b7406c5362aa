package marketdata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/series"
	"github.com/newthinker/macrocredit/internal/storage/archive"
)

// DefaultCacheTTL refreshes market data daily
const DefaultCacheTTL = 24 * time.Hour

// Cache keeps fetched instrument series in storage with a time to live.
// Entries are keyed by source, instrument, date range and filter.
type Cache struct {
	store  archive.Storage
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// cacheEntry is the JSON sidecar written next to each cached series
type cacheEntry struct {
	Source     string          `json:"source"`
	Instrument core.Instrument `json:"instrument"`
	Range      string          `json:"range"`
	Filter     string          `json:"filter"`
	FetchedAt  time.Time       `json:"fetched_at"`
	Rows       int             `json:"rows"`
}

// NewCache creates a cache over store. A zero ttl never expires entries.
func NewCache(store archive.Storage, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, ttl: ttl, logger: logger, now: time.Now}
}

// CacheKey hashes the fetch parameters into a short stable key
func CacheKey(source string, inst core.Instrument, r Range, f Filter) string {
	parts := []string{source, string(inst), r.String(), f.String()}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

func (c *Cache) paths(source string, inst core.Instrument, r Range, f Filter) (data, meta string) {
	base := string(inst) + "_" + CacheKey(source, inst, r, f)
	return base + ".parquet", base + ".json"
}

// Get returns a cached series when present and fresh. Unreadable entries
// count as misses.
func (c *Cache) Get(ctx context.Context, source string, inst core.Instrument, r Range, f Filter) (series.Series, bool) {
	dataPath, metaPath := c.paths(source, inst, r, f)

	raw, err := c.store.Read(ctx, metaPath)
	if err != nil {
		if !errors.Is(err, core.ErrDatasetNotFound) {
			c.logger.Warn("cache read failed", zap.String("path", metaPath), zap.Error(err))
		}
		c.logger.Debug("cache miss", zap.String("instrument", string(inst)))
		return series.Series{}, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("corrupt cache entry", zap.String("path", metaPath), zap.Error(err))
		return series.Series{}, false
	}
	if c.stale(entry) {
		c.logger.Debug("cache stale",
			zap.String("instrument", string(inst)),
			zap.Time("fetched_at", entry.FetchedAt),
			zap.Duration("ttl", c.ttl),
		)
		return series.Series{}, false
	}

	data, err := c.store.Read(ctx, dataPath)
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("path", dataPath), zap.Error(err))
		return series.Series{}, false
	}
	s, err := DecodeSeries(string(inst), data)
	if err != nil {
		c.logger.Warn("corrupt cache entry", zap.String("path", dataPath), zap.Error(err))
		return series.Series{}, false
	}

	c.logger.Info("cache hit",
		zap.String("instrument", string(inst)),
		zap.String("path", dataPath),
		zap.Int("rows", s.Len()),
	)
	return s, true
}

// Put stores a series. The sidecar is written last so a failed write never
// leaves an entry that looks fresh.
func (c *Cache) Put(ctx context.Context, source string, inst core.Instrument, r Range, f Filter, s series.Series) error {
	dataPath, metaPath := c.paths(source, inst, r, f)

	data, err := EncodeSeries(s)
	if err != nil {
		return err
	}
	if err := c.store.Write(ctx, dataPath, data); err != nil {
		return err
	}

	meta, err := json.MarshalIndent(cacheEntry{
		Source:     source,
		Instrument: inst,
		Range:      r.String(),
		Filter:     f.String(),
		FetchedAt:  c.now().UTC(),
		Rows:       s.Len(),
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := c.store.Write(ctx, metaPath, meta); err != nil {
		return err
	}

	c.logger.Debug("cached market data", zap.String("instrument", string(inst)), zap.String("path", dataPath))
	return nil
}

func (c *Cache) stale(e cacheEntry) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(e.FetchedAt) > c.ttl
}
