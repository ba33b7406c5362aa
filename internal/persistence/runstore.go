// Package persistence stores backtest runs and keeps a catalog of runs and
// datasets on top of archive storage.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/macrocredit/internal/backtest"
	"github.com/newthinker/macrocredit/internal/storage/archive"
)

// RunsPrefix is the storage prefix for run artifacts
const RunsPrefix = "runs"

// Artifact file names inside a run directory
const (
	PositionsFile = "positions.parquet"
	PnLFile       = "pnl.parquet"
	MetadataFile  = "metadata.json"
	MetricsFile   = "metrics.json"
)

// Run is a stored backtest with its metrics
type Run struct {
	ID      string                      `json:"id"`
	Result  *backtest.Result            `json:"result"`
	Metrics backtest.PerformanceMetrics `json:"metrics"`
}

// RunStore writes and reads runs under runs/<id>/
type RunStore struct {
	store  archive.Storage
	logger *zap.Logger
	newID  func() string
}

// NewRunStore creates a run store over the given storage
func NewRunStore(store archive.Storage, logger *zap.Logger) *RunStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunStore{
		store:  store,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Dir returns the storage directory of a run
func Dir(id string) string {
	return path.Join(RunsPrefix, id)
}

// Save writes the run artifacts and returns the new run ID
func (s *RunStore) Save(ctx context.Context, result *backtest.Result, metrics backtest.PerformanceMetrics) (string, error) {
	if result == nil {
		return "", fmt.Errorf("saving run: nil result")
	}
	id := s.newID()
	dir := Dir(id)

	positions, err := encodeParquet(toPositionRows(result.Positions))
	if err != nil {
		return "", fmt.Errorf("encoding positions: %w", err)
	}
	pnl, err := encodeParquet(toPnLRows(result.PnL))
	if err != nil {
		return "", fmt.Errorf("encoding pnl: %w", err)
	}
	meta, err := json.MarshalIndent(result.Metadata, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	m, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding metrics: %w", err)
	}

	artifacts := []struct {
		name string
		data []byte
	}{
		{PositionsFile, positions},
		{PnLFile, pnl},
		{MetadataFile, meta},
		{MetricsFile, m},
	}
	for i, a := range artifacts {
		if err := s.store.Write(ctx, path.Join(dir, a.name), a.data); err != nil {
			if i > 0 {
				s.discard(id)
			}
			return "", fmt.Errorf("saving run %s: %w", id, err)
		}
	}

	s.logger.Info("saved run",
		zap.String("run_id", id),
		zap.String("dir", dir),
		zap.Int("days", len(result.Positions)),
	)
	return id, nil
}

// Load reads a run previously written by Save
func (s *RunStore) Load(ctx context.Context, id string) (*Run, error) {
	dir := Dir(id)

	read := func(name string) ([]byte, error) {
		data, err := s.store.Read(ctx, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading run %s: %w", id, err)
		}
		return data, nil
	}

	data, err := read(PositionsFile)
	if err != nil {
		return nil, err
	}
	positionRows, err := decodeParquet[PositionRow](PositionsFile, data)
	if err != nil {
		return nil, err
	}

	if data, err = read(PnLFile); err != nil {
		return nil, err
	}
	pnlRows, err := decodeParquet[PnLRow](PnLFile, data)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID: id,
		Result: &backtest.Result{
			Positions: fromPositionRows(positionRows),
			PnL:       fromPnLRows(pnlRows),
		},
	}

	if data, err = read(MetadataFile); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &run.Result.Metadata); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", MetadataFile, err)
	}

	if data, err = read(MetricsFile); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &run.Metrics); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", MetricsFile, err)
	}

	return run, nil
}

// Delete removes every artifact of a run
func (s *RunStore) Delete(ctx context.Context, id string) error {
	paths, err := s.store.List(ctx, Dir(id)+"/")
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := s.store.Delete(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Discard removes a partially written run. Failures are logged, not returned,
// so the error that caused the discard is the one callers see.
func (s *RunStore) Discard(id string) {
	s.discard(id)
}

func (s *RunStore) discard(id string) {
	// the caller's context may be what failed the write
	if err := s.Delete(context.Background(), id); err != nil {
		s.logger.Warn("failed to remove partial run",
			zap.String("run_id", id),
			zap.Error(err),
		)
		return
	}
	s.logger.Warn("removed partial run", zap.String("run_id", id))
}
