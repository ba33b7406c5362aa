package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/storage/archive"
)

// RegistryFile is the storage path of the catalog
const RegistryFile = "registry.json"

// Kind distinguishes catalog entries
type Kind string

const (
	KindRun     Kind = "run"
	KindDataset Kind = "dataset"
)

// Entry is one cataloged run or dataset
type Entry struct {
	ID           string            `json:"id"`
	Kind         Kind              `json:"kind"`
	Name         string            `json:"name,omitempty"`
	Path         string            `json:"path"`
	RegisteredAt time.Time         `json:"registered_at"`
	StartDate    time.Time         `json:"start_date,omitempty"`
	EndDate      time.Time         `json:"end_date,omitempty"`
	Rows         int               `json:"rows"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Registry is a JSON catalog of runs and datasets persisted in storage.
// Every mutation rewrites the catalog.
type Registry struct {
	mu      sync.RWMutex
	store   archive.Storage
	entries map[string]Entry
	logger  *zap.Logger
	now     func() time.Time
}

// OpenRegistry loads the catalog from storage, starting empty when none
// exists yet
func OpenRegistry(ctx context.Context, store archive.Storage, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		store:   store,
		entries: make(map[string]Entry),
		logger:  logger,
		now:     time.Now,
	}

	data, err := store.Read(ctx, RegistryFile)
	if errors.Is(err, core.ErrDatasetNotFound) {
		logger.Info("created new registry", zap.String("path", RegistryFile))
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("decoding %s: %w", RegistryFile, err))
	}
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	logger.Info("loaded registry", zap.Int("entries", len(entries)))
	return r, nil
}

// Register adds or replaces an entry and persists the catalog. A zero
// RegisteredAt is stamped with the current time.
func (r *Registry) Register(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return core.WrapError(core.ErrInvalidInput, fmt.Errorf("registry entry id cannot be empty"))
	}
	if e.Kind != KindRun && e.Kind != KindDataset {
		return core.WrapError(core.ErrInvalidInput, fmt.Errorf("unknown registry entry kind %q", e.Kind))
	}
	if e.RegisteredAt.IsZero() {
		e.RegisteredAt = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.entries[e.ID]
	r.entries[e.ID] = e
	if err := r.save(ctx); err != nil {
		if existed {
			r.entries[e.ID] = prev
		} else {
			delete(r.entries, e.ID)
		}
		return err
	}

	r.logger.Info("registered entry",
		zap.String("id", e.ID),
		zap.String("kind", string(e.Kind)),
		zap.Int("rows", e.Rows),
	)
	return nil
}

// Get retrieves an entry by ID
func (r *Registry) Get(id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, core.WrapError(core.ErrDatasetNotFound, fmt.Errorf("%s not in registry", id))
	}
	return e, nil
}

// List returns entries of the given kind, or all entries when kind is
// empty, ordered by registration time then ID
func (r *Registry) List(kind Kind) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if kind == "" || e.Kind == kind {
			result = append(result, e)
		}
	}
	sortEntries(result)
	return result
}

// Remove deletes an entry and persists the catalog
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return core.WrapError(core.ErrDatasetNotFound, fmt.Errorf("%s not in registry", id))
	}
	delete(r.entries, id)
	if err := r.save(ctx); err != nil {
		r.entries[id] = e
		return err
	}
	r.logger.Info("removed entry", zap.String("id", id))
	return nil
}

// save must be called with the lock held
func (r *Registry) save(ctx context.Context) error {
	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sortEntries(entries)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	if err := r.store.Write(ctx, RegistryFile, data); err != nil {
		return fmt.Errorf("writing %s: %w", RegistryFile, err)
	}
	return nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].RegisteredAt.Equal(entries[j].RegisteredAt) {
			return entries[i].RegisteredAt.Before(entries[j].RegisteredAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
