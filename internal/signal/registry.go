package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/series"
	"go.uber.org/zap"
)

// ComputeFunc computes a signal from input series in catalog argument order
type ComputeFunc func(args []series.Series, cfg Config) (series.Series, error)

// builtins maps catalog compute function names to implementations
var builtins = map[string]ComputeFunc{
	"compute_cdx_etf_basis": func(args []series.Series, cfg Config) (series.Series, error) {
		if len(args) != 2 {
			return series.Series{}, fmt.Errorf("compute_cdx_etf_basis takes 2 inputs, got %d", len(args))
		}
		return CDXETFBasis(args[0], args[1], cfg), nil
	},
	"compute_cdx_vix_gap": func(args []series.Series, cfg Config) (series.Series, error) {
		if len(args) != 2 {
			return series.Series{}, fmt.Errorf("compute_cdx_vix_gap takes 2 inputs, got %d", len(args))
		}
		return CDXVIXGap(args[0], args[1], cfg), nil
	},
	"compute_spread_momentum": func(args []series.Series, cfg Config) (series.Series, error) {
		if len(args) != 1 {
			return series.Series{}, fmt.Errorf("compute_spread_momentum takes 1 input, got %d", len(args))
		}
		return SpreadMomentum(args[0], cfg), nil
	},
}

// Metadata describes one catalog entry
type Metadata struct {
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	ComputeFunction  string            `json:"compute_function_name"`
	DataRequirements map[string]string `json:"data_requirements"`
	ArgMapping       []string          `json:"arg_mapping"`
	Enabled          bool              `json:"enabled"`
}

// Validate checks that the entry can be dispatched
func (m Metadata) Validate() error {
	if m.Name == "" {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("signal name cannot be empty"))
	}
	if m.ComputeFunction == "" {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("signal %s: compute function name cannot be empty", m.Name))
	}
	if len(m.ArgMapping) == 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("signal %s: arg_mapping cannot be empty", m.Name))
	}
	for _, arg := range m.ArgMapping {
		if _, ok := m.DataRequirements[arg]; !ok {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("signal %s: arg_mapping key %q not in data_requirements", m.Name, arg))
		}
	}
	return nil
}

// DefaultCatalog returns the three built-in signals, all enabled
func DefaultCatalog() []Metadata {
	return []Metadata{
		{
			Name:             BasisSignal,
			Description:      "CDX spread against ETF-implied level, rolling z-score",
			ComputeFunction:  "compute_cdx_etf_basis",
			DataRequirements: map[string]string{"cdx": "spread", "etf": "close"},
			ArgMapping:       []string{"cdx", "etf"},
			Enabled:          true,
		},
		{
			Name:             VIXGapSignal,
			Description:      "Credit stress relative to equity stress",
			ComputeFunction:  "compute_cdx_vix_gap",
			DataRequirements: map[string]string{"cdx": "spread", "vix": "close"},
			ArgMapping:       []string{"cdx", "vix"},
			Enabled:          true,
		},
		{
			Name:             MomentumSignal,
			Description:      "Volatility-adjusted spread tightening momentum",
			ComputeFunction:  "compute_spread_momentum",
			DataRequirements: map[string]string{"cdx": "spread"},
			ArgMapping:       []string{"cdx"},
			Enabled:          true,
		},
	}
}

// Registry holds signal metadata keyed by name
type Registry struct {
	mu      sync.RWMutex
	signals map[string]Metadata
	logger  *zap.Logger
}

// NewRegistry creates a registry from catalog entries
func NewRegistry(entries []Metadata, logger ...*zap.Logger) (*Registry, error) {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}

	r := &Registry{
		signals: make(map[string]Metadata, len(entries)),
		logger:  l,
	}
	for _, m := range entries {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadCatalog reads a JSON array of signal metadata from path
func LoadCatalog(path string, logger ...*zap.Logger) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("signal catalog not found: %s", path))
		}
		return nil, fmt.Errorf("reading signal catalog: %w", err)
	}

	var entries []Metadata
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("signal catalog must be a JSON array: %w", err))
	}

	r, err := NewRegistry(entries, logger...)
	if err != nil {
		return nil, err
	}
	r.logger.Info("loaded signal catalog",
		zap.String("path", path),
		zap.Int("signals", len(entries)),
		zap.Int("enabled", len(r.Enabled())),
	)
	return r, nil
}

// Register adds a signal. Names must be unique.
func (r *Registry) Register(m Metadata) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.signals[m.Name]; dup {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("duplicate signal name in catalog: %s", m.Name))
	}
	r.signals[m.Name] = m
	return nil
}

// Get retrieves signal metadata by name
func (r *Registry) Get(name string) (Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.signals[name]
	if !ok {
		return Metadata{}, core.WrapError(core.ErrSignalNotFound, fmt.Errorf("%s", name))
	}
	return m, nil
}

// All returns every registered signal sorted by name
func (r *Registry) All() []Metadata {
	return r.filter(func(Metadata) bool { return true })
}

// Enabled returns the enabled signals sorted by name
func (r *Registry) Enabled() []Metadata {
	return r.filter(func(m Metadata) bool { return m.Enabled })
}

// RequiredData returns the sorted instrument names the enabled signals read
func (r *Registry) RequiredData() []string {
	seen := make(map[string]struct{})
	for _, m := range r.Enabled() {
		for _, key := range m.ArgMapping {
			seen[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the catalog as indented JSON
func (r *Registry) Save(path string) error {
	data, err := json.MarshalIndent(r.All(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding signal catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing signal catalog: %w", err)
	}
	return nil
}

func (r *Registry) filter(keep func(Metadata) bool) []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Metadata, 0, len(r.signals))
	for _, m := range r.signals {
		if keep(m) {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// ComputeRegistered computes every enabled signal from market data keyed by
// instrument name. Missing inputs and unknown compute functions are errors.
func (r *Registry) ComputeRegistered(ctx context.Context, market map[string]series.Series, cfg Config) (map[string]series.Series, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	enabled := r.Enabled()
	r.logger.Info("computing signals", zap.Int("enabled", len(enabled)))

	out := make(map[string]series.Series, len(enabled))
	for _, m := range enabled {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		fn, ok := builtins[m.ComputeFunction]
		if !ok {
			return nil, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("signal %s: unknown compute function %s", m.Name, m.ComputeFunction))
		}

		args := make([]series.Series, 0, len(m.ArgMapping))
		for _, key := range m.ArgMapping {
			s, ok := market[key]
			if !ok || s.Len() == 0 {
				return nil, core.WrapError(core.ErrNoData,
					fmt.Errorf("signal %s requires %s (%s)", m.Name, key, m.DataRequirements[key]))
			}
			args = append(args, s)
		}

		s, err := fn(args, cfg)
		if err != nil {
			return nil, fmt.Errorf("computing %s: %w", m.Name, err)
		}
		s.Name = m.Name
		out[m.Name] = s

		r.logger.Debug("signal computed",
			zap.String("signal", m.Name),
			zap.Int("valid", s.ValidCount()),
		)
	}
	return out, nil
}
