package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/newthinker/macrocredit/internal/core"
)

// Storage is the blob store behind market data, run artifacts and the
// registry. Paths are slash-separated and relative to the backend root.
type Storage interface {
	// Write stores data at the given path, replacing any existing object
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path. Missing objects return
	// core.ErrDatasetNotFound.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Backend types accepted by New
const (
	TypeLocalFS = "localfs"
	TypeS3      = "s3"
	TypeMemory  = "memory"
)

// Config selects and configures a storage backend
type Config struct {
	Type string   `mapstructure:"type"`
	Path string   `mapstructure:"path"`
	S3   S3Config `mapstructure:"s3"`
}

// New creates the backend named by cfg.Type
func New(cfg Config) (Storage, error) {
	switch strings.ToLower(cfg.Type) {
	case TypeLocalFS, "":
		if cfg.Path == "" {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("storage.path is required for localfs"))
		}
		return NewLocalFS(cfg.Path)
	case TypeS3:
		return NewS3(cfg.S3)
	case TypeMemory:
		return NewMemory(), nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage type %q", cfg.Type))
	}
}

func notFound(path string) error {
	return core.WrapError(core.ErrDatasetNotFound, fmt.Errorf("%s", path))
}

func storageFailed(op, path string, err error) error {
	return core.WrapError(core.ErrStorageFailed, fmt.Errorf("%s %s: %w", op, path, err))
}
