package metrics

import (
	"context"

	"github.com/newthinker/macrocredit/internal/storage/archive"
)

// instrumentedStorage counts writes passing through to the wrapped store.
type instrumentedStorage struct {
	archive.Storage
	reg *Registry
}

// InstrumentStorage wraps a store so every Write is recorded.
func InstrumentStorage(s archive.Storage, reg *Registry) archive.Storage {
	if reg == nil {
		return s
	}
	return &instrumentedStorage{Storage: s, reg: reg}
}

func (s *instrumentedStorage) Write(ctx context.Context, path string, data []byte) error {
	err := s.Storage.Write(ctx, path, data)
	status := StatusSuccess
	if err != nil {
		status = StatusFailed
	}
	s.reg.RecordArchiveWrite(status, len(data))
	return err
}
