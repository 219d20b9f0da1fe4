package source

import (
	"context"
	"sync/atomic"
	"time"

	"annual-reports-workers/internal/common/errors"
	"annual-reports-workers/internal/common/logger"
	"annual-reports-workers/internal/common/metrics"
	"annual-reports-workers/pkg/registry"
)

// Store holds the active registry snapshot. Readers never block; a refresh
// swaps the pointer only after the new document has been fully validated.
type Store struct {
	src     Source
	current atomic.Pointer[registry.Registry]
	logger  logger.Logger
}

func NewStore(src Source, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Store{src: src, logger: log}
}

// Snapshot returns the active registry or a retryable REGISTRY_UNAVAILABLE error.
func (s *Store) Snapshot() (*registry.Registry, error) {
	reg := s.current.Load()
	if reg == nil {
		return nil, errors.NewRegistryUnavailableError(nil)
	}
	return reg, nil
}

// Set installs reg as the active snapshot.
func (s *Store) Set(reg *registry.Registry) {
	prev := s.current.Swap(reg)
	if prev != nil {
		metrics.RegistryInfo.DeleteLabelValues(prev.Version())
	}
	metrics.RegistryInfo.WithLabelValues(reg.Version()).Set(1)
}

// Refresh loads the source once. On failure the previous snapshot stays active.
func (s *Store) Refresh(ctx context.Context) error {
	reg, err := Load(ctx, s.src)
	if err != nil {
		s.logger.Error("registry refresh failed", map[string]interface{}{
			"source":    s.src.Name(),
			"error":     err.Error(),
			"retryable": errors.IsRetryableErrorCode(errors.Normalize(err).Code),
		})
		return err
	}

	prev := s.current.Load()
	s.Set(reg)
	if prev == nil || prev.Version() != reg.Version() {
		s.logger.Info("registry loaded", map[string]interface{}{
			"source":    s.src.Name(),
			"version":   reg.Version(),
			"templates": len(reg.Document().Templates),
			"mappings":  len(reg.Mappings()),
		})
	}
	return nil
}

// Run refreshes every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		}
	}
}
