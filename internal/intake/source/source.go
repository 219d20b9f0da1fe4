// Package source loads registry documents from the configured backend and
// keeps the active snapshot.
package source

import (
	"context"
	"fmt"
	"os"

	"annual-reports-workers/internal/common/errors"
	"annual-reports-workers/internal/common/metrics"
	"annual-reports-workers/pkg/registry"
)

// Source fetches a serialized registry document.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, registry.Format, error)
}

// Load fetches and parses one registry snapshot. Transport failures are
// retryable REGISTRY_FETCH_FAILED errors, bad documents are REGISTRY_INVALID.
func Load(ctx context.Context, src Source) (*registry.Registry, error) {
	data, format, err := src.Fetch(ctx)
	if err != nil {
		metrics.RegistryLoads.WithLabelValues(src.Name(), "fetch_error").Inc()
		return nil, errors.NewRegistryFetchError(src.Name(), err)
	}
	reg, err := registry.Parse(data, format)
	if err != nil {
		metrics.RegistryLoads.WithLabelValues(src.Name(), "invalid").Inc()
		return nil, errors.NewRegistryError(src.Name(), err)
	}
	metrics.RegistryLoads.WithLabelValues(src.Name(), "ok").Inc()
	return reg, nil
}

// Embedded serves the registry compiled into the binary.
type Embedded struct{}

func (Embedded) Name() string { return "embedded" }

func (Embedded) Fetch(context.Context) ([]byte, registry.Format, error) {
	return registry.DefaultJSON(), registry.FormatJSON, nil
}

// File reads a JSON or YAML registry from disk on every fetch.
type File struct {
	Path string
}

func (f File) Name() string { return "file" }

func (f File) Fetch(context.Context) ([]byte, registry.Format, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, "", fmt.Errorf("read registry file: %w", err)
	}
	return data, registry.FormatFromPath(f.Path), nil
}
