package source

import (
	"context"
	"strings"
	"time"

	commonhttp "annual-reports-workers/internal/common/http"
	"annual-reports-workers/pkg/registry"
)

// HTTPSource GETs the registry document from a URL. A ".yaml" or ".yml" path
// or a YAML content type is parsed as YAML.
type HTTPSource struct {
	URL     string
	Headers map[string]string
	client  *commonhttp.Client
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		URL:     url,
		Headers: map[string]string{"Accept": "application/json, application/yaml"},
		client:  commonhttp.NewClient(timeout),
	}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, registry.Format, error) {
	body, err := s.client.Fetch(ctx, s.URL, s.Headers)
	if err != nil {
		return nil, "", err
	}
	path := s.URL
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return body, registry.FormatFromPath(path), nil
}
