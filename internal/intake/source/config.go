package source

import (
	"fmt"
	"time"

	"annual-reports-workers/internal/common/config"
	"annual-reports-workers/internal/common/database"
	"annual-reports-workers/internal/common/logger"
)

// FromConfig builds the configured source. pg is required for the postgres
// source and rdb when the cache is enabled.
func FromConfig(cfg config.RegistryConfig, pg *database.PostgresClient, rdb *database.RedisClient, log logger.Logger) (Source, error) {
	var src Source
	switch cfg.Source {
	case config.RegistrySourceEmbedded, "":
		src = Embedded{}
	case config.RegistrySourceFile:
		src = File{Path: cfg.Path}
	case config.RegistrySourceHTTP:
		src = NewHTTPSource(cfg.URL, time.Duration(cfg.HTTPTimeout)*time.Millisecond)
	case config.RegistrySourcePostgres:
		if pg == nil {
			return nil, fmt.Errorf("registry source postgres needs a database connection")
		}
		ps, err := NewPostgresSource(pg, cfg.Table)
		if err != nil {
			return nil, err
		}
		src = ps
	default:
		return nil, fmt.Errorf("unknown registry source %q", cfg.Source)
	}

	if cfg.Cache.Enabled {
		if rdb == nil {
			return nil, fmt.Errorf("registry cache needs a redis connection")
		}
		src = NewCachedSource(src, rdb, cfg.Cache.Key, time.Duration(cfg.Cache.TTL)*time.Second, log)
	}
	return src, nil
}
