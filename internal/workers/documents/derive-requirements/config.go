// internal/workers/documents/derive-requirements/config.go
package deriverequirements

import (
	"time"

	"annual-reports-workers/internal/common/config"
)

type Config struct {
	Timeout              time.Duration
	DisableBusinessRules bool
}

// NewConfig reads the worker timeout and engine switches from the app config.
func NewConfig(cfg *config.Config) *Config {
	c := &Config{Timeout: 30 * time.Second}
	if cfg == nil {
		return c
	}
	if wc, ok := cfg.Workers[TaskType]; ok && wc.Timeout > 0 {
		c.Timeout = time.Duration(wc.Timeout) * time.Millisecond
	}
	c.DisableBusinessRules = cfg.Engine.DisableBusinessRules
	return c
}
