// internal/workers/documents/group-requirements/config.go
package grouprequirements

import (
	"time"

	"annual-reports-workers/internal/common/config"
)

type Config struct {
	Timeout         time.Duration
	DefaultLanguage string
}

func NewConfig(cfg *config.Config) *Config {
	c := &Config{Timeout: 10 * time.Second, DefaultLanguage: "he"}
	if cfg == nil {
		return c
	}
	if wc, ok := cfg.Workers[TaskType]; ok && wc.Timeout > 0 {
		c.Timeout = time.Duration(wc.Timeout) * time.Millisecond
	}
	if cfg.Engine.DefaultLanguage != "" {
		c.DefaultLanguage = cfg.Engine.DefaultLanguage
	}
	return c
}
