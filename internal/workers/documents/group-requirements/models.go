// internal/workers/documents/group-requirements/models.go
package grouprequirements

import (
	"annual-reports-workers/internal/intake/engine"
	"annual-reports-workers/internal/models"
)

type Input struct {
	Requirements []models.DocumentRequirement `json:"requirements"`
	Language     string                       `json:"language,omitempty"` // he | en
	Format       string                       `json:"format,omitempty"`   // html | plain
}

type Output struct {
	Groups []engine.Group `json:"groups"`
	Total  int            `json:"total"`
}
