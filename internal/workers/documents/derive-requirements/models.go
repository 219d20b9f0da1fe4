// internal/workers/documents/derive-requirements/models.go
package deriverequirements

import (
	"fmt"
	"strconv"
	"strings"

	"annual-reports-workers/internal/intake/answers"
	"annual-reports-workers/internal/models"
)

// Input accepts the bare field list or the webhook envelopes
// {data:{fields}} and {body:{data:{fields}}}.
type Input struct {
	Fields    []models.SubmissionField `json:"fields,omitempty"`
	FormName  string                   `json:"formName,omitempty"`
	CreatedAt string                   `json:"createdAt,omitempty"`
	Data      *Envelope                `json:"data,omitempty"`
	Body      *Webhook                 `json:"body,omitempty"`
	Year      interface{}              `json:"year,omitempty"`
}

// Webhook is the request body a form provider posts.
type Webhook struct {
	Data *Envelope `json:"data,omitempty"`
}

type Envelope struct {
	FormName  string                   `json:"formName,omitempty"`
	CreatedAt string                   `json:"createdAt,omitempty"`
	Fields    []models.SubmissionField `json:"fields"`
}

// Submission unwraps whichever shape was sent. ok is false when no field list
// is present at all.
func (in *Input) Submission() (models.Submission, bool) {
	switch {
	case in.Fields != nil:
		return models.Submission{FormName: in.FormName, CreatedAt: in.CreatedAt, Fields: in.Fields}, true
	case in.Data != nil && in.Data.Fields != nil:
		return in.Data.submission(), true
	case in.Body != nil && in.Body.Data != nil && in.Body.Data.Fields != nil:
		return in.Body.Data.submission(), true
	}
	return models.Submission{}, false
}

func (e *Envelope) submission() models.Submission {
	return models.Submission{FormName: e.FormName, CreatedAt: e.CreatedAt, Fields: e.Fields}
}

// YearOverride returns the requested tax year, accepting strings and numbers.
func (in *Input) YearOverride() string {
	switch y := in.Year.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(y)
	case float64:
		return strconv.FormatInt(int64(y), 10)
	default:
		return fmt.Sprint(y)
	}
}

type Output struct {
	Requirements     []models.DocumentRequirement `json:"requirements"`
	RequirementCount int                          `json:"requirementCount"`
	SystemFields     answers.SystemFields         `json:"systemFields"`
	Warnings         []models.Warning             `json:"warnings"`
	RunID            string                       `json:"runId"`
	RegistryVersion  string                       `json:"registryVersion"`
	Degraded         bool                         `json:"degraded"`
}
