// internal/models/submission.go
package models

// SubmissionField is one answer record as delivered by the questionnaire provider.
type SubmissionField struct {
	Key   string      `json:"key"`
	Label string      `json:"label,omitempty"`
	Type  string      `json:"type,omitempty"` // INPUT_TEXT, CHECKBOXES, HIDDEN_FIELDS, EMAIL_ADDRESS, ...
	Value interface{} `json:"value"`
}

type Submission struct {
	FormName  string            `json:"formName,omitempty"`
	CreatedAt string            `json:"createdAt,omitempty"`
	Fields    []SubmissionField `json:"fields"`
}

// Field kinds that carry special meaning during normalization.
const (
	FieldKindHidden = "HIDDEN_FIELDS"
	FieldKindEmail  = "EMAIL_ADDRESS"
)
