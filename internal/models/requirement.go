// internal/models/requirement.go
package models

type Person string

const (
	PersonClient Person = "client"
	PersonSpouse Person = "spouse"
)

type RequirementStatus string

// Only StatusRequiredMissing is ever produced here; the rest belong to the
// systems that track receipt.
const (
	StatusRequiredMissing RequirementStatus = "Required_Missing"
	StatusReceived        RequirementStatus = "Received"
	StatusRequiresFix     RequirementStatus = "Requires_Fix"
	StatusWaived          RequirementStatus = "Waived"
)

type DocumentRequirement struct {
	DocumentKey string            `json:"documentKey"`
	ReportID    string            `json:"reportId,omitempty"`
	TemplateID  string            `json:"templateId"`
	Type        string            `json:"type"`
	Category    string            `json:"category"`
	Person      Person            `json:"person"`
	TitleHe     string            `json:"titleHe"`
	TitleEn     string            `json:"titleEn"`
	Status      RequirementStatus `json:"status"`
	MappingID   string            `json:"mappingId,omitempty"`
	Item        string            `json:"item,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

type WarningCode string

const (
	WarningUnknownTemplate       WarningCode = "UNKNOWN_TEMPLATE"
	WarningInvalidItem           WarningCode = "INVALID_ITEM"
	WarningBusinessRulesFallback WarningCode = "BUSINESS_RULES_FALLBACK"
	WarningSubmissionMalformed   WarningCode = "SUBMISSION_MALFORMED"
	WarningRegistryUnavailable   WarningCode = "REGISTRY_UNAVAILABLE"
	WarningEnginePanic           WarningCode = "ENGINE_PANIC"
)

// Warning flags a recoverable problem hit while deriving requirements.
type Warning struct {
	Code       WarningCode `json:"code"`
	MappingID  string      `json:"mappingId,omitempty"`
	TemplateID string      `json:"templateId,omitempty"`
	Item       string      `json:"item,omitempty"`
	Message    string      `json:"message"`
}
