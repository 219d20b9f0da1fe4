package answers

import (
	"annual-reports-workers/internal/common/validation"
	"annual-reports-workers/internal/models"
	"annual-reports-workers/pkg/registry"
)

// SystemFields are the hidden and identity fields of a submission.
type SystemFields struct {
	ReportID    string   `json:"reportId"`
	ClientID    string   `json:"clientId"`
	Year        string   `json:"year"`
	Token       string   `json:"token,omitempty"`
	ClientName  string   `json:"clientName"`
	SpouseName  string   `json:"spouseName,omitempty"`
	DisplayName string   `json:"displayName"`
	ClientEmail string   `json:"clientEmail,omitempty"`
	Language    Language `json:"language"`
	FormName    string   `json:"formName,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
}

// Names are the person names bound into titles, with fallbacks applied.
type Names struct {
	Client    registry.Text
	Spouse    registry.Text
	HasSpouse bool
}

// ResolveNames picks the client and spouse names from the answers, falling
// back to the hidden fields and then to the registry's generic wording.
func (n *Normalizer) ResolveNames(answers Map) Names {
	cfg := n.reg.Names()
	sys := n.reg.SystemFields()

	client := n.answerText(answers, cfg.ClientQuestion)
	if client == "" {
		client = n.answerText(answers, sys.FullName)
	}

	spouse := n.answerText(answers, cfg.SpouseQuestion)
	if isPlaceholder(spouse, cfg.SpousePlaceholders) {
		spouse = ""
	}
	if spouse == "" {
		spouse = n.answerText(answers, sys.SpouseName)
		if isPlaceholder(spouse, cfg.SpousePlaceholders) {
			spouse = ""
		}
	}

	names := Names{Client: cfg.ClientFallback, Spouse: cfg.SpouseFallback, HasSpouse: spouse != ""}
	if client != "" {
		names.Client = registry.Text{He: client, En: client}
	}
	if spouse != "" {
		names.Spouse = registry.Text{He: spouse, En: spouse}
	}
	return names
}

// SystemFields extracts the hidden identity fields and resolved names.
func (n *Normalizer) SystemFields(sub models.Submission, answers Map, lang Language) SystemFields {
	sys := n.reg.SystemFields()
	names := n.ResolveNames(answers)

	out := SystemFields{
		ReportID:   n.answerText(answers, sys.ReportID),
		ClientID:   n.answerText(answers, sys.ClientID),
		Year:       n.answerText(answers, sys.Year),
		Token:      n.answerText(answers, sys.Token),
		ClientName: names.Client.He,
		Language:   lang,
		FormName:   sub.FormName,
		CreatedAt:  sub.CreatedAt,
	}
	out.DisplayName = out.ClientName
	if names.HasSpouse {
		out.SpouseName = names.Spouse.He
		suffix := n.reg.Names().SpouseDisplay.He
		if suffix != "" {
			out.DisplayName = out.ClientName + " " + suffix
		}
	}

	for _, f := range sub.Fields {
		if f.Type != models.FieldKindEmail {
			continue
		}
		if s, ok := f.Value.(string); ok && validation.ValidateEmail(Normalize(s)) {
			out.ClientEmail = Normalize(s)
			break
		}
	}
	return out
}

func (n *Normalizer) answerText(answers Map, question string) string {
	if question == "" {
		return ""
	}
	v, ok := answers.Get(n.reg.QuestionKeys(question))
	if !ok {
		return ""
	}
	return v.Flatten()
}

func isPlaceholder(s string, placeholders []string) bool {
	if s == "" {
		return false
	}
	f := Fold(s)
	for _, p := range placeholders {
		if Fold(p) == f {
			return true
		}
	}
	return false
}
