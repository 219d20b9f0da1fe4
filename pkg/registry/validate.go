// pkg/registry/validate.go
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"annual-reports-workers/internal/common/validation"
)

var (
	ErrSchemaViolation    = errors.New("REGISTRY_SCHEMA_VIOLATION")
	ErrInvariantViolation = errors.New("REGISTRY_INVARIANT_VIOLATION")
)

//go:embed registry.schema.json
var schemaJSON []byte

// SchemaJSON returns the JSON schema registry documents must satisfy.
func SchemaJSON() []byte { return schemaJSON }

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Placeholders returns the distinct {key} tokens of a title template in order.
func Placeholders(title string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(title, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// ValidateSchema checks the structural shape of a serialized JSON registry.
func ValidateSchema(data []byte) error {
	result, err := validation.ValidateJSON(schemaJSON, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if !result.Valid {
		return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}

// Validate checks the invariants a registry must hold before any derivation
// can use it. Unknown template references in mappings are not fatal; Lint
// reports them and the deriver skips the mapping.
func Validate(doc Document) error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	categories := map[string]bool{}
	for _, c := range doc.Categories {
		if c.ID == "" {
			add("category with empty id")
			continue
		}
		if categories[c.ID] {
			add("duplicate category %q", c.ID)
		}
		categories[c.ID] = true
	}

	templates := map[string]bool{}
	for _, t := range doc.Templates {
		if t.ID == "" {
			add("template with empty id")
			continue
		}
		if templates[t.ID] {
			add("duplicate template %q", t.ID)
		}
		templates[t.ID] = true

		if t.Category != "" && len(categories) > 0 && !categories[t.Category] {
			add("template %q: unknown category %q", t.ID, t.Category)
		}
		switch t.Scope {
		case ScopeClient, ScopeSpouse, ScopePerson, ScopeGlobalSingle:
		default:
			add("template %q: invalid scope %q", t.ID, t.Scope)
		}

		declared := map[string]bool{}
		for _, p := range t.DetailParams {
			if IsImplicitParam(p.Key) {
				add("template %q: %q is implicit and cannot be a detail param", t.ID, p.Key)
			}
			declared[p.Key] = true
		}
		for _, title := range []string{t.TitleHe, t.TitleEn} {
			for _, key := range Placeholders(title) {
				if !declared[key] && !IsImplicitParam(key) {
					add("template %q: placeholder {%s} is neither a detail param nor implicit", t.ID, key)
				}
			}
		}
		for _, title := range []string{t.CanonicalTitleHe, t.CanonicalTitleEn} {
			if len(Placeholders(title)) > 0 {
				add("template %q: canonical title must be parameter-free", t.ID)
			}
		}
	}

	mappings := map[string]bool{}
	for _, m := range doc.Mappings {
		if m.ID == "" {
			add("mapping with empty id")
			continue
		}
		if mappings[m.ID] {
			add("duplicate mapping %q", m.ID)
		}
		mappings[m.ID] = true

		switch m.Trigger.Kind {
		case TriggerAlways, TriggerAnswerYes, TriggerAnswerNo:
		case TriggerAnswerEquals:
			if m.Trigger.Value == "" {
				add("mapping %q: ANSWER_EQUALS needs a value", m.ID)
			}
		default:
			add("mapping %q: invalid trigger %q", m.ID, m.Trigger.Kind)
		}
		if m.Trigger.Kind != TriggerAlways && m.QuestionKeys.He == "" && m.QuestionKeys.En == "" {
			add("mapping %q: conditional trigger without question keys", m.ID)
		}
		switch m.Mode {
		case EmitSingle, EmitPerListItem:
		default:
			add("mapping %q: invalid emission mode %q", m.ID, m.Mode)
		}
		switch m.Person {
		case PersonClient, PersonSpouse:
		default:
			add("mapping %q: invalid person scope %q", m.ID, m.Person)
		}
		if m.Mode != EmitPerListItem && (len(m.Variants) > 0 || m.ItemsFrom != "") {
			add("mapping %q: variants and items_from require PER_LIST_ITEM", m.ID)
		}
		for _, d := range append([]DetailSource{m.Detail}, m.ExtraDetails...) {
			if err := validateDetail(d); err != "" {
				add("mapping %q: %s", m.ID, err)
			}
		}
		for i, v := range m.Variants {
			if len(v.Match) == 0 {
				add("mapping %q: variant %d has no match values", m.ID, i)
			}
			if v.Detail != nil {
				if err := validateDetail(*v.Detail); err != "" {
					add("mapping %q: variant %d: %s", m.ID, i, err)
				}
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvariantViolation, strings.Join(problems, "; "))
	}
	return nil
}

func validateDetail(d DetailSource) string {
	switch d.Kind {
	case "", DetailNone, DetailSelf:
	case DetailFixed:
		if len(d.Fixed) == 0 {
			return "FIXED detail source without values"
		}
	case DetailLinkedAnswer:
		if d.Question == "" {
			return "LINKED_ANSWER detail source without question"
		}
	default:
		return fmt.Sprintf("invalid detail source %q", d.Kind)
	}
	return ""
}

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Finding struct {
	Severity  Severity `json:"severity"`
	MappingID string   `json:"mappingId,omitempty"`
	Template  string   `json:"templateId,omitempty"`
	Message   string   `json:"message"`
}

// Lint reports problems that do not block loading: mappings referencing
// unknown templates, placeholders a mapping can never fill, and mappings
// whose items_from or linked questions are not declared.
func Lint(r *Registry) []Finding {
	var out []Finding
	for _, m := range r.doc.Mappings {
		for _, id := range m.AllTemplates() {
			t, ok := r.templates[id]
			if !ok {
				out = append(out, Finding{SeverityError, m.ID, id, "unknown template"})
				continue
			}
			if t.Category != "" {
				if _, ok := r.categories[t.Category]; !ok {
					out = append(out, Finding{SeverityWarning, m.ID, id, "unknown category " + t.Category})
				}
			}
		}
		out = append(out, unresolvedParams(r, m)...)
		for _, q := range linkedQuestions(m) {
			if _, ok := r.questions[q]; !ok {
				if _, ok := r.mappings[q]; !ok {
					out = append(out, Finding{SeverityWarning, m.ID, "", "undeclared question " + q})
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MappingID < out[j].MappingID })
	return out
}

func linkedQuestions(m QuestionMapping) []string {
	var out []string
	if m.ItemsFrom != "" {
		out = append(out, m.ItemsFrom)
	}
	for _, d := range append([]DetailSource{m.Detail}, m.ExtraDetails...) {
		if d.Kind == DetailLinkedAnswer {
			out = append(out, d.Question)
		}
	}
	for _, v := range m.Variants {
		if v.Detail != nil && v.Detail.Kind == DetailLinkedAnswer {
			out = append(out, v.Detail.Question)
		}
	}
	return out
}

// unresolvedParams approximates which placeholders a mapping can fill and
// reports the ones it never can.
func unresolvedParams(r *Registry, m QuestionMapping) []Finding {
	base := map[string]bool{ParamYear: true}
	for k := range m.Fixed {
		base[k] = true
	}
	for _, d := range m.ExtraDetails {
		addDetailKeys(base, d)
	}

	var out []Finding
	check := func(templateIDs []string, detail DetailSource, itemParam string) {
		for _, id := range templateIDs {
			t, ok := r.templates[id]
			if !ok {
				continue
			}
			filled := map[string]bool{}
			for k := range base {
				filled[k] = true
			}
			if ResolvePerson(t.Scope, m.Person) == PersonSpouse {
				filled[ParamSpouseName] = true
			} else {
				filled[ParamClientName] = true
			}
			isFilled := func(k string) bool { return filled[k] }
			addDetailKeys(filled, detail)
			if detail.Kind == DetailLinkedAnswer || detail.Kind == DetailSelf {
				if detail.Param == "" {
					if p := FirstUnfilled(t, isFilled); p != "" {
						filled[p] = true
					}
				}
			}
			if m.Mode == EmitPerListItem {
				if itemParam != "" {
					filled[itemParam] = true
				} else if p := FirstUnfilled(t, isFilled); p != "" {
					filled[p] = true
				}
			}
			for _, title := range []string{t.TitleHe, t.TitleEn} {
				for _, key := range Placeholders(title) {
					if !filled[key] {
						out = append(out, Finding{SeverityError, m.ID, id, "placeholder {" + key + "} is never filled"})
						filled[key] = true
					}
				}
			}
		}
	}

	check(m.Templates, m.Detail, m.ItemParam)
	for _, v := range m.Variants {
		detail := m.Detail
		if v.Detail != nil {
			detail = *v.Detail
		}
		param := v.ItemParam
		if param == "" {
			param = m.ItemParam
		}
		check(v.Templates, detail, param)
	}
	return out
}

func addDetailKeys(filled map[string]bool, d DetailSource) {
	switch d.Kind {
	case DetailFixed:
		for k := range d.Fixed {
			filled[k] = true
		}
	case DetailLinkedAnswer, DetailSelf:
		if d.Param != "" {
			filled[d.Param] = true
		}
	}
}

// FirstUnfilled returns the first declared detail param not yet bound. Items
// and linked answers without an explicit param bind there.
func FirstUnfilled(t DocumentTemplate, filled func(string) bool) string {
	for _, p := range t.DetailParams {
		if !filled(p.Key) {
			return p.Key
		}
	}
	return ""
}
