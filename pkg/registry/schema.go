// pkg/registry/schema.go
package registry

import (
	"encoding/json"
	"strings"
)

// Scope controls which person a template's requirement belongs to.
type Scope string

const (
	ScopeClient       Scope = "CLIENT"
	ScopeSpouse       Scope = "SPOUSE"
	ScopePerson       Scope = "PERSON"
	ScopeGlobalSingle Scope = "GLOBAL_SINGLE"
)

type PersonScope string

const (
	PersonClient PersonScope = "CLIENT"
	PersonSpouse PersonScope = "SPOUSE"
)

type TriggerKind string

const (
	TriggerAlways       TriggerKind = "ALWAYS"
	TriggerAnswerYes    TriggerKind = "ANSWER_YES"
	TriggerAnswerNo     TriggerKind = "ANSWER_NO"
	TriggerAnswerEquals TriggerKind = "ANSWER_EQUALS"
)

type EmissionMode string

const (
	EmitSingle      EmissionMode = "SINGLE"
	EmitPerListItem EmissionMode = "PER_LIST_ITEM"
)

type DetailKind string

const (
	DetailNone         DetailKind = "NONE"
	DetailFixed        DetailKind = "FIXED"
	DetailLinkedAnswer DetailKind = "LINKED_ANSWER"
	DetailSelf         DetailKind = "SELF"
)

// Implicit parameters are bound by the deriver and never declared as detail params.
const (
	ParamYear       = "year"
	ParamClientName = "client_name"
	ParamSpouseName = "spouse_name"
)

var ImplicitParams = []string{ParamYear, ParamClientName, ParamSpouseName}

func IsImplicitParam(key string) bool {
	for _, p := range ImplicitParams {
		if p == key {
			return true
		}
	}
	return false
}

// Text is a bilingual string. A plain JSON string decodes into both languages.
type Text struct {
	He string `json:"he"`
	En string `json:"en"`
}

func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.He, t.En = s, s
		return nil
	}
	type plain Text
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Text(p)
	if t.En == "" {
		t.En = t.He
	}
	return nil
}

func (t Text) In(lang string) string {
	if strings.EqualFold(lang, "en") && t.En != "" {
		return t.En
	}
	return t.He
}

type Option struct {
	ID     string `json:"id"`
	NameHe string `json:"name_he"`
	NameEn string `json:"name_en"`
}

type DetailParam struct {
	Key       string   `json:"key"`
	LabelHe   string   `json:"label_he"`
	LabelEn   string   `json:"label_en"`
	InputKind string   `json:"input_kind"`
	Options   []Option `json:"options,omitempty"`
}

type DocumentTemplate struct {
	ID               string        `json:"id"`
	Category         string        `json:"category"`
	TitleHe          string        `json:"title_he"`
	TitleEn          string        `json:"title_en"`
	DetailParams     []DetailParam `json:"detail_params,omitempty"`
	Scope            Scope         `json:"scope"`
	SingletonGroup   string        `json:"singleton_group,omitempty"`
	CanonicalTitleHe string        `json:"canonical_title_he,omitempty"`
	CanonicalTitleEn string        `json:"canonical_title_en,omitempty"`
}

// Group returns the singleton group a GLOBAL_SINGLE template consolidates into.
func (t DocumentTemplate) Group() string {
	if t.SingletonGroup != "" {
		return t.SingletonGroup
	}
	return t.ID
}

// ParamKeys lists the declared detail param keys in order.
func (t DocumentTemplate) ParamKeys() []string {
	keys := make([]string, 0, len(t.DetailParams))
	for _, p := range t.DetailParams {
		keys = append(keys, p.Key)
	}
	return keys
}

type Category struct {
	ID        string `json:"id"`
	Emoji     string `json:"emoji"`
	NameHe    string `json:"name_he"`
	NameEn    string `json:"name_en"`
	SortOrder int    `json:"sort_order"`
}

func (c Category) Name(lang string) string {
	if strings.EqualFold(lang, "en") {
		return c.NameEn
	}
	return c.NameHe
}

// QuestionKeys holds one answer key per form-language namespace.
type QuestionKeys struct {
	He string `json:"he"`
	En string `json:"en,omitempty"`
}

type Question struct {
	ID      string       `json:"id"`
	Keys    QuestionKeys `json:"keys"`
	LabelHe string       `json:"label_he,omitempty"`
	LabelEn string       `json:"label_en,omitempty"`
}

type Trigger struct {
	Kind  TriggerKind `json:"kind"`
	Value string      `json:"value,omitempty"`
}

type DetailSource struct {
	Kind     DetailKind      `json:"kind,omitempty"`
	Fixed    map[string]Text `json:"fixed,omitempty"`
	Question string          `json:"question,omitempty"`
	Param    string          `json:"param,omitempty"`
	Fallback *Text           `json:"fallback,omitempty"`
}

// ItemVariant swaps the emitted templates for list items whose normalized
// text matches one of Match.
type ItemVariant struct {
	Match     []string      `json:"match"`
	Templates []string      `json:"templates"`
	ItemParam string        `json:"item_param,omitempty"`
	Detail    *DetailSource `json:"detail_source,omitempty"`
}

type QuestionMapping struct {
	ID               string          `json:"id"`
	QuestionKeys     QuestionKeys    `json:"question_keys"`
	Trigger          Trigger         `json:"trigger"`
	Templates        []string        `json:"templates"`
	Mode             EmissionMode    `json:"emission_mode"`
	Person           PersonScope     `json:"person_scope"`
	Detail           DetailSource    `json:"detail_source"`
	ExtraDetails     []DetailSource  `json:"extra_details,omitempty"`
	Fixed            map[string]Text `json:"fixed,omitempty"`
	ItemsFrom        string          `json:"items_from,omitempty"`
	ItemParam        string          `json:"item_param,omitempty"`
	Variants         []ItemVariant   `json:"variants,omitempty"`
	SkipBooleanItems bool            `json:"skip_boolean_items,omitempty"`
}

// AllTemplates returns every template id the mapping can emit, variants included.
func (m QuestionMapping) AllTemplates() []string {
	out := append([]string(nil), m.Templates...)
	for _, v := range m.Variants {
		out = append(out, v.Templates...)
	}
	return out
}

type SystemFields struct {
	ReportID   string `json:"report_id"`
	ClientID   string `json:"client_id"`
	Year       string `json:"year"`
	Token      string `json:"token"`
	FullName   string `json:"full_name"`
	SpouseName string `json:"spouse_name"`
}

type Names struct {
	ClientQuestion     string   `json:"client_question"`
	SpouseQuestion     string   `json:"spouse_question"`
	SpousePlaceholders []string `json:"spouse_placeholders,omitempty"`
	ClientFallback     Text     `json:"client_fallback"`
	SpouseFallback     Text     `json:"spouse_fallback"`
	SpouseDisplay      Text     `json:"spouse_display_suffix"`
}

type ForeignIncomeRule struct {
	ReturnFiledQuestion string   `json:"return_filed_question"`
	EvidenceTemplates   []string `json:"evidence_templates,omitempty"`
}

type Rules struct {
	SecuritiesTemplates []string          `json:"securities_templates,omitempty"`
	IssuerPrefixes      []string          `json:"issuer_prefixes,omitempty"`
	ForeignIncome       ForeignIncomeRule `json:"foreign_income"`
}

// Document is the serialized registry as stored in files, Postgres or Redis.
type Document struct {
	Version           string             `json:"version"`
	LastUpdated       string             `json:"lastUpdated,omitempty"`
	Categories        []Category         `json:"categories"`
	Templates         []DocumentTemplate `json:"templates"`
	Questions         []Question         `json:"questions,omitempty"`
	Mappings          []QuestionMapping  `json:"mappings"`
	KeyTranslations   map[string]string  `json:"key_translations,omitempty"`
	ValueTranslations map[string]string  `json:"value_translations,omitempty"`
	ExternalTypes     map[string]string  `json:"external_types,omitempty"`
	SystemFields      SystemFields       `json:"system_fields"`
	Names             Names              `json:"names"`
	Rules             Rules              `json:"rules"`
}

// ResolvePerson applies a template's fixed scope over the mapping's person scope.
func ResolvePerson(scope Scope, mapping PersonScope) PersonScope {
	switch scope {
	case ScopeClient:
		return PersonClient
	case ScopeSpouse:
		return PersonSpouse
	}
	if mapping == PersonSpouse {
		return PersonSpouse
	}
	return PersonClient
}
