// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the serialization format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Registry is an immutable, fully indexed snapshot of a registry Document.
// It is safe for concurrent use.
type Registry struct {
	doc        Document
	raw        []byte
	templates  map[string]DocumentTemplate
	categories map[string]Category
	questions  map[string]Question
	mappings   map[string]QuestionMapping
	secondary  map[string]bool
}

// LoadRegistry reads, validates and indexes a registry file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, FormatFromPath(path))
}

// Parse decodes a serialized registry. YAML input is converted to JSON first so
// that one schema covers both formats.
func Parse(data []byte, format Format) (*Registry, error) {
	if format == FormatYAML {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		data = converted
	}
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	reg, err := New(doc)
	if err != nil {
		return nil, err
	}
	reg.raw = append([]byte(nil), data...)
	return reg, nil
}

// New indexes doc after checking the semantic invariants.
func New(doc Document) (*Registry, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}
	reg := &Registry{
		doc:        doc,
		templates:  make(map[string]DocumentTemplate, len(doc.Templates)),
		categories: make(map[string]Category, len(doc.Categories)),
		questions:  make(map[string]Question, len(doc.Questions)),
		mappings:   make(map[string]QuestionMapping, len(doc.Mappings)),
		secondary:  make(map[string]bool, len(doc.KeyTranslations)),
	}
	for _, t := range doc.Templates {
		reg.templates[t.ID] = t
	}
	for _, c := range doc.Categories {
		reg.categories[c.ID] = c
	}
	for _, q := range doc.Questions {
		reg.questions[q.ID] = q
	}
	for _, m := range doc.Mappings {
		reg.mappings[m.ID] = m
	}
	for k := range doc.KeyTranslations {
		reg.secondary[k] = true
	}
	return reg, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var v interface{}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode registry yaml: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("convert registry yaml: %w", err)
	}
	return out, nil
}

func (r *Registry) Version() string { return r.doc.Version }

// Raw returns the serialized JSON form of the snapshot.
func (r *Registry) Raw() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	return json.Marshal(r.doc)
}

// Document exposes the underlying document for tooling. Callers must not mutate it.
func (r *Registry) Document() Document { return r.doc }

func (r *Registry) Template(id string) (DocumentTemplate, bool) {
	t, ok := r.templates[id]
	return t, ok
}

func (r *Registry) Category(id string) (Category, bool) {
	c, ok := r.categories[id]
	return c, ok
}

// Categories returns all categories ordered by sort_order.
func (r *Registry) Categories() []Category {
	out := append([]Category(nil), r.doc.Categories...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

func (r *Registry) Mappings() []QuestionMapping {
	return append([]QuestionMapping(nil), r.doc.Mappings...)
}

func (r *Registry) Mapping(id string) (QuestionMapping, bool) {
	m, ok := r.mappings[id]
	return m, ok
}

// QuestionKeys resolves a question id to its answer keys. Mapping ids resolve
// too; anything else is treated as a raw answer key.
func (r *Registry) QuestionKeys(id string) QuestionKeys {
	if q, ok := r.questions[id]; ok {
		return q.Keys
	}
	if m, ok := r.mappings[id]; ok {
		return m.QuestionKeys
	}
	return QuestionKeys{He: id}
}

// CanonicalKey translates a secondary-namespace key. ok is false for keys
// that are not in the translation table.
func (r *Registry) CanonicalKey(key string) (string, bool) {
	he, ok := r.doc.KeyTranslations[key]
	return he, ok
}

func (r *Registry) IsSecondaryKey(key string) bool { return r.secondary[key] }

func (r *Registry) TranslateValue(v string) (string, bool) {
	he, ok := r.doc.ValueTranslations[v]
	return he, ok
}

// ExternalType maps a template id to the downstream type code.
func (r *Registry) ExternalType(templateID string) string {
	if t, ok := r.doc.ExternalTypes[templateID]; ok && t != "" {
		return t
	}
	return templateID
}

func (r *Registry) SystemFields() SystemFields { return r.doc.SystemFields }

func (r *Registry) Names() Names { return r.doc.Names }

func (r *Registry) Rules() Rules { return r.doc.Rules }

func (r *Registry) IsSecuritiesTemplate(id string) bool {
	return contains(r.doc.Rules.SecuritiesTemplates, id)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
