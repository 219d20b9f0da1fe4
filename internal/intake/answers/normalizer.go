package answers

import (
	"encoding/json"
	"strconv"
	"strings"

	"annual-reports-workers/internal/models"
	"annual-reports-workers/pkg/registry"
)

type Language string

const (
	LanguageHe Language = "he"
	LanguageEn Language = "en"
)

// Map is the canonical answer map, keyed in the Hebrew form's namespace.
type Map map[string]Value

// Get returns the answer stored under either namespace key.
func (m Map) Get(keys registry.QuestionKeys) (Value, bool) {
	for _, k := range []string{keys.He, keys.En} {
		if k == "" {
			continue
		}
		if v, ok := m[k]; ok && v.Kind() != KindNone {
			return v, true
		}
	}
	return Value{}, false
}

type Normalizer struct {
	reg *registry.Registry
}

func NewNormalizer(reg *registry.Registry) *Normalizer {
	return &Normalizer{reg: reg}
}

// DetectLanguage reports LanguageEn when any key belongs to the English
// form's namespace.
func (n *Normalizer) DetectLanguage(fields []models.SubmissionField) Language {
	for _, f := range fields {
		if f.Key != "" && n.reg.IsSecondaryKey(f.Key) {
			return LanguageEn
		}
	}
	return LanguageHe
}

// Normalize builds the canonical answer map. Fields without a key or with a
// value that is not text, a list or a boolean are dropped; a nil or empty
// submission yields an empty map.
func (n *Normalizer) Normalize(fields []models.SubmissionField) (Map, Language) {
	out := Map{}
	if len(fields) == 0 {
		return out, LanguageHe
	}

	lang := n.DetectLanguage(fields)
	for _, f := range fields {
		if f.Key == "" {
			continue
		}
		key := f.Key
		if lang == LanguageEn {
			if he, ok := n.reg.CanonicalKey(f.Key); ok {
				key = he
			}
		}
		v, ok := FromRaw(f.Value)
		if !ok {
			continue
		}
		out[key] = n.translate(v)
	}
	return out, lang
}

func (n *Normalizer) translate(v Value) Value {
	switch v.kind {
	case KindScalar:
		if he, ok := n.reg.TranslateValue(Normalize(v.scalar)); ok {
			return Scalar(he)
		}
		// Multi-line and comma-separated answers translate per item and
		// keep the scalar shape the Hebrew form submits.
		items := v.Items()
		if len(items) < 2 {
			return v
		}
		translated := false
		for i, item := range items {
			if he, ok := n.reg.TranslateValue(item); ok {
				items[i] = he
				translated = true
			}
		}
		if translated {
			return Scalar(strings.Join(items, "\n"))
		}
	case KindList:
		items := make([]string, len(v.list))
		for i, item := range v.list {
			items[i] = item
			if he, ok := n.reg.TranslateValue(Normalize(item)); ok {
				items[i] = he
			}
		}
		return List(items...)
	}
	return v
}

// FromRaw converts a decoded JSON value into a Value.
func FromRaw(raw interface{}) (Value, bool) {
	switch x := raw.(type) {
	case nil:
		return Value{}, false
	case string:
		return Scalar(Normalize(x)), true
	case bool:
		return Bool(x), true
	case float64:
		return Scalar(strconv.FormatFloat(x, 'f', -1, 64)), true
	case int:
		return Scalar(strconv.Itoa(x)), true
	case json.Number:
		return Scalar(x.String()), true
	case []string:
		return List(x...), true
	case []interface{}:
		items := make([]string, 0, len(x))
		for _, el := range x {
			if v, ok := FromRaw(el); ok && v.kind == KindScalar {
				items = append(items, v.scalar)
			}
		}
		return List(items...), true
	}
	return Value{}, false
}
