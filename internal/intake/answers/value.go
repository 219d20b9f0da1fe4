package answers

import (
	"encoding/json"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type Kind int

const (
	KindNone Kind = iota
	KindScalar
	KindList
	KindBool
)

// Value is a questionnaire answer: a scalar string, a list of strings or a boolean.
type Value struct {
	kind   Kind
	scalar string
	list   []string
	flag   bool
}

func Scalar(s string) Value { return Value{kind: KindScalar, scalar: s} }

func List(items ...string) Value {
	return Value{kind: KindList, list: append([]string(nil), items...)}
}

func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether the answer carries no usable content. Booleans are
// never empty.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindScalar:
		return Normalize(v.scalar) == ""
	case KindList:
		return len(v.Items()) == 0
	case KindBool:
		return false
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindList:
		return strings.Join(v.list, ", ")
	case KindBool:
		if v.flag {
			return "true"
		}
		return "false"
	}
	return ""
}

var itemSeparator = regexp.MustCompile(`[\n,]`)

// Items splits the answer into list items. Scalars are split on newlines and
// commas; blanks are dropped.
func (v Value) Items() []string {
	var raw []string
	switch v.kind {
	case KindScalar:
		raw = itemSeparator.Split(v.scalar, -1)
	case KindList:
		raw = v.list
	default:
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s := Normalize(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Flatten joins a multi-line or multi-item answer into one comma-separated line.
func (v Value) Flatten() string {
	if v.kind == KindBool {
		return ""
	}
	return strings.Join(v.Items(), ", ")
}

func (v Value) IsYes() bool {
	switch v.kind {
	case KindBool:
		return v.flag
	case KindScalar:
		return IsYes(v.scalar)
	case KindList:
		items := v.Items()
		return len(items) == 1 && IsYes(items[0])
	}
	return false
}

func (v Value) IsNo() bool {
	switch v.kind {
	case KindBool:
		return !v.flag
	case KindScalar:
		return IsNo(v.scalar)
	case KindList:
		items := v.Items()
		return len(items) == 1 && IsNo(items[0])
	}
	return false
}

// Equals compares against want after folding. A list matches when any of its
// items does.
func (v Value) Equals(want string) bool {
	target := Fold(want)
	switch v.kind {
	case KindList:
		for _, item := range v.Items() {
			if Fold(item) == target {
				return true
			}
		}
		return false
	case KindNone:
		return false
	}
	return Fold(v.String()) == target
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindScalar:
		return json.Marshal(v.scalar)
	case KindList:
		return json.Marshal(v.list)
	case KindBool:
		return json.Marshal(v.flag)
	}
	return []byte("null"), nil
}

var (
	yesWords = []string{"yes", "true", "כן"}
	noWords  = []string{"no", "false", "לא"}
)

// Normalize trims and NFC-composes s.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Fold normalizes s for case-insensitive comparison.
func Fold(s string) string {
	return cases.Fold().String(Normalize(s))
}

func IsYes(s string) bool { return inFolded(s, yesWords) }

func IsNo(s string) bool { return inFolded(s, noWords) }

// IsBooleanLike reports strings that are yes/no answers or blank rather than
// real list items.
func IsBooleanLike(s string) bool {
	return Normalize(s) == "" || IsYes(s) || IsNo(s)
}

func inFolded(s string, words []string) bool {
	f := Fold(s)
	for _, w := range words {
		if f == w {
			return true
		}
	}
	return false
}
