// internal/intake/render/render.go
package render

import (
	"html"
	"regexp"
	"strings"

	"annual-reports-workers/pkg/registry"
)

type Mode string

const (
	ModeHTML  Mode = "html"
	ModePlain Mode = "plain"
)

// ParseMode maps a request string to a Mode. Anything unrecognised is HTML.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModePlain)) {
		return ModePlain
	}
	return ModeHTML
}

// Param is one bilingual placeholder value. Trusted values come from the
// registry or the engine itself and are never HTML-escaped.
type Param struct {
	Value   registry.Text
	Trusted bool
}

type Params map[string]Param

// Set binds a user-supplied value in both languages.
func (p Params) Set(key, value string) {
	p[key] = Param{Value: registry.Text{He: value, En: value}}
}

// SetText binds a bilingual value.
func (p Params) SetText(key string, value registry.Text, trusted bool) {
	p[key] = Param{Value: value, Trusted: trusted}
}

func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Title is a rendered bilingual document title.
type Title struct {
	He string `json:"he"`
	En string `json:"en"`
}

func (t Title) In(lang string) string {
	if lang == "en" {
		return t.En
	}
	return t.He
}

type Renderer struct {
	mode Mode
}

func New(mode Mode) *Renderer {
	if mode != ModePlain {
		mode = ModeHTML
	}
	return &Renderer{mode: mode}
}

func (r *Renderer) Mode() Mode { return r.mode }

// Render resolves both titles of a template.
func (r *Renderer) Render(t registry.DocumentTemplate, params Params) Title {
	return Title{
		He: r.RenderString(t.TitleHe, "he", params),
		En: r.RenderString(t.TitleEn, "en", params),
	}
}

var (
	placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)
	emphasisPattern    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldTagPattern     = regexp.MustCompile(`</?b>`)
)

// RenderString fills {key} tokens from params in the given language. A token
// without a value is left as is. Emphasis markers belong to the template, so
// they are converted before interpolation and a value can never open or close
// a bold span.
func (r *Renderer) RenderString(tmpl, lang string, params Params) string {
	var out string
	if r.mode == ModePlain {
		out = strings.ReplaceAll(tmpl, "**", "")
	} else {
		out = emphasisPattern.ReplaceAllString(tmpl, "<b>$1</b>")
	}

	return placeholderPattern.ReplaceAllStringFunc(out, func(token string) string {
		key := token[1 : len(token)-1]
		p, ok := params[key]
		if !ok {
			return token
		}
		v := p.Value.In(lang)
		if r.mode == ModeHTML && !p.Trusted {
			v = html.EscapeString(v)
		}
		return v
	})
}

// ToPlain turns an HTML-rendered title into plain text.
func ToPlain(s string) string {
	return html.UnescapeString(boldTagPattern.ReplaceAllString(s, ""))
}

// LastBold returns the text of the last <b> span of an HTML-rendered title,
// unescaped.
func LastBold(s string) string {
	end := strings.LastIndex(s, "</b>")
	if end < 0 {
		return ""
	}
	start := strings.LastIndex(s[:end], "<b>")
	if start < 0 {
		return ""
	}
	return html.UnescapeString(s[start+len("<b>") : end])
}

// Placeholders lists the tokens a title template uses.
func Placeholders(tmpl string) []string {
	return registry.Placeholders(tmpl)
}

// Leaked reports residual {key} tokens in a rendered title.
func Leaked(rendered string) []string {
	return registry.Placeholders(rendered)
}
