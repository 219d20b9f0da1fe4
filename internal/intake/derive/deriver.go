// internal/intake/derive/deriver.go
package derive

import (
	"fmt"
	"sort"
	"strings"

	"annual-reports-workers/internal/common/logger"
	"annual-reports-workers/internal/intake/answers"
	"annual-reports-workers/internal/intake/render"
	"annual-reports-workers/internal/models"
	"annual-reports-workers/pkg/registry"
)

// Context carries the values bound to the implicit placeholders.
type Context struct {
	Year   string
	Client registry.Text
	Spouse registry.Text
}

// Deriver turns an answer map into raw, not yet deduplicated requirements.
// It holds no per-run state and is safe for concurrent use.
type Deriver struct {
	reg      *registry.Registry
	renderer *render.Renderer
	logger   logger.Logger
}

func New(reg *registry.Registry, log logger.Logger) *Deriver {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Deriver{
		reg:      reg,
		renderer: render.New(render.ModeHTML),
		logger:   log,
	}
}

// run collects one derivation's output.
type run struct {
	ans          answers.Map
	ctx          Context
	requirements []models.DocumentRequirement
	warnings     []models.Warning
}

// Derive evaluates every mapping in registry order.
func (d *Deriver) Derive(ans answers.Map, ctx Context) ([]models.DocumentRequirement, []models.Warning) {
	r := &run{ans: ans, ctx: ctx}
	for _, m := range d.reg.Mappings() {
		d.deriveMapping(r, m)
	}
	return r.requirements, r.warnings
}

func (d *Deriver) deriveMapping(r *run, m registry.QuestionMapping) {
	for _, id := range m.AllTemplates() {
		if _, ok := d.reg.Template(id); !ok {
			d.warn(r, models.Warning{
				Code:       models.WarningUnknownTemplate,
				MappingID:  m.ID,
				TemplateID: id,
				Message:    fmt.Sprintf("mapping %s references unknown template %s", m.ID, id),
			})
			return
		}
	}

	answer, triggered := d.triggered(r.ans, m)
	if !triggered {
		return
	}

	if m.Mode != registry.EmitPerListItem {
		for _, id := range m.Templates {
			t, _ := d.reg.Template(id)
			params := d.baseParams(r, t, m)
			d.applyDetail(r, params, t, m.Detail, &answer)
			d.emit(r, t, m, params, "")
		}
		return
	}

	items := answer.Items()
	if m.ItemsFrom != "" {
		items = nil
		if v, ok := r.ans.Get(d.reg.QuestionKeys(m.ItemsFrom)); ok {
			items = v.Items()
		}
	}

	for _, item := range items {
		if m.SkipBooleanItems && answers.IsBooleanLike(item) {
			d.warn(r, models.Warning{
				Code:      models.WarningInvalidItem,
				MappingID: m.ID,
				Item:      item,
				Message:   fmt.Sprintf("item %q of mapping %s is a yes/no value, not a list entry", item, m.ID),
			})
			continue
		}

		templates, itemParam, detail := m.Templates, m.ItemParam, m.Detail
		if v := matchVariant(m.Variants, item); v != nil {
			templates = v.Templates
			if v.ItemParam != "" {
				itemParam = v.ItemParam
			}
			if v.Detail != nil {
				detail = *v.Detail
			}
		}

		for _, id := range templates {
			t, _ := d.reg.Template(id)
			params := d.baseParams(r, t, m)
			d.applyDetail(r, params, t, detail, nil)

			key := itemParam
			if key == "" {
				key = registry.FirstUnfilled(t, params.Has)
			}
			if key != "" && hasParam(t, key) {
				params.Set(key, item)
			}
			d.emit(r, t, m, params, item)
		}
	}
}

// triggered resolves the trigger condition against the answer found under
// either question key.
func (d *Deriver) triggered(ans answers.Map, m registry.QuestionMapping) (answers.Value, bool) {
	v, ok := ans.Get(m.QuestionKeys)

	switch m.Trigger.Kind {
	case registry.TriggerAlways:
		if m.QuestionKeys.He == "" && m.QuestionKeys.En == "" {
			return v, true
		}
		return v, ok && !v.IsEmpty()
	case registry.TriggerAnswerYes:
		return v, ok && v.IsYes()
	case registry.TriggerAnswerNo:
		return v, ok && v.IsNo()
	case registry.TriggerAnswerEquals:
		return v, ok && v.Equals(m.Trigger.Value)
	}
	return v, false
}

// baseParams binds the implicit params, then the mapping's fixed values, then
// its extra detail sources.
func (d *Deriver) baseParams(r *run, t registry.DocumentTemplate, m registry.QuestionMapping) render.Params {
	params := render.Params{}
	if r.ctx.Year != "" {
		params.SetText(registry.ParamYear, registry.Text{He: r.ctx.Year, En: r.ctx.Year}, true)
	}
	if registry.ResolvePerson(t.Scope, m.Person) == registry.PersonSpouse {
		params.SetText(registry.ParamSpouseName, r.ctx.Spouse, false)
	} else {
		params.SetText(registry.ParamClientName, r.ctx.Client, false)
	}

	for k, v := range m.Fixed {
		params.SetText(k, v, true)
	}
	for _, extra := range m.ExtraDetails {
		d.applyDetail(r, params, t, extra, nil)
	}
	return params
}

// applyDetail binds one detail source. self is the triggering answer for
// SINGLE emission; per-item emission binds the item instead and passes nil.
func (d *Deriver) applyDetail(r *run, params render.Params, t registry.DocumentTemplate, src registry.DetailSource, self *answers.Value) {
	target := func() string {
		if src.Param != "" {
			return src.Param
		}
		return registry.FirstUnfilled(t, params.Has)
	}

	switch src.Kind {
	case registry.DetailFixed:
		for k, v := range src.Fixed {
			params.SetText(k, v, true)
		}

	case registry.DetailLinkedAnswer:
		key := target()
		if key == "" {
			return
		}
		if v, ok := r.ans.Get(d.reg.QuestionKeys(src.Question)); ok {
			if text := v.Flatten(); text != "" {
				params.Set(key, text)
				return
			}
		}
		if src.Fallback != nil {
			params.SetText(key, *src.Fallback, true)
		}

	case registry.DetailSelf:
		if self == nil {
			return
		}
		key := target()
		if text := self.Flatten(); key != "" && text != "" {
			params.Set(key, text)
		}
	}
}

func (d *Deriver) emit(r *run, t registry.DocumentTemplate, m registry.QuestionMapping, params render.Params, item string) {
	title := d.renderer.Render(t, params)

	person := models.PersonClient
	if registry.ResolvePerson(t.Scope, m.Person) == registry.PersonSpouse {
		person = models.PersonSpouse
	}

	var details map[string]string
	for k, p := range params {
		if registry.IsImplicitParam(k) {
			continue
		}
		if details == nil {
			details = map[string]string{}
		}
		details[k] = p.Value.He
	}

	r.requirements = append(r.requirements, models.DocumentRequirement{
		TemplateID: t.ID,
		Type:       d.reg.ExternalType(t.ID),
		Category:   t.Category,
		Person:     person,
		TitleHe:    title.He,
		TitleEn:    title.En,
		Status:     models.StatusRequiredMissing,
		MappingID:  m.ID,
		Item:       item,
		Details:    details,
	})
}

func (d *Deriver) warn(r *run, w models.Warning) {
	r.warnings = append(r.warnings, w)
	d.logger.Warn("requirement skipped", map[string]interface{}{
		"code":       string(w.Code),
		"mappingId":  w.MappingID,
		"templateId": w.TemplateID,
		"item":       w.Item,
	})
}

func matchVariant(variants []registry.ItemVariant, item string) *registry.ItemVariant {
	folded := answers.Fold(item)
	for i := range variants {
		for _, match := range variants[i].Match {
			if answers.Fold(match) == folded {
				return &variants[i]
			}
		}
	}
	return nil
}

func hasParam(t registry.DocumentTemplate, key string) bool {
	for _, p := range t.DetailParams {
		if p.Key == key {
			return true
		}
	}
	return false
}

// IdentityKey is the dedup identity of a requirement: template, person and
// the normalized detail payload.
func IdentityKey(req models.DocumentRequirement) string {
	keys := make([]string, 0, len(req.Details))
	for k := range req.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(req.TemplateID)
	b.WriteByte('|')
	b.WriteString(string(req.Person))
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(answers.Fold(req.Details[k]))
	}
	return b.String()
}
