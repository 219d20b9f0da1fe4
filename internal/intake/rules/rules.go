// internal/intake/rules/rules.go
package rules

import (
	"errors"
	"fmt"
	"strings"

	"annual-reports-workers/internal/common/logger"
	"annual-reports-workers/internal/intake/answers"
	"annual-reports-workers/internal/intake/derive"
	"annual-reports-workers/internal/intake/render"
	"annual-reports-workers/internal/models"
	"annual-reports-workers/pkg/registry"
)

var ErrRulesUnavailable = errors.New("BUSINESS_RULES_UNAVAILABLE")

// Processor post-processes a raw requirement list.
type Processor interface {
	Process(reqs []models.DocumentRequirement, ans answers.Map) ([]models.DocumentRequirement, error)
}

// BusinessRules applies, in order: identity dedup, securities issuer dedup,
// GLOBAL_SINGLE consolidation and foreign-income suppression.
type BusinessRules struct {
	reg    *registry.Registry
	logger logger.Logger
}

func NewBusinessRules(reg *registry.Registry, log logger.Logger) *BusinessRules {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &BusinessRules{reg: reg, logger: log}
}

func (p *BusinessRules) Process(reqs []models.DocumentRequirement, ans answers.Map) ([]models.DocumentRequirement, error) {
	if p == nil || p.reg == nil {
		return nil, ErrRulesUnavailable
	}

	before := len(reqs)
	out := SimpleDedup(reqs)
	out = p.dedupIssuers(out)
	out = p.consolidateSingletons(out)
	out = p.suppressForeignEvidence(out, ans)

	p.logger.Debug("business rules applied", map[string]interface{}{
		"before": before,
		"after":  len(out),
	})
	return out, nil
}

// SimpleDedup drops every requirement whose identity key was already seen.
// First occurrence wins.
func SimpleDedup(reqs []models.DocumentRequirement) []models.DocumentRequirement {
	seen := make(map[string]bool, len(reqs))
	out := make([]models.DocumentRequirement, 0, len(reqs))
	for _, r := range reqs {
		key := derive.IdentityKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func (p *BusinessRules) dedupIssuers(reqs []models.DocumentRequirement) []models.DocumentRequirement {
	prefixes := p.reg.Rules().IssuerPrefixes
	seen := map[string]bool{}
	out := make([]models.DocumentRequirement, 0, len(reqs))
	for _, r := range reqs {
		if !p.reg.IsSecuritiesTemplate(r.TemplateID) {
			out = append(out, r)
			continue
		}
		issuer := NormalizeIssuer(Issuer(r), prefixes)
		if issuer == "" {
			out = append(out, r)
			continue
		}
		if seen[issuer] {
			continue
		}
		seen[issuer] = true
		out = append(out, r)
	}
	return out
}

func (p *BusinessRules) consolidateSingletons(reqs []models.DocumentRequirement) []models.DocumentRequirement {
	counts := map[string]int{}
	for _, r := range reqs {
		if t, ok := p.reg.Template(r.TemplateID); ok && t.Scope == registry.ScopeGlobalSingle {
			counts[t.Group()]++
		}
	}

	kept := map[string]bool{}
	out := make([]models.DocumentRequirement, 0, len(reqs))
	for _, r := range reqs {
		t, ok := p.reg.Template(r.TemplateID)
		if !ok || t.Scope != registry.ScopeGlobalSingle || counts[t.Group()] < 2 {
			out = append(out, r)
			continue
		}
		group := t.Group()
		if kept[group] {
			continue
		}
		kept[group] = true

		if t.CanonicalTitleHe != "" {
			r.TitleHe = t.CanonicalTitleHe
		}
		if t.CanonicalTitleEn != "" {
			r.TitleEn = t.CanonicalTitleEn
		}
		r.Item = ""
		r.Details = nil
		out = append(out, r)
	}
	return out
}

func (p *BusinessRules) suppressForeignEvidence(reqs []models.DocumentRequirement, ans answers.Map) []models.DocumentRequirement {
	rule := p.reg.Rules().ForeignIncome
	if rule.ReturnFiledQuestion == "" || len(rule.EvidenceTemplates) == 0 {
		return reqs
	}
	v, ok := ans.Get(p.reg.QuestionKeys(rule.ReturnFiledQuestion))
	if !ok || !v.IsYes() {
		return reqs
	}

	evidence := map[string]bool{}
	for _, id := range rule.EvidenceTemplates {
		evidence[id] = true
	}
	out := make([]models.DocumentRequirement, 0, len(reqs))
	for _, r := range reqs {
		if !evidence[r.TemplateID] {
			out = append(out, r)
		}
	}
	return out
}

// Issuer returns the institution a securities requirement was issued by: the
// list item when there is one, else the last bold span of the Hebrew title.
func Issuer(r models.DocumentRequirement) string {
	if r.Item != "" {
		return r.Item
	}
	return render.LastBold(r.TitleHe)
}

// NormalizeIssuer folds case, collapses whitespace and strips each
// legal-entity prefix in list order.
func NormalizeIssuer(name string, prefixes []string) string {
	s := strings.Join(strings.Fields(answers.Fold(name)), " ")
	for _, prefix := range prefixes {
		fp := answers.Fold(prefix)
		if fp == "" {
			continue
		}
		if strings.HasPrefix(s+" ", fp+" ") {
			s = strings.TrimSpace(s[len(fp):])
		}
	}
	return s
}

// Outcome is the result of Apply.
type Outcome struct {
	Requirements []models.DocumentRequirement
	Warnings     []models.Warning
	Degraded     bool
}

// Apply runs p and falls back to SimpleDedup when p is nil, fails or panics.
func Apply(p Processor, reqs []models.DocumentRequirement, ans answers.Map, log logger.Logger) (out Outcome) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	fallback := func(reason string) Outcome {
		log.Warn("business rules unavailable, falling back to simple dedup", map[string]interface{}{
			"reason": reason,
		})
		return Outcome{
			Requirements: SimpleDedup(reqs),
			Warnings: []models.Warning{{
				Code:    models.WarningBusinessRulesFallback,
				Message: reason,
			}},
			Degraded: true,
		}
	}

	if p == nil {
		return fallback("business rules disabled")
	}

	defer func() {
		if rec := recover(); rec != nil {
			out = fallback(fmt.Sprintf("business rules panicked: %v", rec))
		}
	}()

	processed, err := p.Process(reqs, ans)
	if err != nil {
		return fallback(err.Error())
	}
	return Outcome{Requirements: processed}
}
