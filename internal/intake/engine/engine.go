// internal/intake/engine/engine.go
package engine

import (
	"fmt"
	"runtime/debug"

	"annual-reports-workers/internal/common/logger"
	"annual-reports-workers/internal/intake/answers"
	"annual-reports-workers/internal/intake/derive"
	"annual-reports-workers/internal/intake/rules"
	"annual-reports-workers/internal/models"
	"annual-reports-workers/pkg/registry"

	"github.com/google/uuid"
)

type Options struct {
	DisableBusinessRules bool
}

// Engine composes normalization, derivation, post-processing and key
// assignment over one registry snapshot. It keeps no per-run state.
type Engine struct {
	reg        *registry.Registry
	normalizer *answers.Normalizer
	deriver    *derive.Deriver
	rules      rules.Processor
	logger     logger.Logger
}

func New(reg *registry.Registry, log logger.Logger, opts Options) *Engine {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	e := &Engine{
		reg:        reg,
		normalizer: answers.NewNormalizer(reg),
		deriver:    derive.New(reg, log),
		logger:     log,
	}
	if !opts.DisableBusinessRules {
		e.rules = rules.NewBusinessRules(reg, log)
	}
	return e
}

func (e *Engine) Registry() *registry.Registry { return e.reg }

// RunOptions are per-submission overrides.
type RunOptions struct {
	Year string
}

type Result struct {
	RunID           string                       `json:"runId"`
	RegistryVersion string                       `json:"registryVersion"`
	System          answers.SystemFields         `json:"systemFields"`
	Answers         answers.Map                  `json:"-"`
	Requirements    []models.DocumentRequirement `json:"requirements"`
	Warnings        []models.Warning             `json:"warnings"`
	Degraded        bool                         `json:"degraded"`
}

// Run derives the requirement list of one submission. It never panics: a
// failure mid-run returns what was produced so far with an ENGINE_PANIC
// warning.
func (e *Engine) Run(sub models.Submission, opts RunOptions) (res Result) {
	res = Result{
		RunID:           uuid.NewString(),
		RegistryVersion: e.reg.Version(),
		Requirements:    []models.DocumentRequirement{},
		Warnings:        []models.Warning{},
	}
	log := e.logger.With(map[string]interface{}{
		"runId":           res.RunID,
		"registryVersion": res.RegistryVersion,
	})

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("derivation panicked", map[string]interface{}{
				"panic": fmt.Sprint(rec),
				"stack": string(debug.Stack()),
			})
			res.Warnings = append(res.Warnings, models.Warning{
				Code:    models.WarningEnginePanic,
				Message: fmt.Sprintf("derivation aborted: %v", rec),
			})
			res.Degraded = true
		}
	}()

	ans, lang := e.normalizer.Normalize(sub.Fields)
	res.Answers = ans
	res.System = e.normalizer.SystemFields(sub, ans, lang)
	if opts.Year != "" {
		res.System.Year = opts.Year
	}

	names := e.normalizer.ResolveNames(ans)
	raw, warnings := e.deriver.Derive(ans, derive.Context{
		Year:   res.System.Year,
		Client: names.Client,
		Spouse: names.Spouse,
	})
	res.Requirements = raw
	res.Warnings = append(res.Warnings, warnings...)

	outcome := rules.Apply(e.rules, raw, ans, log)
	res.Requirements = outcome.Requirements
	res.Warnings = append(res.Warnings, outcome.Warnings...)
	res.Degraded = outcome.Degraded

	AssignKeys(e.reg, res.System.ReportID, res.Requirements)

	log.Info("requirements derived", map[string]interface{}{
		"reportId":     res.System.ReportID,
		"language":     string(lang),
		"answers":      len(ans),
		"requirements": len(res.Requirements),
		"warnings":     len(res.Warnings),
		"degraded":     res.Degraded,
	})
	return res
}
