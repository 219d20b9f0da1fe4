package deriverequirements

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"annual-reports-workers/internal/common/errors"
	"annual-reports-workers/internal/common/logger"
	"annual-reports-workers/internal/common/metrics"
	"annual-reports-workers/internal/common/observability"
	"annual-reports-workers/internal/common/validation"
	"annual-reports-workers/internal/intake/engine"
	"annual-reports-workers/internal/models"
	"annual-reports-workers/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "derive-document-requirements"

// RegistryProvider hands out the active registry snapshot.
type RegistryProvider interface {
	Snapshot() (*registry.Registry, error)
}

type Handler struct {
	config       *Config
	registry     RegistryProvider
	obs          *observability.Observability
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	engine       atomic.Pointer[engine.Engine]
}

func NewHandler(config *Config, provider RegistryProvider, obs *observability.Observability, log logger.Logger) *Handler {
	if config == nil {
		config = NewConfig(nil)
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		registry:     provider,
		obs:          obs,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		h.logger.Warn("submission malformed", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	raw := []byte(job.Variables)
	if strings.TrimSpace(job.Variables) == "" {
		return nil, errors.NewSubmissionError("job has no variables")
	}

	result, err := validation.ValidateJSON(GetInputSchema(), raw)
	if err != nil {
		return nil, errors.NewSubmissionError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewSubmissionError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, errors.NewSubmissionError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute derives the requirements of one submission. A nil input or one
// without a field list yields an empty degraded result; only a missing
// registry is an error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	reg, err := h.registry.Snapshot()
	if err != nil {
		return nil, err
	}

	var sub models.Submission
	ok := false
	if input != nil {
		sub, ok = input.Submission()
	}
	if !ok {
		metrics.DerivationWarnings.WithLabelValues(string(models.WarningSubmissionMalformed)).Inc()
		metrics.DegradedRuns.Inc()
		return &Output{
			Requirements:    []models.DocumentRequirement{},
			Warnings:        []models.Warning{{Code: models.WarningSubmissionMalformed, Message: "job variables do not contain a submission field list"}},
			RegistryVersion: reg.Version(),
			Degraded:        true,
		}, nil
	}

	started := time.Now()
	res := h.engineFor(reg).Run(sub, engine.RunOptions{Year: input.YearOverride()})
	h.record(ctx, res, time.Since(started))

	return &Output{
		Requirements:     res.Requirements,
		RequirementCount: len(res.Requirements),
		SystemFields:     res.System,
		Warnings:         res.Warnings,
		RunID:            res.RunID,
		RegistryVersion:  res.RegistryVersion,
		Degraded:         res.Degraded,
	}, nil
}

// engineFor reuses the engine built for the current snapshot.
func (h *Handler) engineFor(reg *registry.Registry) *engine.Engine {
	if e := h.engine.Load(); e != nil && e.Registry() == reg {
		return e
	}
	e := engine.New(reg, h.logger, engine.Options{DisableBusinessRules: h.config.DisableBusinessRules})
	h.engine.Store(e)
	return e
}

func (h *Handler) record(ctx context.Context, res engine.Result, elapsed time.Duration) {
	for _, r := range res.Requirements {
		metrics.RequirementsDerived.WithLabelValues(r.Category).Inc()
	}
	for _, w := range res.Warnings {
		metrics.DerivationWarnings.WithLabelValues(string(w.Code)).Inc()
	}
	status := "ok"
	if res.Degraded {
		metrics.DegradedRuns.Inc()
		status = "degraded"
	}
	h.obs.RecordRun(ctx, res.RegistryVersion, status, elapsed, len(res.Requirements))
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":       job.Key,
		"requirements": output.RequirementCount,
		"degraded":     output.Degraded,
	})
}
