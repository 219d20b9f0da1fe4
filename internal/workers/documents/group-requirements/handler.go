package grouprequirements

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"annual-reports-workers/internal/common/errors"
	"annual-reports-workers/internal/common/logger"
	"annual-reports-workers/internal/common/metrics"
	"annual-reports-workers/internal/intake/engine"
	"annual-reports-workers/internal/intake/render"
	"annual-reports-workers/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "group-document-requirements"

type RegistryProvider interface {
	Snapshot() (*registry.Registry, error)
}

type Handler struct {
	config       *Config
	registry     RegistryProvider
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, provider RegistryProvider, log logger.Logger) *Handler {
	if config == nil {
		config = NewConfig(nil)
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		registry:     provider,
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

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		err := errors.NewInputValidationError(fmt.Sprintf("parse input: %v", err))
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(err.Code)).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	lang := input.Language
	if lang == "" {
		lang = h.config.DefaultLanguage
	}
	if lang != "he" && lang != "en" {
		return nil, errors.NewInputValidationError(fmt.Sprintf("unsupported language %q", lang))
	}
	if input.Format != "" && input.Format != string(render.ModeHTML) && input.Format != string(render.ModePlain) {
		return nil, errors.NewInputValidationError(fmt.Sprintf("unsupported format %q", input.Format))
	}

	reg, err := h.registry.Snapshot()
	if err != nil {
		return nil, err
	}

	groups := engine.GroupByCategory(reg, input.Requirements, lang, render.ParseMode(input.Format))
	if groups == nil {
		groups = []engine.Group{}
	}
	return &Output{Groups: groups, Total: len(input.Requirements)}, nil
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
		"jobKey": job.Key,
		"groups": len(output.Groups),
	})
}
