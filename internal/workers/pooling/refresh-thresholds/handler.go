// internal/workers/pooling/refresh-thresholds/handler.go
package refreshthresholds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"

	"tranche-workers/internal/common/errors"
	"tranche-workers/internal/common/logger"
	"tranche-workers/internal/common/metrics"
	"tranche-workers/internal/common/observability"
	"tranche-workers/internal/models"
	"tranche-workers/internal/store"
)

const (
	TaskType = "refresh-thresholds"
)

// ThresholdCache is the part of the threshold store this worker drives.
type ThresholdCache interface {
	Invalidate(ctx context.Context, version string) error
	LatestVersion(ctx context.Context) (string, error)
	Get(ctx context.Context, version string) (*models.ThresholdConfig, error)
}

type Handler struct {
	config       *Config
	cache        ThresholdCache
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	obs          *observability.Observability
	now          func() time.Time
}

func NewHandler(config *Config, cache ThresholdCache, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		cache:        cache,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
		now:          time.Now,
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

	ctx, span := h.obs.StartSpan(ctx, "job."+TaskType, attribute.Int64("job_key", job.Key))
	status := "completed"
	defer func() {
		h.obs.RecordJobProcessed(ctx, TaskType, status)
		h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), status)
		span.End()
	}()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		status = "failed"
		h.failJob(ctx, client, job, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		status = "failed"
		h.failJob(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := h.cache.Invalidate(ctx, input.Version); err != nil {
		return nil, err
	}
	metrics.ThresholdInvalidations.WithLabelValues(store.TriggerJob).Inc()

	latest, err := h.cache.LatestVersion(ctx)
	if err != nil {
		return nil, err
	}

	output := &Output{
		Invalidated:   input.Version,
		LatestVersion: latest,
		RefreshedAt:   h.now().UTC(),
	}
	if output.Invalidated == "" {
		output.Invalidated = "all"
	}

	if h.config.Warm {
		cfg, err := h.cache.Get(ctx, input.Version)
		if err != nil {
			return nil, err
		}
		output.LoadedVersion = cfg.VersionOrDefault()
	}

	h.logger.Info("threshold cache refreshed", map[string]interface{}{
		"invalidated":   output.Invalidated,
		"latestVersion": output.LatestVersion,
		"loadedVersion": output.LoadedVersion,
	})
	return output, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errors.CodeOf(err)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

// WithObservability records job spans and counters on o.
func (h *Handler) WithObservability(o *observability.Observability) *Handler {
	h.obs = o
	return h
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
