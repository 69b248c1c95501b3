// internal/workers/pooling/allocate-tranches/handler.go
package allocatetranches

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"

	"tranche-workers/internal/allocation"
	"tranche-workers/internal/common/errors"
	"tranche-workers/internal/common/logger"
	"tranche-workers/internal/common/metrics"
	"tranche-workers/internal/common/observability"
	"tranche-workers/internal/common/validation"
)

const (
	TaskType = "allocate-tranches"
)

// Allocator runs one allocation.
type Allocator interface {
	Run(ctx context.Context, req allocation.Request) (*allocation.Response, error)
}

type Handler struct {
	config       *Config
	allocator    Allocator
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	obs          *observability.Observability
}

func NewHandler(config *Config, allocator Allocator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		allocator:    allocator,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
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

	input, err := h.parseInput(job)
	if err != nil {
		status = "failed"
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		status = "failed"
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse job variables: %v", err))
	}

	result, err := validation.ValidateInput(variables, validation.AllocationRequestSchema())
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !result.Valid {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("validation errors: %v", result.GetErrorMessages()))
	}

	// Loan ids may be integers beyond float64 precision.
	var input Input
	dec := json.NewDecoder(strings.NewReader(job.Variables))
	dec.UseNumber()
	if err := dec.Decode(&input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input cannot be nil")
	}

	resp, err := h.allocator.Run(ctx, allocation.Request{
		Criterion:        input.Criterion,
		Suboption:        input.Suboption,
		InvestorBudget:   input.InvestorBudget,
		ThresholdVersion: input.ThresholdVersion,
		Loans:            input.Loans,
	})
	if err != nil {
		return nil, err
	}

	result := resp.Result
	message := result.Message
	if message == "" {
		message = fmt.Sprintf("Allocated %d loans for %s / %s", result.TotalAllocated(), result.Criterion, result.Suboption)
	}

	return &Output{
		RunID:            resp.RunID,
		Message:          message,
		ThresholdVersion: result.ThresholdVersion,
		LoansAllocated:   result.TotalAllocated(),
		TrancheDetails:   result.Details(),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":         job.Key,
		"runId":          output.RunID,
		"loansAllocated": output.LoansAllocated,
	})
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
