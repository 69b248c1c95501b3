// internal/workers/pooling/group-loan-pools/handler.go
package grouploanpools

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
	"tranche-workers/internal/common/scoring"
	"tranche-workers/internal/models"
	"tranche-workers/internal/pooling"
)

const (
	TaskType = "group-loan-pools"
)

type LoanReader interface {
	Snapshot(ctx context.Context) ([]models.RawLoan, error)
	ByIDs(ctx context.Context, ids []string) ([]models.RawLoan, error)
}

type PoolWriter interface {
	SavePools(ctx context.Context, pools []models.RiskPool) ([]models.RiskPool, error)
}

type Handler struct {
	config       *Config
	loans        LoanReader
	pools        PoolWriter
	scorer       scoring.Predictor
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	obs          *observability.Observability
}

// NewHandler builds the handler. scorer may be nil, in which case stored
// scores decide the band.
func NewHandler(config *Config, loans LoanReader, pools PoolWriter, scorer scoring.Predictor, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		loans:        loans,
		pools:        pools,
		scorer:       scorer,
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

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input cannot be nil")
	}

	rows, err := h.load(ctx, input.LoanIDs)
	if err != nil {
		return nil, err
	}

	records, err := pooling.Normalize(rows)
	if err != nil {
		return nil, errors.NewInvalidSnapshotError(err.Error())
	}

	if h.scorer != nil && len(records) > 0 {
		predictions, err := h.scorer.Predict(ctx, records)
		if err != nil {
			return nil, err
		}
		scoring.Apply(records, predictions)
	}

	grouped, skipped := pooling.GroupByRiskBand(records)
	saved, err := h.pools.SavePools(ctx, grouped)
	if err != nil {
		return nil, err
	}

	pooled := 0
	for _, p := range saved {
		pooled += len(p.LoanIDs)
	}
	if skipped == nil {
		skipped = []string{}
	}

	output := &Output{
		Pools:          saved,
		PoolCount:      len(saved),
		LoansPooled:    pooled,
		SkippedLoanIDs: skipped,
		MissingLoanIDs: missing(input.LoanIDs, records),
	}

	h.logger.Info("loans grouped", map[string]interface{}{
		"pools":   output.PoolCount,
		"pooled":  output.LoansPooled,
		"skipped": len(output.SkippedLoanIDs),
		"missing": len(output.MissingLoanIDs),
	})
	return output, nil
}

func (h *Handler) load(ctx context.Context, ids []string) ([]models.RawLoan, error) {
	if len(ids) == 0 {
		return h.loans.Snapshot(ctx)
	}
	return h.loans.ByIDs(ctx, ids)
}

// missing lists requested ids with no stored loan, in request order.
func missing(requested []string, found []*models.LoanRecord) []string {
	if len(requested) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(found))
	for _, l := range found {
		seen[l.ID] = struct{}{}
	}
	var out []string
	for _, id := range requested {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
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
