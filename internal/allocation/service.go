// internal/allocation/service.go
package allocation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"tranche-workers/internal/common/errors"
	"tranche-workers/internal/common/logger"
	"tranche-workers/internal/common/metrics"
	"tranche-workers/internal/common/observability"
	"tranche-workers/internal/common/scoring"
	"tranche-workers/internal/common/validation"
	"tranche-workers/internal/models"
	"tranche-workers/internal/pooling"
	"tranche-workers/internal/pooling/rules"
)

// Request is one allocation run. Loans, when set, replace the stored snapshot.
type Request struct {
	Criterion        string           `json:"criterion"`
	Suboption        string           `json:"suboption"`
	InvestorBudget   float64          `json:"investorBudget"`
	ThresholdVersion string           `json:"thresholdVersion,omitempty"`
	Loans            []models.RawLoan `json:"loans,omitempty"`
}

type Response struct {
	RunID       string                   `json:"runId"`
	CompletedAt time.Time                `json:"completedAt"`
	Result      *models.AllocationResult `json:"result"`
}

type LoanSource interface {
	Snapshot(ctx context.Context) ([]models.RawLoan, error)
}

type ThresholdProvider interface {
	Get(ctx context.Context, version string) (*models.ThresholdConfig, error)
}

type Notifier interface {
	NotifyAllocation(ctx context.Context, runID string, result *models.AllocationResult) error
}

// Dependencies wires a Service. Scorer, Notifier and Observability are optional.
type Dependencies struct {
	Engine          *pooling.Engine
	Loans           LoanSource
	Thresholds      ThresholdProvider
	Scorer          scoring.Predictor
	Notifier        Notifier
	Observability   *observability.Observability
	Logger          logger.Logger
	MaxSnapshotSize int

	// DefaultThresholdVersion applies to requests that name no version.
	DefaultThresholdVersion string
}

type Service struct {
	engine     *pooling.Engine
	loans      LoanSource
	thresholds ThresholdProvider
	scorer     scoring.Predictor
	notifier   Notifier
	obs        *observability.Observability
	logger     logger.Logger
	maxLoans   int
	version    string
	now        func() time.Time
}

func NewService(deps Dependencies) *Service {
	engine := deps.Engine
	if engine == nil {
		engine = pooling.NewEngine(nil)
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		engine:     engine,
		loans:      deps.Loans,
		thresholds: deps.Thresholds,
		scorer:     deps.Scorer,
		notifier:   deps.Notifier,
		obs:        deps.Observability,
		logger:     log.WithFields(map[string]interface{}{"component": "allocation"}),
		maxLoans:   deps.MaxSnapshotSize,
		version:    deps.DefaultThresholdVersion,
		now:        time.Now,
	}
}

// Criteria maps every criterion to its suboptions.
func (s *Service) Criteria() map[string][]string {
	return s.engine.Registry().Catalog()
}

// Run validates req, resolves thresholds and the snapshot, and allocates.
func (s *Service) Run(ctx context.Context, req Request) (resp *Response, err error) {
	ctx, span := s.obs.StartSpan(ctx, "allocation.run",
		attribute.String("criterion", req.Criterion),
		attribute.String("suboption", req.Suboption),
		attribute.Float64("investor_budget", req.InvestorBudget),
	)
	defer func() {
		if err != nil {
			metrics.AllocationsTotal.WithLabelValues(req.Criterion, metrics.OutcomeError).Inc()
			s.obs.RecordAllocation(ctx, req.Criterion, metrics.OutcomeError, 0)
		}
		observability.EndSpan(span, err)
	}()

	if err := s.validate(req); err != nil {
		return nil, err
	}

	thresholds, err := s.loadThresholds(ctx, req.ThresholdVersion)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.snapshot(ctx, req.Loans)
	if err != nil {
		return nil, err
	}
	metrics.SnapshotSize.Observe(float64(len(snapshot)))

	if s.scorer != nil {
		snapshot, err = s.score(ctx, snapshot)
		if err != nil {
			return nil, err
		}
	}

	result, err := s.engine.Allocate(snapshot, thresholds,
		rules.Criterion(req.Criterion), rules.Suboption(req.Suboption), req.InvestorBudget)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.String("threshold_version", result.ThresholdVersion),
		attribute.Int("loans_allocated", result.TotalAllocated()),
	)

	metrics.ObserveAllocation(result)
	outcome := metrics.OutcomeAllocated
	if result.TotalAllocated() == 0 {
		outcome = metrics.OutcomeEmpty
	}
	s.obs.RecordAllocation(ctx, req.Criterion, outcome, result.TotalAllocated())

	s.logger.Info("allocation completed", map[string]interface{}{
		"runId":            runID,
		"criterion":        req.Criterion,
		"suboption":        req.Suboption,
		"thresholdVersion": result.ThresholdVersion,
		"snapshotSize":     len(snapshot),
		"loansAllocated":   result.TotalAllocated(),
	})

	s.notify(ctx, runID, result)

	return &Response{RunID: runID, CompletedAt: s.now().UTC(), Result: result}, nil
}

func (s *Service) validate(req Request) error {
	if math.IsNaN(req.InvestorBudget) || math.IsInf(req.InvestorBudget, 0) || req.InvestorBudget < 0 {
		return errors.NewInvalidBudgetError(req.InvestorBudget)
	}
	if !s.engine.Registry().Valid(rules.Criterion(req.Criterion), rules.Suboption(req.Suboption)) {
		return errors.NewInvalidSelectorError(req.Criterion, req.Suboption)
	}
	return nil
}

func (s *Service) loadThresholds(ctx context.Context, version string) (*models.ThresholdConfig, error) {
	if s.thresholds == nil {
		return &models.ThresholdConfig{}, nil
	}
	if version == "" {
		version = s.version
	}
	return s.thresholds.Get(ctx, version)
}

func (s *Service) snapshot(ctx context.Context, inline []models.RawLoan) ([]models.RawLoan, error) {
	if inline == nil {
		if s.loans == nil {
			return nil, errors.NewInvalidInputError("no loans supplied and no loan store configured")
		}
		return s.loans.Snapshot(ctx)
	}

	if s.maxLoans > 0 && len(inline) > s.maxLoans {
		return nil, errors.NewSnapshotValidationFailedError(
			fmt.Sprintf("snapshot has %d loans, limit is %d", len(inline), s.maxLoans))
	}
	result, err := validation.ValidateSnapshot(inline)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !result.Valid {
		return nil, errors.NewSnapshotValidationFailedError(fmt.Sprintf("%v", result.GetErrorMessages()))
	}
	return inline, nil
}

// score asks the scorer for a PredictedRiskScore per loan and returns a copy of
// snapshot carrying them. Input rows are left untouched.
func (s *Service) score(ctx context.Context, snapshot []models.RawLoan) ([]models.RawLoan, error) {
	if len(snapshot) == 0 {
		return snapshot, nil
	}
	records, err := pooling.Normalize(snapshot)
	if err != nil {
		return nil, errors.NewInvalidSnapshotError(err.Error())
	}
	predictions, err := s.scorer.Predict(ctx, records)
	if err != nil {
		return nil, err
	}

	scored := make([]models.RawLoan, len(snapshot))
	for i, row := range snapshot {
		cp := make(models.RawLoan, len(row)+1)
		for k, v := range row {
			cp[k] = v
		}
		cp[models.FieldPredictedRiskScore] = predictions[i]
		scored[i] = cp
	}
	return scored, nil
}

// notify publishes the run. A failed publish is logged; the allocation stands.
func (s *Service) notify(ctx context.Context, runID string, result *models.AllocationResult) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAllocation(ctx, runID, result); err != nil {
		s.logger.Warn("allocation notification failed", map[string]interface{}{
			"runId": runID,
			"error": err.Error(),
		})
	}
}
