// internal/pooling/engine.go
package pooling

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"tranche-workers/internal/common/errors"
	"tranche-workers/internal/models"
	"tranche-workers/internal/pooling/rules"
)

// Engine pools, classifies and admits loans. It holds only its rule registry
// and is safe for concurrent use once constructed.
type Engine struct {
	registry *rules.Registry
}

// NewEngine returns an engine over registry, or over the built-in rules when
// registry is nil.
func NewEngine(registry *rules.Registry) *Engine {
	if registry == nil {
		registry = rules.Default()
	}
	return &Engine{registry: registry}
}

func (e *Engine) Registry() *rules.Registry {
	return e.registry
}

// Allocate runs one allocation over snapshot. Each tranche is filled against
// the full budget independently. An unknown criterion/suboption or an empty
// pool yields four empty tranches and NoLoansMessage.
func (e *Engine) Allocate(
	snapshot []models.RawLoan,
	thresholds *models.ThresholdConfig,
	criterion rules.Criterion,
	suboption rules.Suboption,
	budget float64,
) (*models.AllocationResult, error) {
	if math.IsNaN(budget) || math.IsInf(budget, 0) || budget < 0 {
		return nil, errors.NewInvalidBudgetError(budget)
	}

	loans, err := Normalize(snapshot)
	if err != nil {
		return nil, errors.NewInvalidSnapshotError(err.Error())
	}

	result := &models.AllocationResult{
		Criterion:        string(criterion),
		Suboption:        string(suboption),
		ThresholdVersion: thresholds.VersionOrDefault(),
		InvestorBudget:   budget,
		Tranches:         make(map[models.TrancheName]*models.TrancheResult, len(models.TrancheOrder)),
	}
	for _, name := range models.TrancheOrder {
		result.Tranches[name] = models.NewTrancheResult(name, budget)
	}

	pool := e.registry.Select(loans, criterion, suboption, thresholds)
	if len(pool) == 0 {
		result.Message = models.NoLoansMessage
		return result, nil
	}

	cutoffs := CutoffsFrom(thresholds)
	grouped := make(map[models.TrancheName][]*models.LoanRecord, len(models.TrancheOrder))
	for _, loan := range pool {
		name := cutoffs.Tranche(loan.EffectiveRisk())
		grouped[name] = append(grouped[name], loan)
	}

	for _, name := range models.TrancheOrder {
		admitted, spent := Admit(grouped[name], budget)

		tr := result.Tranches[name]
		tr.LoansAllocated = len(admitted)
		tr.BudgetSpent = spent
		tr.AverageRisk = AverageRisk(admitted)
		for _, loan := range admitted {
			tr.LoanIDs = append(tr.LoanIDs, loan.ID)
		}
	}

	return result, nil
}

// AverageRisk is the principal-weighted mean of effective risk. It is nil
// when loans is empty or the principals sum to zero.
func AverageRisk(loans []*models.LoanRecord) *float64 {
	if len(loans) == 0 {
		return nil
	}
	risks := make([]float64, len(loans))
	weights := make([]float64, len(loans))
	total := 0.0
	for i, l := range loans {
		risks[i] = l.EffectiveRisk()
		weights[i] = l.LoanAmount
		total += l.LoanAmount
	}
	if total == 0 {
		return nil
	}
	avg := stat.Mean(risks, weights)
	if math.IsNaN(avg) || math.IsInf(avg, 0) {
		return nil
	}
	return &avg
}
