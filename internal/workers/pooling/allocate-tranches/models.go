// internal/workers/pooling/allocate-tranches/models.go
package allocatetranches

import "tranche-workers/internal/models"

type Input struct {
	Criterion        string           `json:"criterion"`
	Suboption        string           `json:"suboption"`
	InvestorBudget   float64          `json:"investorBudget"`
	ThresholdVersion string           `json:"thresholdVersion,omitempty"`
	Loans            []models.RawLoan `json:"loans,omitempty"`
}

type Output struct {
	RunID            string                  `json:"runId"`
	Message          string                  `json:"message"`
	ThresholdVersion string                  `json:"thresholdVersion"`
	LoansAllocated   int                     `json:"loansAllocated"`
	TrancheDetails   []*models.TrancheResult `json:"trancheDetails"`
}
