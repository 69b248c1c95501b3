// internal/workers/pooling/group-loan-pools/models.go
package grouploanpools

import "tranche-workers/internal/models"

type Input struct {
	LoanIDs []string `json:"loanIds,omitempty"` // empty = whole snapshot
}

type Output struct {
	Pools          []models.RiskPool `json:"pools"`
	PoolCount      int               `json:"poolCount"`
	LoansPooled    int               `json:"loansPooled"`
	SkippedLoanIDs []string          `json:"skippedLoanIds"`
	MissingLoanIDs []string          `json:"missingLoanIds,omitempty"`
}
