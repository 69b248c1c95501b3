// internal/models/tranche.go
package models

type TrancheName string

const (
	TrancheSenior       TrancheName = "Senior Tranche"
	TrancheMezzanine    TrancheName = "Mezzanine Tranche"
	TrancheSubordinated TrancheName = "Subordinated Tranche"
	TrancheEquity       TrancheName = "Equity Tranche"
)

// TrancheOrder lists the tranches from most to least senior.
var TrancheOrder = []TrancheName{
	TrancheSenior,
	TrancheMezzanine,
	TrancheSubordinated,
	TrancheEquity,
}

// NoLoansMessage is reported when the selected pool is empty.
const NoLoansMessage = "No loans available for the selected criteria and budget."

// TrancheInfo is the static description attached to every tranche result.
type TrancheInfo struct {
	RiskCategory    string
	ReturnCategory  string
	PaymentPriority string
}

var trancheInfo = map[TrancheName]TrancheInfo{
	TrancheSenior:       {"Lowest Risk", "Lowest Return", "First to be paid"},
	TrancheMezzanine:    {"Moderate Risk", "Moderate Return", "Paid after senior tranche"},
	TrancheSubordinated: {"High Risk", "High Return", "Paid after mezzanine"},
	TrancheEquity:       {"Highest Risk", "Highest Return", "Last to be paid (if anything is left)"},
}

// Info returns the static labels of a tranche. Unknown names get empty labels.
func (n TrancheName) Info() TrancheInfo {
	return trancheInfo[n]
}

// Seniority is the zero-based position in TrancheOrder, or -1.
func (n TrancheName) Seniority() int {
	for i, t := range TrancheOrder {
		if t == n {
			return i
		}
	}
	return -1
}

type TrancheResult struct {
	TrancheName     TrancheName `json:"tranche_name"`
	RiskCategory    string      `json:"risk_category"`
	ReturnCategory  string      `json:"return_category"`
	PaymentPriority string      `json:"payment_priority"`
	LoanIDs         []string    `json:"loan_ids"`
	LoansAllocated  int         `json:"loans_allocated"`
	BudgetSpent     float64     `json:"budget_spent"`
	InvestorBudget  float64     `json:"investor_budget"`
	AverageRisk     *float64    `json:"average_risk"`
}

// NewTrancheResult returns an empty result carrying the tranche's static labels.
func NewTrancheResult(name TrancheName, budget float64) *TrancheResult {
	info := name.Info()
	return &TrancheResult{
		TrancheName:     name,
		RiskCategory:    info.RiskCategory,
		ReturnCategory:  info.ReturnCategory,
		PaymentPriority: info.PaymentPriority,
		LoanIDs:         []string{},
		InvestorBudget:  budget,
	}
}

type AllocationResult struct {
	Criterion        string                         `json:"criterion"`
	Suboption        string                         `json:"suboption"`
	ThresholdVersion string                         `json:"threshold_version"`
	InvestorBudget   float64                        `json:"investor_budget"`
	Message          string                         `json:"message,omitempty"`
	Tranches         map[TrancheName]*TrancheResult `json:"tranches"`
}

// Details returns the tranche results in seniority order. Missing tranches are
// reported empty so callers always see all four.
func (r *AllocationResult) Details() []*TrancheResult {
	out := make([]*TrancheResult, 0, len(TrancheOrder))
	for _, name := range TrancheOrder {
		if t, ok := r.Tranches[name]; ok && t != nil {
			out = append(out, t)
			continue
		}
		out = append(out, NewTrancheResult(name, r.InvestorBudget))
	}
	return out
}

// TotalAllocated sums admitted loans over every tranche.
func (r *AllocationResult) TotalAllocated() int {
	n := 0
	for _, t := range r.Tranches {
		if t != nil {
			n += t.LoansAllocated
		}
	}
	return n
}
