// internal/pooling/rules/financial.go
package rules

import "tranche-workers/internal/models"

const (
	CriterionFinancialStatus Criterion = "Financial Status"

	HighIncome   Suboption = "High Income"
	MediumIncome Suboption = "Medium Income"
	LowIncome    Suboption = "Low Income"
)

func registerFinancialStatus(r *Registry) {
	g := models.GroupFinancialStatus

	r.mustRegister(CriterionFinancialStatus, HighIncome, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		s := string(HighIncome)
		return l.IncomePerDependent() > t.Value(g, s, "min", 50000) &&
			employmentIn(l.EmploymentStatus, t.Allow(g, s, []string{"Employed"}))
	})
	r.mustRegister(CriterionFinancialStatus, MediumIncome, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		s := string(MediumIncome)
		ipd := l.IncomePerDependent()
		return ipd > t.Value(g, s, "min", 25000) && ipd <= t.Value(g, s, "max", 50000) &&
			employmentIn(l.EmploymentStatus, t.Allow(g, s, []string{"Employed", "Self Employed"}))
	})
	r.mustRegister(CriterionFinancialStatus, LowIncome, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		s := string(LowIncome)
		return l.IncomePerDependent() <= t.Value(g, s, "max", 25000) ||
			employmentIn(l.EmploymentStatus, t.Allow(g, s, []string{"Unemployed"}))
	})
}
