// internal/pooling/rules/debt.go
package rules

import "tranche-workers/internal/models"

const (
	CriterionDebt Criterion = "Debt Analysis"

	LowDebt      Suboption = "Low Debt"
	ModerateDebt Suboption = "Moderate Debt"
	HighDebt     Suboption = "High Debt"
)

func registerDebt(r *Registry) {
	g := models.GroupDebt

	r.mustRegister(CriterionDebt, LowDebt, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		return l.DebtToIncomeRatio <= t.Value(g, string(LowDebt), "max", 30)
	})
	r.mustRegister(CriterionDebt, ModerateDebt, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		s := string(ModerateDebt)
		return l.DebtToIncomeRatio > t.Value(g, s, "min", 30) && l.DebtToIncomeRatio <= t.Value(g, s, "max", 50)
	})
	r.mustRegister(CriterionDebt, HighDebt, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		return l.DebtToIncomeRatio > t.Value(g, string(HighDebt), "min", 50) || l.PreviousLoanDefaults != 0
	})
}
