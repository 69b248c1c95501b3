// internal/pooling/rules/liabilities.go
package rules

import "tranche-workers/internal/models"

const (
	CriterionLiabilities Criterion = "Financial Liabilities"

	NotTrustable      Suboption = "Not Trustable"
	ModerateTrustable Suboption = "Moderate Trustable"
	HighlyTrustable   Suboption = "Highly Trustable"
)

// Tiers overlap: a low total debt-to-income marks a borrower not trustable and
// any clean record is highly trustable.
func registerLiabilities(r *Registry) {
	g := models.GroupLiabilities

	r.mustRegister(CriterionLiabilities, NotTrustable, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		return l.TotalDebtToIncomeRatio <= t.Value(g, string(NotTrustable), "max", 30) || !l.Clean()
	})
	r.mustRegister(CriterionLiabilities, ModerateTrustable, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		s := string(ModerateTrustable)
		return l.TotalDebtToIncomeRatio > t.Value(g, s, "min", 30) &&
			l.TotalDebtToIncomeRatio <= t.Value(g, s, "max", 50) &&
			l.Clean()
	})
	r.mustRegister(CriterionLiabilities, HighlyTrustable, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		return l.TotalDebtToIncomeRatio > t.Value(g, string(HighlyTrustable), "min", 50) || l.Clean()
	})
}
