// internal/pooling/rules/mlrisk.go
package rules

import "tranche-workers/internal/models"

const (
	CriterionMLRisk Criterion = "ML-Based Risk"

	VeryLowRisk Suboption = "Very Low-Risk"
	LowRisk     Suboption = "Low-Risk"
	MediumRisk  Suboption = "Medium-Risk"
	HighRisk    Suboption = "High-Risk"
)

type riskTier struct {
	name       Suboption
	scoreMin   float64
	paymentMax float64
	allow      []string
}

var mlRiskTiers = []riskTier{
	{VeryLowRisk, 750, 1500, []string{"Employed"}},
	{LowRisk, 650, 2500, []string{"Employed", "Self-Employed"}},
	{MediumRisk, 550, 4000, []string{"Employed", "Self-Employed"}},
}

func (rt riskTier) match(l *models.LoanRecord, t *models.ThresholdConfig) bool {
	g, s := models.GroupMLRisk, string(rt.name)
	return l.CreditScore >= t.Value(g, s, "credit_score_min", rt.scoreMin) &&
		l.MonthlyLoanPayment <= t.Value(g, s, "monthly_payment_max", rt.paymentMax) &&
		employmentIn(l.EmploymentStatus, t.Allow(g, s, rt.allow)) &&
		l.Clean()
}

func registerMLRisk(r *Registry) {
	for _, tier := range mlRiskTiers {
		r.mustRegister(CriterionMLRisk, tier.name, tier.match)
	}
	// High-Risk is whatever none of the better tiers accepts.
	r.mustRegister(CriterionMLRisk, HighRisk, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		for _, tier := range mlRiskTiers {
			if tier.match(l, t) {
				return false
			}
		}
		return true
	})
}
