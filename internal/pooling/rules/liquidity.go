// internal/pooling/rules/liquidity.go
package rules

import "tranche-workers/internal/models"

const (
	CriterionLiquidity Criterion = "Liquidity"

	HighLiquidity   Suboption = "High Liquidity"
	MediumLiquidity Suboption = "Medium Liquidity"
	LowLiquidity    Suboption = "Low Liquidity"
)

// Missing ratios read as +Inf, so loans without a usable principal land in
// High Liquidity and never in Low.
func registerLiquidity(r *Registry) {
	g := models.GroupLiquidity

	r.mustRegister(CriterionLiquidity, HighLiquidity, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		s := string(HighLiquidity)
		return l.LiquidityRatio() > t.Value(g, s, "liquidity_min", 1) ||
			l.RelativeRatio() >= t.Value(g, s, "relative_min", 3)
	})
	r.mustRegister(CriterionLiquidity, MediumLiquidity, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		s := string(MediumLiquidity)
		rel := l.RelativeRatio()
		return (l.LiquidityRatio() > t.Value(g, s, "liquidity_min", 0.5) || rel >= t.Value(g, s, "relative_min", 2)) &&
			rel < t.Value(g, s, "relative_max", 3)
	})
	r.mustRegister(CriterionLiquidity, LowLiquidity, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		s := string(LowLiquidity)
		return l.LiquidityRatio() <= t.Value(g, s, "liquidity_max", 0.5) ||
			l.RelativeRatio() <= t.Value(g, s, "relative_max", 1)
	})
}
