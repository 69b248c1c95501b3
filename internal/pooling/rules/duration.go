// internal/pooling/rules/duration.go
package rules

import "tranche-workers/internal/models"

const (
	CriterionDuration Criterion = "Duration"

	ShortTerm  Suboption = "Short-Term"
	MediumTerm Suboption = "Medium-Term"
	LongTerm   Suboption = "Long-Term"
)

func registerDuration(r *Registry) {
	g := models.GroupDuration

	r.mustRegister(CriterionDuration, ShortTerm, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		return l.LoanDuration <= t.Value(g, string(ShortTerm), "max", 12)
	})
	r.mustRegister(CriterionDuration, MediumTerm, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		return l.LoanDuration > t.Value(g, string(MediumTerm), "min", 12) &&
			l.LoanDuration <= t.Value(g, string(MediumTerm), "max", 60)
	})
	r.mustRegister(CriterionDuration, LongTerm, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		return l.LoanDuration > t.Value(g, string(LongTerm), "min", 60)
	})
}
