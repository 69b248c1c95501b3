// internal/pooling/rules/age.go
package rules

import "tranche-workers/internal/models"

const (
	CriterionAge Criterion = "Age"

	YoungBorrowers     Suboption = "Young Borrowers"
	MidCareerBorrowers Suboption = "Mid-Career Borrowers"
	SeniorBorrowers    Suboption = "Senior Borrowers"
)

func registerAge(r *Registry) {
	g := models.GroupAge

	r.mustRegister(CriterionAge, YoungBorrowers, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		return l.Age < t.Value(g, string(YoungBorrowers), "max", 30)
	})
	r.mustRegister(CriterionAge, MidCareerBorrowers, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		s := string(MidCareerBorrowers)
		return l.Age >= t.Value(g, s, "min", 30) && l.Age <= t.Value(g, s, "max", 50)
	})
	r.mustRegister(CriterionAge, SeniorBorrowers, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		return l.Age > t.Value(g, string(SeniorBorrowers), "min", 50)
	})
}
