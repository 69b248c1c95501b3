// internal/pooling/rules/credit.go
package rules

import "tranche-workers/internal/models"

const (
	CriterionCreditworthiness Criterion = "Creditworthiness"

	CreditExcellent Suboption = "Excellent"
	CreditGood      Suboption = "Good"
	CreditFair      Suboption = "Fair"
	CreditPoor      Suboption = "Poor"
)

func registerCreditworthiness(r *Registry) {
	g := models.GroupCreditworthiness

	r.mustRegister(CriterionCreditworthiness, CreditExcellent, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		s := string(CreditExcellent)
		lines := l.NumberOfOpenCreditLines
		ok := l.CreditScore >= t.Value(g, s, "score_min", 800) ||
			l.LengthOfCreditHistory > t.Value(g, s, "history_min", 10) ||
			(lines >= t.Value(g, s, "lines_min", 3) && lines <= t.Value(g, s, "lines_max", 7) &&
				l.NumberOfCreditInquiries <= t.Value(g, s, "inquiries_max", 2))
		return ok && l.Clean()
	})

	r.mustRegister(CriterionCreditworthiness, CreditGood, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		s := string(CreditGood)
		lines := l.NumberOfOpenCreditLines
		ok := (l.CreditScore >= t.Value(g, s, "score_min", 700) && l.CreditScore < t.Value(g, s, "score_max", 800)) ||
			l.LengthOfCreditHistory >= t.Value(g, s, "history_min", 7) ||
			(lines >= t.Value(g, s, "lines_min", 3) && lines <= t.Value(g, s, "lines_max", 12) &&
				l.NumberOfCreditInquiries <= t.Value(g, s, "inquiries_max", 4))
		return ok && l.Clean()
	})

	r.mustRegister(CriterionCreditworthiness, CreditFair, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		s := string(CreditFair)
		ok := (l.CreditScore >= t.Value(g, s, "score_min", 600) && l.CreditScore < t.Value(g, s, "score_max", 700)) ||
			(l.LengthOfCreditHistory >= t.Value(g, s, "history_min", 3) && l.LengthOfCreditHistory <= t.Value(g, s, "history_max", 6)) ||
			l.NumberOfOpenCreditLines > t.Value(g, s, "lines_above", 12) ||
			l.NumberOfCreditInquiries > t.Value(g, s, "inquiries_above", 4)
		return ok && l.Clean()
	})

	r.mustRegister(CriterionCreditworthiness, CreditPoor, func(l *models.LoanRecord, t *models.ThresholdConfig) bool {
		s := string(CreditPoor)
		return l.CreditScore < t.Value(g, s, "score_max", 600) ||
			l.LengthOfCreditHistory < t.Value(g, s, "history_max", 3) ||
			l.NumberOfCreditInquiries > t.Value(g, s, "inquiries_above", 5) ||
			!l.Clean()
	})
}
