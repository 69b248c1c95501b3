// internal/pooling/classifier.go
package pooling

import "tranche-workers/internal/models"

// Default tranche cut points on effective risk.
const (
	DefaultSeniorCutoff       = 40.0
	DefaultMezzanineCutoff    = 45.0
	DefaultSubordinatedCutoff = 50.0
)

// Cutoffs are the upper (inclusive) risk bounds of the three senior tranches.
type Cutoffs struct {
	Senior       float64
	Mezzanine    float64
	Subordinated float64
}

// CutoffsFrom reads tranche.cutoffs from t, falling back to the defaults.
func CutoffsFrom(t *models.ThresholdConfig) Cutoffs {
	g, s := models.GroupTranche, models.SetCutoffs
	return Cutoffs{
		Senior:       t.Value(g, s, "Senior", DefaultSeniorCutoff),
		Mezzanine:    t.Value(g, s, "Mezzanine", DefaultMezzanineCutoff),
		Subordinated: t.Value(g, s, "Subordinated", DefaultSubordinatedCutoff),
	}
}

// Tranche maps a risk value to its tranche. A value equal to a cut point stays
// in the lower-risk tranche. Checks run most senior first, so the mapping stays
// monotonic even if the cut points are not ascending.
func (c Cutoffs) Tranche(risk float64) models.TrancheName {
	switch {
	case risk <= c.Senior:
		return models.TrancheSenior
	case risk <= c.Mezzanine:
		return models.TrancheMezzanine
	case risk <= c.Subordinated:
		return models.TrancheSubordinated
	default:
		return models.TrancheEquity
	}
}

// Classify assigns a loan to a tranche by its effective risk.
func Classify(loan *models.LoanRecord, t *models.ThresholdConfig) models.TrancheName {
	return CutoffsFrom(t).Tranche(loan.EffectiveRisk())
}
