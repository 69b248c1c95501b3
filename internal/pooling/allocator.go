// internal/pooling/allocator.go
package pooling

import (
	"sort"

	"github.com/shopspring/decimal"

	"tranche-workers/internal/models"
)

// Admit orders loans by (effective risk, principal) ascending and admits the
// longest prefix whose principal sum stays within budget. It stops at the
// first loan that would overflow, even if a later, smaller one would fit.
// A budget <= 0 admits nothing. The input slice is left untouched.
func Admit(loans []*models.LoanRecord, budget float64) ([]*models.LoanRecord, float64) {
	admitted := make([]*models.LoanRecord, 0)
	if len(loans) == 0 || !(budget > 0) {
		return admitted, 0
	}

	ordered := make([]*models.LoanRecord, len(loans))
	copy(ordered, loans)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := ordered[i].EffectiveRisk(), ordered[j].EffectiveRisk()
		if ri != rj {
			return ri < rj
		}
		return ordered[i].LoanAmount < ordered[j].LoanAmount
	})

	limit := decimal.NewFromFloat(budget)
	spent := decimal.Zero
	for _, l := range ordered {
		next := spent.Add(decimal.NewFromFloat(l.LoanAmount))
		if next.GreaterThan(limit) {
			break
		}
		spent = next
		admitted = append(admitted, l)
	}

	total, _ := spent.Float64()
	return admitted, total
}
