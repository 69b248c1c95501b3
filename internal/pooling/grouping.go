// internal/pooling/grouping.go
package pooling

import (
	"fmt"
	"math"
	"sort"

	"tranche-workers/internal/models"
)

// RiskBandWidth is the width of one risk pool band.
const RiskBandWidth = 10.0

// RiskBand names the band holding score, e.g. 37.5 -> ("Risk-30", 30).
func RiskBand(score float64) (string, float64) {
	lower := math.Floor(score/RiskBandWidth) * RiskBandWidth
	return fmt.Sprintf("Risk-%d", int64(lower)), lower
}

// GroupByRiskBand buckets loans into RiskBandWidth-wide pools by effective
// risk. Loans with no usable score are skipped and returned separately.
// Pools are ordered by ascending band; loan order within a pool follows input.
func GroupByRiskBand(loans []*models.LoanRecord) (pools []models.RiskPool, skipped []string) {
	index := make(map[string]int)
	for _, l := range loans {
		if !l.HasRiskScore() {
			skipped = append(skipped, l.ID)
			continue
		}
		name, lower := RiskBand(l.EffectiveRisk())
		i, ok := index[name]
		if !ok {
			i = len(pools)
			index[name] = i
			pools = append(pools, models.RiskPool{Name: name, LowerRisk: lower})
		}
		pools[i].LoanIDs = append(pools[i].LoanIDs, l.ID)
	}

	sort.SliceStable(pools, func(i, j int) bool {
		return pools[i].LowerRisk < pools[j].LowerRisk
	})
	return pools, skipped
}
