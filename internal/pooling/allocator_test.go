// internal/pooling/allocator_test.go
package pooling

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tranche-workers/internal/models"
)

func loan(id string, amount, risk float64) *models.LoanRecord {
	return &models.LoanRecord{ID: id, LoanAmount: amount, RiskScore: ptr(risk)}
}

func ids(loans []*models.LoanRecord) []string {
	out := make([]string, 0, len(loans))
	for _, l := range loans {
		out = append(out, l.ID)
	}
	return out
}

func TestAdmit(t *testing.T) {
	tests := []struct {
		name      string
		loans     []*models.LoanRecord
		budget    float64
		wantIDs   []string
		wantSpent float64
	}{
		{
			name:      "empty input",
			budget:    1000,
			wantIDs:   []string{},
			wantSpent: 0,
		},
		{
			name:      "orders by risk then amount",
			loans:     []*models.LoanRecord{loan("c", 300, 20), loan("b", 200, 10), loan("a", 100, 10)},
			budget:    1000,
			wantIDs:   []string{"a", "b", "c"},
			wantSpent: 600,
		},
		{
			name:      "exact fit is admitted",
			loans:     []*models.LoanRecord{loan("a", 400, 1), loan("b", 600, 2)},
			budget:    1000,
			wantIDs:   []string{"a", "b"},
			wantSpent: 1000,
		},
		{
			name:      "stops at first overflow",
			loans:     []*models.LoanRecord{loan("a", 600, 1), loan("b", 600, 2), loan("c", 100, 3)},
			budget:    1000,
			wantIDs:   []string{"a"},
			wantSpent: 600,
		},
		{
			name:      "zero budget admits nothing",
			loans:     []*models.LoanRecord{loan("free", 0, 1)},
			budget:    0,
			wantIDs:   []string{},
			wantSpent: 0,
		},
		{
			name:      "negative budget admits nothing",
			loans:     []*models.LoanRecord{loan("a", 10, 1)},
			budget:    -5,
			wantIDs:   []string{},
			wantSpent: 0,
		},
		{
			name:      "decimal sums do not drift",
			loans:     []*models.LoanRecord{loan("a", 0.1, 1), loan("b", 0.2, 2)},
			budget:    0.3,
			wantIDs:   []string{"a", "b"},
			wantSpent: 0.3,
		},
		{
			name:      "ties keep input order",
			loans:     []*models.LoanRecord{loan("x", 100, 5), loan("y", 100, 5)},
			budget:    150,
			wantIDs:   []string{"x"},
			wantSpent: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admitted, spent := Admit(tt.loans, tt.budget)
			assert.Equal(t, tt.wantIDs, ids(admitted))
			assert.Equal(t, tt.wantSpent, spent)
		})
	}
}

func TestAdmit_DoesNotReorderInput(t *testing.T) {
	in := []*models.LoanRecord{loan("b", 100, 9), loan("a", 100, 1)}
	Admit(in, 1000)
	assert.Equal(t, []string{"b", "a"}, ids(in))
}

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		risk float64
		want models.TrancheName
	}{
		{-5, models.TrancheSenior},
		{0, models.TrancheSenior},
		{39.999, models.TrancheSenior},
		{40, models.TrancheSenior},
		{40.001, models.TrancheMezzanine},
		{45, models.TrancheMezzanine},
		{45.5, models.TrancheSubordinated},
		{50, models.TrancheSubordinated},
		{50.01, models.TrancheEquity},
		{1000, models.TrancheEquity},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(loan("x", 1, tt.risk), nil), "risk %v", tt.risk)
	}
}

func TestClassify_MissingScoreIsSenior(t *testing.T) {
	assert.Equal(t, models.TrancheSenior, Classify(&models.LoanRecord{ID: "x"}, nil))
}

func TestCutoffs_Monotonic(t *testing.T) {
	for _, c := range []Cutoffs{
		CutoffsFrom(nil),
		{Senior: 60, Mezzanine: 30, Subordinated: 90},
	} {
		prev := -1
		for risk := -10.0; risk <= 110; risk += 0.5 {
			s := c.Tranche(risk).Seniority()
			assert.GreaterOrEqual(t, s, prev, "risk %v cutoffs %+v", risk, c)
			prev = s
		}
	}
}
