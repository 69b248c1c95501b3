// internal/workers/pooling/group-loan-pools/handler_test.go
package grouploanpools

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tranche-workers/internal/common/errors"
	"tranche-workers/internal/common/logger"
	"tranche-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeLoans struct {
	rows      []models.RawLoan
	err       error
	byIDsCall []string
}

func (f *fakeLoans) Snapshot(_ context.Context) ([]models.RawLoan, error) {
	return f.rows, f.err
}

func (f *fakeLoans) ByIDs(_ context.Context, ids []string) ([]models.RawLoan, error) {
	f.byIDsCall = ids
	if f.err != nil {
		return nil, f.err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.RawLoan
	for _, r := range f.rows {
		if want[r[models.FieldID].(string)] {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakePools struct {
	saved []models.RiskPool
	err   error
}

func (f *fakePools) SavePools(_ context.Context, pools []models.RiskPool) ([]models.RiskPool, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.RiskPool, len(pools))
	for i, p := range pools {
		p.ID = p.Name + "-id"
		out[i] = p
	}
	f.saved = out
	return out, nil
}

type fakeScorer struct {
	scores []float64
	err    error
}

func (f *fakeScorer) Predict(_ context.Context, loans []*models.LoanRecord) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.scores[:len(loans)], nil
}

func loan(id string, risk interface{}) models.RawLoan {
	row := models.RawLoan{
		models.FieldID:         id,
		models.FieldLoanAmount: 1000.0,
	}
	if risk != nil {
		row[models.FieldRiskScore] = risk
	}
	return row
}

func testRows() []models.RawLoan {
	return []models.RawLoan{
		loan("A", 12.0),
		loan("B", 27.5),
		loan("C", nil),
		loan("D", 19.9),
	}
}

func createTestHandler(t *testing.T, loans LoanReader, pools PoolWriter, scorer *fakeScorer) *Handler {
	cfg := &Config{Timeout: 5 * time.Second}
	if scorer == nil {
		return NewHandler(cfg, loans, pools, nil, logger.NewTestLogger(t))
	}
	return NewHandler(cfg, loans, pools, scorer, logger.NewTestLogger(t))
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_WholeSnapshot(t *testing.T) {
	pools := &fakePools{}
	h := createTestHandler(t, &fakeLoans{rows: testRows()}, pools, nil)

	output, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)

	require.Equal(t, 2, output.PoolCount)
	assert.Equal(t, "Risk-10", output.Pools[0].Name)
	assert.Equal(t, []string{"A", "D"}, output.Pools[0].LoanIDs)
	assert.Equal(t, "Risk-20", output.Pools[1].Name)
	assert.Equal(t, 20.0, output.Pools[1].LowerRisk)
	assert.Equal(t, "Risk-20-id", output.Pools[1].ID)
	assert.Equal(t, 3, output.LoansPooled)
	assert.Equal(t, []string{"C"}, output.SkippedLoanIDs)
	assert.Nil(t, output.MissingLoanIDs)
	assert.Equal(t, pools.saved, output.Pools)
}

func TestHandler_Execute_SelectedLoans(t *testing.T) {
	loans := &fakeLoans{rows: testRows()}
	h := createTestHandler(t, loans, &fakePools{}, nil)

	output, err := h.Execute(context.Background(), &Input{LoanIDs: []string{"B", "Z"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "Z"}, loans.byIDsCall)
	require.Equal(t, 1, output.PoolCount)
	assert.Equal(t, []string{"B"}, output.Pools[0].LoanIDs)
	assert.Equal(t, []string{"Z"}, output.MissingLoanIDs)
	assert.Empty(t, output.SkippedLoanIDs)
}

func TestHandler_Execute_PredictedScoresWin(t *testing.T) {
	scorer := &fakeScorer{scores: []float64{55, 55, 55, 71}}
	h := createTestHandler(t, &fakeLoans{rows: testRows()}, &fakePools{}, scorer)

	output, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)

	require.Equal(t, 2, output.PoolCount)
	assert.Equal(t, "Risk-50", output.Pools[0].Name)
	assert.Equal(t, []string{"A", "B", "C"}, output.Pools[0].LoanIDs)
	assert.Equal(t, "Risk-70", output.Pools[1].Name)
	assert.Empty(t, output.SkippedLoanIDs)
}

func TestHandler_Execute_EmptyStore(t *testing.T) {
	h := createTestHandler(t, &fakeLoans{}, &fakePools{}, nil)

	output, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Zero(t, output.PoolCount)
	assert.Empty(t, output.Pools)
	assert.NotNil(t, output.SkippedLoanIDs)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		loans    *fakeLoans
		pools    *fakePools
		scorer   *fakeScorer
		input    *Input
		wantCode string
	}{
		{
			name:     "nil input",
			loans:    &fakeLoans{},
			pools:    &fakePools{},
			wantCode: "INVALID_INPUT",
		},
		{
			name:     "snapshot query fails",
			loans:    &fakeLoans{err: errors.NewLoanSnapshotQueryFailedError(stderrors.New("reset"))},
			pools:    &fakePools{},
			input:    &Input{},
			wantCode: "LOAN_SNAPSHOT_QUERY_FAILED",
		},
		{
			name:     "duplicate ids",
			loans:    &fakeLoans{rows: []models.RawLoan{loan("A", 1.0), loan("A", 2.0)}},
			pools:    &fakePools{},
			input:    &Input{},
			wantCode: "INVALID_SNAPSHOT",
		},
		{
			name:     "insert fails",
			loans:    &fakeLoans{rows: testRows()},
			pools:    &fakePools{err: errors.NewPoolInsertFailedError(stderrors.New("unique violation"))},
			input:    &Input{},
			wantCode: "POOL_INSERT_FAILED",
		},
		{
			name:     "scoring fails",
			loans:    &fakeLoans{rows: testRows()},
			pools:    &fakePools{},
			scorer:   &fakeScorer{err: errors.NewScoringFailedError(stderrors.New("503"))},
			input:    &Input{},
			wantCode: "SCORING_FAILED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, tt.loans, tt.pools, tt.scorer)
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
		})
	}
}
