// internal/allocation/service_test.go
package allocation

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tranche-workers/internal/common/errors"
	"tranche-workers/internal/common/logger"
	"tranche-workers/internal/models"
	"tranche-workers/internal/pooling/rules"
)

// ==========================
// Test Helper Functions
// ==========================

type MockLoanSource struct {
	mock.Mock
}

func (m *MockLoanSource) Snapshot(ctx context.Context) ([]models.RawLoan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RawLoan), args.Error(1)
}

type MockThresholds struct {
	mock.Mock
}

func (m *MockThresholds) Get(ctx context.Context, version string) (*models.ThresholdConfig, error) {
	args := m.Called(ctx, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ThresholdConfig), args.Error(1)
}

type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Predict(ctx context.Context, loans []*models.LoanRecord) ([]float64, error) {
	args := m.Called(ctx, loans)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyAllocation(ctx context.Context, runID string, result *models.AllocationResult) error {
	return m.Called(ctx, runID, result).Error(0)
}

func rawLoan(id string, amount, risk float64) models.RawLoan {
	return models.RawLoan{
		models.FieldID:                     id,
		models.FieldLoanAmount:             amount,
		models.FieldLoanDuration:           6.0,
		models.FieldCreditScore:            700.0,
		models.FieldOpenCreditLines:        4.0,
		models.FieldCreditInquiries:        1.0,
		models.FieldCreditHistoryLength:    8.0,
		models.FieldDebtToIncomeRatio:      20.0,
		models.FieldTotalDebtToIncomeRatio: 35.0,
		models.FieldSavingsAccountBalance:  1000.0,
		models.FieldCheckingAccountBalance: 500.0,
		models.FieldMonthlyIncome:          4000.0,
		models.FieldAnnualIncome:           48000.0,
		models.FieldMonthlyLoanPayment:     300.0,
		models.FieldNumberOfDependents:     0.0,
		models.FieldAge:                    40.0,
		models.FieldPreviousLoanDefaults:   0.0,
		models.FieldBankruptcyHistory:      0.0,
		models.FieldEmploymentStatus:       "Employed",
		models.FieldRiskScore:              risk,
	}
}

func exampleSnapshot() []models.RawLoan {
	return []models.RawLoan{
		rawLoan("A", 1000, 10),
		rawLoan("B", 2000, 20),
		rawLoan("C", 500, 90),
	}
}

func shortTermRequest(budget float64) Request {
	return Request{
		Criterion:      string(rules.CriterionDuration),
		Suboption:      string(rules.ShortTerm),
		InvestorBudget: budget,
	}
}

func assertCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok, "%v", err)
	assert.Equal(t, code, stdErr.Code)
}

// ==========================
// Run
// ==========================

func TestService_Run_StoredSnapshot(t *testing.T) {
	ctx := context.Background()
	loans := new(MockLoanSource)
	loans.On("Snapshot", mock.Anything).Return(exampleSnapshot(), nil)
	thresholds := new(MockThresholds)
	thresholds.On("Get", mock.Anything, "").Return(&models.ThresholdConfig{Version: "v7"}, nil)
	notifier := new(MockNotifier)
	notifier.On("NotifyAllocation", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)

	svc := NewService(Dependencies{
		Loans:      loans,
		Thresholds: thresholds,
		Notifier:   notifier,
		Logger:     logger.NewTestLogger(t),
	})

	resp, err := svc.Run(ctx, shortTermRequest(1500))
	require.NoError(t, err)

	_, err = uuid.Parse(resp.RunID)
	assert.NoError(t, err)
	assert.False(t, resp.CompletedAt.IsZero())
	assert.Equal(t, "v7", resp.Result.ThresholdVersion)

	senior := resp.Result.Tranches[models.TrancheSenior]
	assert.Equal(t, []string{"A"}, senior.LoanIDs)
	assert.Equal(t, 1000.0, senior.BudgetSpent)
	assert.Equal(t, []string{"C"}, resp.Result.Tranches[models.TrancheEquity].LoanIDs)
	assert.Equal(t, 2, resp.Result.TotalAllocated())

	loans.AssertExpectations(t)
	thresholds.AssertExpectations(t)
	notifier.AssertCalled(t, "NotifyAllocation", mock.Anything, resp.RunID, resp.Result)
}

func TestService_Run_InlineSnapshot(t *testing.T) {
	loans := new(MockLoanSource)
	svc := NewService(Dependencies{Loans: loans, Logger: logger.NewTestLogger(t)})

	req := shortTermRequest(10000)
	req.Loans = []models.RawLoan{rawLoan("X", 800, 15)}

	resp, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, resp.Result.Tranches[models.TrancheSenior].LoanIDs)
	assert.Equal(t, "default", resp.Result.ThresholdVersion)
	loans.AssertNotCalled(t, "Snapshot", mock.Anything)
}

func TestService_Run_EmptyPool(t *testing.T) {
	svc := NewService(Dependencies{Logger: logger.NewTestLogger(t)})

	req := Request{
		Criterion:      string(rules.CriterionDuration),
		Suboption:      string(rules.LongTerm),
		InvestorBudget: 1000,
		Loans:          exampleSnapshot(),
	}
	resp, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.NoLoansMessage, resp.Result.Message)
	assert.Len(t, resp.Result.Details(), 4)
}

func TestService_Run_Scoring(t *testing.T) {
	scorer := new(MockScorer)
	scorer.On("Predict", mock.Anything, mock.MatchedBy(func(l []*models.LoanRecord) bool {
		return len(l) == 3 && l[0].ID == "A"
	})).Return([]float64{95, 95, 95}, nil)

	svc := NewService(Dependencies{Scorer: scorer, Logger: logger.NewTestLogger(t)})

	req := shortTermRequest(10000)
	req.Loans = exampleSnapshot()
	resp, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Zero(t, resp.Result.Tranches[models.TrancheSenior].LoansAllocated)
	assert.Equal(t, 3, resp.Result.Tranches[models.TrancheEquity].LoansAllocated)
	_, touched := req.Loans[0][models.FieldPredictedRiskScore]
	assert.False(t, touched, "caller rows must not be modified")
	scorer.AssertExpectations(t)
}

func TestService_Run_NotificationFailureKeepsResult(t *testing.T) {
	notifier := new(MockNotifier)
	notifier.On("NotifyAllocation", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.NewNotificationSendFailedError("sns", stderrors.New("throttled")))

	svc := NewService(Dependencies{Notifier: notifier, Logger: logger.NewTestLogger(t)})
	req := shortTermRequest(1500)
	req.Loans = exampleSnapshot()

	resp, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Result.TotalAllocated())
	notifier.AssertExpectations(t)
}

func TestService_Run_Errors(t *testing.T) {
	tooMany := []models.RawLoan{rawLoan("A", 1, 1), rawLoan("B", 1, 1), rawLoan("C", 1, 1)}

	tests := []struct {
		name     string
		req      func() Request
		deps     func() Dependencies
		wantCode errors.ErrorCode
	}{
		{
			name:     "negative budget",
			req:      func() Request { return shortTermRequest(-5) },
			deps:     func() Dependencies { return Dependencies{} },
			wantCode: errors.ErrCodeInvalidBudget,
		},
		{
			name:     "NaN budget",
			req:      func() Request { return shortTermRequest(math.NaN()) },
			deps:     func() Dependencies { return Dependencies{} },
			wantCode: errors.ErrCodeInvalidBudget,
		},
		{
			name: "unknown criterion",
			req: func() Request {
				return Request{Criterion: "Weather", Suboption: "Sunny", InvestorBudget: 10}
			},
			deps:     func() Dependencies { return Dependencies{} },
			wantCode: errors.ErrCodeInvalidSelector,
		},
		{
			name: "unknown suboption",
			req: func() Request {
				return Request{Criterion: string(rules.CriterionAge), Suboption: "Teenagers", InvestorBudget: 10}
			},
			deps:     func() Dependencies { return Dependencies{} },
			wantCode: errors.ErrCodeInvalidSelector,
		},
		{
			name: "unknown threshold version",
			req: func() Request {
				r := shortTermRequest(10)
				r.ThresholdVersion = "v404"
				return r
			},
			deps: func() Dependencies {
				th := new(MockThresholds)
				th.On("Get", mock.Anything, "v404").Return(nil, errors.NewThresholdConfigNotFoundError("v404"))
				return Dependencies{Thresholds: th}
			},
			wantCode: errors.ErrCodeThresholdConfigNotFound,
		},
		{
			name: "inline loan without id",
			req: func() Request {
				r := shortTermRequest(10)
				r.Loans = []models.RawLoan{{models.FieldLoanAmount: 10.0}}
				return r
			},
			deps:     func() Dependencies { return Dependencies{} },
			wantCode: errors.ErrCodeSnapshotValidationFailed,
		},
		{
			name: "inline snapshot too large",
			req: func() Request {
				r := shortTermRequest(10)
				r.Loans = tooMany
				return r
			},
			deps:     func() Dependencies { return Dependencies{MaxSnapshotSize: 2} },
			wantCode: errors.ErrCodeSnapshotValidationFailed,
		},
		{
			name:     "no loans and no store",
			req:      func() Request { return shortTermRequest(10) },
			deps:     func() Dependencies { return Dependencies{} },
			wantCode: errors.ErrCodeInvalidInput,
		},
		{
			name: "snapshot query fails",
			req:  func() Request { return shortTermRequest(10) },
			deps: func() Dependencies {
				src := new(MockLoanSource)
				src.On("Snapshot", mock.Anything).Return(nil, errors.NewLoanSnapshotQueryFailedError(stderrors.New("reset")))
				return Dependencies{Loans: src}
			},
			wantCode: errors.ErrCodeLoanSnapshotQueryFailed,
		},
		{
			name: "scoring fails",
			req: func() Request {
				r := shortTermRequest(10)
				r.Loans = exampleSnapshot()
				return r
			},
			deps: func() Dependencies {
				sc := new(MockScorer)
				sc.On("Predict", mock.Anything, mock.Anything).Return(nil, errors.NewScoringTimeoutError())
				return Dependencies{Scorer: sc}
			},
			wantCode: errors.ErrCodeScoringTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := tt.deps()
			deps.Logger = logger.NewTestLogger(t)
			_, err := NewService(deps).Run(context.Background(), tt.req())
			require.Error(t, err)
			assertCode(t, err, tt.wantCode)
		})
	}
}

func TestService_Criteria(t *testing.T) {
	catalog := NewService(Dependencies{}).Criteria()
	assert.Contains(t, catalog, string(rules.CriterionDuration))
	assert.Contains(t, catalog[string(rules.CriterionDuration)], string(rules.ShortTerm))
	assert.Contains(t, catalog, string(rules.CriterionAge))
}
