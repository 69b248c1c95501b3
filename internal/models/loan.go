// internal/models/loan.go
package models

import "math"

// RawLoan is one untyped snapshot row, as read from the loans table or a job payload.
type RawLoan map[string]interface{}

// Snapshot keys shared by the persistence layer, job payloads and normalization.
const (
	FieldID                       = "_id"
	FieldIDAlt                    = "id"
	FieldLoanAmount               = "LoanAmount"
	FieldLoanDuration             = "LoanDuration"
	FieldCreditScore              = "CreditScore"
	FieldOpenCreditLines          = "NumberOfOpenCreditLines"
	FieldCreditInquiries          = "NumberOfCreditInquiries"
	FieldCreditHistoryLength      = "LengthOfCreditHistory"
	FieldDebtToIncomeRatio        = "DebtToIncomeRatio"
	FieldTotalDebtToIncomeRatio   = "TotalDebtToIncomeRatio"
	FieldSavingsAccountBalance    = "SavingsAccountBalance"
	FieldCheckingAccountBalance   = "CheckingAccountBalance"
	FieldMonthlyIncome            = "MonthlyIncome"
	FieldAnnualIncome             = "AnnualIncome"
	FieldMonthlyLoanPayment       = "MonthlyLoanPayment"
	FieldNumberOfDependents       = "NumberOfDependents"
	FieldAge                      = "Age"
	FieldPreviousLoanDefaults     = "PreviousLoanDefaults"
	FieldBankruptcyHistory        = "BankruptcyHistory"
	FieldEmploymentStatus         = "EmploymentStatus"
	FieldRiskScore                = "RiskScore"
	FieldPredictedRiskScore       = "PredictedRiskScore"
	FieldPredictedRiskScoreLegacy = "Predicted_RiskScore"
)

// UnknownEmploymentStatus fills a missing employment status during normalization.
const UnknownEmploymentStatus = "Unknown"

// NumericFields lists the required numeric columns in snapshot order.
// Risk scores are optional and handled separately.
var NumericFields = []string{
	FieldLoanAmount,
	FieldLoanDuration,
	FieldCreditScore,
	FieldOpenCreditLines,
	FieldCreditInquiries,
	FieldCreditHistoryLength,
	FieldDebtToIncomeRatio,
	FieldTotalDebtToIncomeRatio,
	FieldSavingsAccountBalance,
	FieldCheckingAccountBalance,
	FieldMonthlyIncome,
	FieldAnnualIncome,
	FieldMonthlyLoanPayment,
	FieldNumberOfDependents,
	FieldAge,
	FieldPreviousLoanDefaults,
	FieldBankruptcyHistory,
}

// LoanRecord is the normalized view of one borrower application.
type LoanRecord struct {
	ID                      string   `json:"id"`
	LoanAmount              float64  `json:"LoanAmount"`
	LoanDuration            float64  `json:"LoanDuration"`
	CreditScore             float64  `json:"CreditScore"`
	NumberOfOpenCreditLines float64  `json:"NumberOfOpenCreditLines"`
	NumberOfCreditInquiries float64  `json:"NumberOfCreditInquiries"`
	LengthOfCreditHistory   float64  `json:"LengthOfCreditHistory"`
	DebtToIncomeRatio       float64  `json:"DebtToIncomeRatio"`
	TotalDebtToIncomeRatio  float64  `json:"TotalDebtToIncomeRatio"`
	SavingsAccountBalance   float64  `json:"SavingsAccountBalance"`
	CheckingAccountBalance  float64  `json:"CheckingAccountBalance"`
	MonthlyIncome           float64  `json:"MonthlyIncome"`
	AnnualIncome            float64  `json:"AnnualIncome"`
	MonthlyLoanPayment      float64  `json:"MonthlyLoanPayment"`
	NumberOfDependents      float64  `json:"NumberOfDependents"`
	Age                     float64  `json:"Age"`
	PreviousLoanDefaults    float64  `json:"PreviousLoanDefaults"`
	BankruptcyHistory       float64  `json:"BankruptcyHistory"`
	EmploymentStatus        string   `json:"EmploymentStatus"`
	RiskScore               *float64 `json:"RiskScore,omitempty"`
	PredictedRiskScore      *float64 `json:"PredictedRiskScore,omitempty"`
}

// EffectiveRisk prefers the model prediction, then the stored score, then 0.
func (l *LoanRecord) EffectiveRisk() float64 {
	if v, ok := usableScore(l.PredictedRiskScore); ok {
		return v
	}
	if v, ok := usableScore(l.RiskScore); ok {
		return v
	}
	return 0
}

// HasRiskScore reports whether either score is present and numeric.
func (l *LoanRecord) HasRiskScore() bool {
	_, p := usableScore(l.PredictedRiskScore)
	_, s := usableScore(l.RiskScore)
	return p || s
}

// Clean is true when the borrower has neither a previous default nor a bankruptcy.
func (l *LoanRecord) Clean() bool {
	return l.PreviousLoanDefaults == 0 && l.BankruptcyHistory == 0
}

// LiquidityRatio is (savings + checking) / principal. A zero principal has no
// ratio and reads as infinitely liquid.
func (l *LoanRecord) LiquidityRatio() float64 {
	principal := placeholder(l.LoanAmount)
	if math.IsNaN(principal) {
		return math.Inf(1)
	}
	return (l.SavingsAccountBalance + l.CheckingAccountBalance) / principal
}

// RelativeRatio is monthly income over the flat monthly installment
// principal / duration. Zero principal or duration reads as infinitely liquid.
func (l *LoanRecord) RelativeRatio() float64 {
	principal := placeholder(l.LoanAmount)
	duration := placeholder(l.LoanDuration)
	if math.IsNaN(principal) || math.IsNaN(duration) {
		return math.Inf(1)
	}
	ratio := l.MonthlyIncome / (principal / duration)
	if math.IsNaN(ratio) {
		return math.Inf(1)
	}
	return ratio
}

// IncomePerDependent is annual income / (dependents + 1).
func (l *LoanRecord) IncomePerDependent() float64 {
	return l.AnnualIncome / (l.NumberOfDependents + 1)
}

func placeholder(v float64) float64 {
	if v == 0 {
		return math.NaN()
	}
	return v
}

func usableScore(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}
