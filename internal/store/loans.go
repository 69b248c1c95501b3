// internal/store/loans.go
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"tranche-workers/internal/common/errors"
	"tranche-workers/internal/models"
)

type loanColumn struct {
	column string
	field  string
	text   bool
}

// loanColumns maps the loans table onto snapshot keys, in select order.
var loanColumns = []loanColumn{
	{"loan_amount", models.FieldLoanAmount, false},
	{"loan_duration", models.FieldLoanDuration, false},
	{"credit_score", models.FieldCreditScore, false},
	{"number_of_open_credit_lines", models.FieldOpenCreditLines, false},
	{"number_of_credit_inquiries", models.FieldCreditInquiries, false},
	{"length_of_credit_history", models.FieldCreditHistoryLength, false},
	{"debt_to_income_ratio", models.FieldDebtToIncomeRatio, false},
	{"total_debt_to_income_ratio", models.FieldTotalDebtToIncomeRatio, false},
	{"savings_account_balance", models.FieldSavingsAccountBalance, false},
	{"checking_account_balance", models.FieldCheckingAccountBalance, false},
	{"monthly_income", models.FieldMonthlyIncome, false},
	{"annual_income", models.FieldAnnualIncome, false},
	{"monthly_loan_payment", models.FieldMonthlyLoanPayment, false},
	{"number_of_dependents", models.FieldNumberOfDependents, false},
	{"age", models.FieldAge, false},
	{"previous_loan_defaults", models.FieldPreviousLoanDefaults, false},
	{"bankruptcy_history", models.FieldBankruptcyHistory, false},
	{"employment_status", models.FieldEmploymentStatus, true},
	{"risk_score", models.FieldRiskScore, false},
	{"predicted_risk_score", models.FieldPredictedRiskScore, false},
}

var loanSelect = func() string {
	cols := make([]string, 0, len(loanColumns)+1)
	cols = append(cols, "id")
	for _, c := range loanColumns {
		cols = append(cols, c.column)
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM loans"
}()

// LoanRepository reads loan snapshots from Postgres.
type LoanRepository struct {
	db      *sql.DB
	maxRows int
}

// NewLoanRepository returns a repository that refuses snapshots larger than
// maxRows. Zero means unlimited.
func NewLoanRepository(db *sql.DB, maxRows int) *LoanRepository {
	return &LoanRepository{db: db, maxRows: maxRows}
}

// Snapshot reads every loan ordered by id. NULL columns are left out of the
// row so normalization can fill them.
func (r *LoanRepository) Snapshot(ctx context.Context) ([]models.RawLoan, error) {
	if r.maxRows > 0 {
		return r.query(ctx, loanSelect+" ORDER BY id LIMIT $1", r.maxRows+1)
	}
	return r.query(ctx, loanSelect+" ORDER BY id")
}

// ByIDs reads the given loans ordered by id. Unknown ids are ignored.
func (r *LoanRepository) ByIDs(ctx context.Context, ids []string) ([]models.RawLoan, error) {
	if len(ids) == 0 {
		return []models.RawLoan{}, nil
	}
	return r.query(ctx, loanSelect+" WHERE id = ANY($1) ORDER BY id", pq.Array(ids))
}

func (r *LoanRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.RawLoan, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapError(ctx, err)
	}
	defer rows.Close()

	loans := []models.RawLoan{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, r.mapError(ctx, err)
		}
		loans = append(loans, loan)
		if r.maxRows > 0 && len(loans) > r.maxRows {
			return nil, errors.NewSnapshotValidationFailedError(
				fmt.Sprintf("snapshot exceeds %d loans", r.maxRows))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapError(ctx, err)
	}
	return loans, nil
}

func scanLoan(rows *sql.Rows) (models.RawLoan, error) {
	var id string
	nums := make([]sql.NullFloat64, len(loanColumns))
	texts := make([]sql.NullString, len(loanColumns))

	dest := make([]interface{}, 0, len(loanColumns)+1)
	dest = append(dest, &id)
	for i, c := range loanColumns {
		if c.text {
			dest = append(dest, &texts[i])
		} else {
			dest = append(dest, &nums[i])
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan loan: %w", err)
	}

	loan := models.RawLoan{models.FieldID: id}
	for i, c := range loanColumns {
		switch {
		case c.text && texts[i].Valid:
			loan[c.field] = texts[i].String
		case !c.text && nums[i].Valid:
			loan[c.field] = nums[i].Float64
		}
	}
	return loan, nil
}

func (r *LoanRepository) mapError(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewQueryTimeoutError("loan snapshot")
	}
	return errors.NewLoanSnapshotQueryFailedError(err)
}
