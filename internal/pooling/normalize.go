// internal/pooling/normalize.go
package pooling

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"tranche-workers/internal/models"
)

// Normalize turns a raw snapshot into typed loan records. The snapshot is not
// modified. Missing or non-numeric values in a required numeric column are
// filled with that column's median over the snapshot (0 when the whole column
// is missing); a missing employment status becomes "Unknown". Risk scores are
// coerced but never filled.
func Normalize(snapshot []models.RawLoan) ([]*models.LoanRecord, error) {
	ids, err := snapshotIDs(snapshot)
	if err != nil {
		return nil, err
	}

	columns := make(map[string][]float64, len(models.NumericFields))
	present := make(map[string][]bool, len(models.NumericFields))
	for _, field := range models.NumericFields {
		vals := make([]float64, len(snapshot))
		ok := make([]bool, len(snapshot))
		for i, row := range snapshot {
			vals[i], ok[i] = toFloat(row[field])
		}
		columns[field] = vals
		present[field] = ok
	}

	medians := make(map[string]float64, len(models.NumericFields))
	for _, field := range models.NumericFields {
		medians[field] = median(columns[field], present[field])
	}

	value := func(field string, i int) float64 {
		if present[field][i] {
			return columns[field][i]
		}
		return medians[field]
	}

	out := make([]*models.LoanRecord, len(snapshot))
	for i, row := range snapshot {
		out[i] = &models.LoanRecord{
			ID:                      ids[i],
			LoanAmount:              value(models.FieldLoanAmount, i),
			LoanDuration:            value(models.FieldLoanDuration, i),
			CreditScore:             value(models.FieldCreditScore, i),
			NumberOfOpenCreditLines: value(models.FieldOpenCreditLines, i),
			NumberOfCreditInquiries: value(models.FieldCreditInquiries, i),
			LengthOfCreditHistory:   value(models.FieldCreditHistoryLength, i),
			DebtToIncomeRatio:       value(models.FieldDebtToIncomeRatio, i),
			TotalDebtToIncomeRatio:  value(models.FieldTotalDebtToIncomeRatio, i),
			SavingsAccountBalance:   value(models.FieldSavingsAccountBalance, i),
			CheckingAccountBalance:  value(models.FieldCheckingAccountBalance, i),
			MonthlyIncome:           value(models.FieldMonthlyIncome, i),
			AnnualIncome:            value(models.FieldAnnualIncome, i),
			MonthlyLoanPayment:      value(models.FieldMonthlyLoanPayment, i),
			NumberOfDependents:      value(models.FieldNumberOfDependents, i),
			Age:                     value(models.FieldAge, i),
			PreviousLoanDefaults:    value(models.FieldPreviousLoanDefaults, i),
			BankruptcyHistory:       value(models.FieldBankruptcyHistory, i),
			EmploymentStatus:        employmentStatus(row[models.FieldEmploymentStatus]),
			RiskScore:               optionalFloat(row[models.FieldRiskScore]),
			PredictedRiskScore:      predictedScore(row),
		}
	}
	return out, nil
}

// snapshotIDs extracts the row ids and rejects missing or duplicate ones.
func snapshotIDs(snapshot []models.RawLoan) ([]string, error) {
	ids := make([]string, len(snapshot))
	seen := make(map[string]int, len(snapshot))
	for i, row := range snapshot {
		id := LoanID(row)
		if id == "" {
			return nil, fmt.Errorf("row %d: missing loan id", i)
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("row %d: duplicate loan id %q (first seen at row %d)", i, id, prev)
		}
		seen[id] = i
		ids[i] = id
	}
	return ids, nil
}

// LoanID reads "_id", falling back to "id". Numbers and fmt.Stringer values
// (e.g. database object ids) are rendered as text.
func LoanID(row models.RawLoan) string {
	for _, key := range []string{models.FieldID, models.FieldIDAlt} {
		v, ok := row[key]
		if !ok || v == nil {
			continue
		}
		var id string
		switch t := v.(type) {
		case string:
			id = t
		case fmt.Stringer:
			id = t.String()
		case float64:
			id = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			id = fmt.Sprint(t)
		}
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}

// toFloat coerces numbers, numeric strings, json.Number and booleans. NaN and
// infinities count as missing.
func toFloat(v interface{}) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case bool:
		if t {
			f = 1
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func optionalFloat(v interface{}) *float64 {
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func predictedScore(row models.RawLoan) *float64 {
	if f := optionalFloat(row[models.FieldPredictedRiskScore]); f != nil {
		return f
	}
	return optionalFloat(row[models.FieldPredictedRiskScoreLegacy])
}

func employmentStatus(v interface{}) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return models.UnknownEmploymentStatus
	}
	return strings.TrimSpace(s)
}

// median of the present values, averaging the middle pair for even counts.
func median(vals []float64, present []bool) float64 {
	xs := make([]float64, 0, len(vals))
	for i, v := range vals {
		if present[i] {
			xs = append(xs, v)
		}
	}
	if len(xs) == 0 {
		return 0
	}
	sort.Float64s(xs)
	mid := len(xs) / 2
	if len(xs)%2 == 1 {
		return xs[mid]
	}
	return (xs[mid-1] + xs[mid]) / 2
}
