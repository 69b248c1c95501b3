// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"tranche-workers/internal/models"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// numeric columns may arrive as numbers, numeric strings, booleans or null;
// coercion happens during normalization.
var numericLike = map[string]interface{}{
	"type": []interface{}{"number", "string", "boolean", "null"},
}

// LoanSnapshotSchema describes an inline loan snapshot: an array of objects,
// each carrying an `_id` or `id`.
func LoanSnapshotSchema() map[string]interface{} {
	props := map[string]interface{}{
		models.FieldID:                       map[string]interface{}{"type": []interface{}{"string", "number"}},
		models.FieldIDAlt:                    map[string]interface{}{"type": []interface{}{"string", "number"}},
		models.FieldEmploymentStatus:         map[string]interface{}{"type": []interface{}{"string", "null"}},
		models.FieldRiskScore:                numericLike,
		models.FieldPredictedRiskScore:       numericLike,
		models.FieldPredictedRiskScoreLegacy: numericLike,
	}
	for _, f := range models.NumericFields {
		props[f] = numericLike
	}

	return map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type":       "object",
			"properties": props,
			"anyOf": []interface{}{
				map[string]interface{}{"required": []interface{}{models.FieldID}},
				map[string]interface{}{"required": []interface{}{models.FieldIDAlt}},
			},
		},
	}
}

// AllocationRequestSchema describes the allocate-tranches job variables and
// the POST /v1/allocate body.
func AllocationRequestSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"criterion", "suboption", "investorBudget"},
		"properties": map[string]interface{}{
			"criterion":        map[string]interface{}{"type": "string", "minLength": 1},
			"suboption":        map[string]interface{}{"type": "string", "minLength": 1},
			"investorBudget":   map[string]interface{}{"type": "number", "minimum": 0},
			"thresholdVersion": map[string]interface{}{"type": "string"},
			"loans":            map[string]interface{}{"type": "array"},
		},
	}
}

var (
	snapshotSchemaOnce sync.Once
	snapshotSchema     *gojsonschema.Schema
	snapshotSchemaErr  error
)

// ValidateSnapshot checks loans against LoanSnapshotSchema.
func ValidateSnapshot(loans []models.RawLoan) (*ValidationResult, error) {
	snapshotSchemaOnce.Do(func() {
		snapshotSchema, snapshotSchemaErr = gojsonschema.NewSchema(gojsonschema.NewGoLoader(LoanSnapshotSchema()))
	})
	if snapshotSchemaErr != nil {
		return nil, fmt.Errorf("compile snapshot schema: %w", snapshotSchemaErr)
	}
	if loans == nil {
		loans = []models.RawLoan{}
	}

	result, err := snapshotSchema.Validate(gojsonschema.NewGoLoader(loans))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return fromResult(result), nil
}

// ValidateInput validates document against a JSON schema given as a Go value.
func ValidateInput(document interface{}, schema map[string]interface{}) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return fromResult(result), nil
}

func fromResult(result *gojsonschema.Result) *ValidationResult {
	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a field and everything nested under it.
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}
