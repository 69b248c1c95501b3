// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Request / snapshot validation. Never retried.
	ErrCodeInvalidBudget            ErrorCode = "INVALID_BUDGET"
	ErrCodeInvalidSnapshot          ErrorCode = "INVALID_SNAPSHOT"
	ErrCodeInvalidSelector          ErrorCode = "INVALID_SELECTOR"
	ErrCodeInvalidInput             ErrorCode = "INVALID_INPUT"
	ErrCodeSnapshotValidationFailed ErrorCode = "SNAPSHOT_VALIDATION_FAILED"
	ErrCodeThresholdConfigNotFound  ErrorCode = "THRESHOLD_CONFIG_NOT_FOUND"
	ErrCodeThresholdConfigInvalid   ErrorCode = "THRESHOLD_CONFIG_INVALID"

	// Storage
	ErrCodeDatabaseConnectionFailed  ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeLoanSnapshotQueryFailed   ErrorCode = "LOAN_SNAPSHOT_QUERY_FAILED"
	ErrCodeQueryTimeout              ErrorCode = "QUERY_TIMEOUT"
	ErrCodeThresholdConfigLoadFailed ErrorCode = "THRESHOLD_CONFIG_LOAD_FAILED"
	ErrCodeCacheInvalidationFailed   ErrorCode = "CACHE_INVALIDATION_FAILED"
	ErrCodePoolInsertFailed          ErrorCode = "POOL_INSERT_FAILED"

	// External services
	ErrCodeScoringFailed          ErrorCode = "SCORING_FAILED"
	ErrCodeScoringTimeout         ErrorCode = "SCORING_TIMEOUT"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError unwraps err to a *StandardError if it carries one.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsBusinessError reports whether err is a non-retryable StandardError, i.e.
// one caused by the caller's input rather than infrastructure.
func IsBusinessError(err error) bool {
	stdErr, ok := AsStandardError(err)
	return ok && !stdErr.Retryable
}

// CodeOf returns the code carried by err, or INTERNAL_ERROR for plain errors.
func CodeOf(err error) string {
	if stdErr, ok := AsStandardError(err); ok {
		return string(stdErr.Code)
	}
	return "INTERNAL_ERROR"
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInvalidBudgetError creates a non-retryable budget error.
func NewInvalidBudgetError(budget float64) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidBudget,
		Message:   "Investor budget must be a finite, non-negative number",
		Details:   fmt.Sprintf("investorBudget: %v", budget),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidSnapshotError creates a non-retryable snapshot error.
func NewInvalidSnapshotError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidSnapshot,
		Message:   "Loan snapshot is malformed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidSelectorError creates a non-retryable error for an unknown criterion/suboption pair.
func NewInvalidSelectorError(criterion, suboption string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidSelector,
		Message:   "Unknown criterion or suboption",
		Details:   fmt.Sprintf("criterion: %s, suboption: %s", criterion, suboption),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError creates a non-retryable job/request input error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSnapshotValidationFailedError creates a non-retryable schema validation error.
func NewSnapshotValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSnapshotValidationFailed,
		Message:   "Loan snapshot failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewThresholdConfigNotFoundError creates a non-retryable error for an unknown version.
func NewThresholdConfigNotFoundError(version string) *StandardError {
	return &StandardError{
		Code:      ErrCodeThresholdConfigNotFound,
		Message:   "Threshold configuration not found",
		Details:   fmt.Sprintf("version: %s", version),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewThresholdConfigInvalidError creates a non-retryable decode error.
func NewThresholdConfigInvalidError(version string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeThresholdConfigInvalid,
		Message:   "Threshold configuration could not be decoded",
		Details:   fmt.Sprintf("version: %s, error: %s", version, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLoanSnapshotQueryFailedError creates a retryable snapshot query error.
func NewLoanSnapshotQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLoanSnapshotQueryFailed,
		Message:   "Loan snapshot query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(query string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("query: %s", query),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewThresholdConfigLoadFailedError creates a retryable configuration load error.
func NewThresholdConfigLoadFailedError(version string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeThresholdConfigLoadFailed,
		Message:   "Threshold configuration load failed",
		Details:   fmt.Sprintf("version: %s, error: %s", version, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheInvalidationFailedError creates a retryable cache error.
func NewCacheInvalidationFailedError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheInvalidationFailed,
		Message:   "Cache invalidation failed",
		Details:   fmt.Sprintf("key: %s, error: %s", key, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPoolInsertFailedError creates a retryable pool persistence error.
func NewPoolInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePoolInsertFailed,
		Message:   "Loan pool insert failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewScoringFailedError creates a retryable risk scoring error.
func NewScoringFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeScoringFailed,
		Message:   "Risk scoring service error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewScoringTimeoutError creates a retryable risk scoring timeout error.
func NewScoringTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeScoringTimeout,
		Message:   "Risk scoring service timeout",
		Details:   "scoring call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. Codes not
// listed are passed through unchanged.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidBudget:             "INVALID_BUDGET",
	ErrCodeInvalidSnapshot:           "INVALID_SNAPSHOT",
	ErrCodeInvalidSelector:           "INVALID_SELECTOR",
	ErrCodeInvalidInput:              "INVALID_INPUT",
	ErrCodeSnapshotValidationFailed:  "INVALID_SNAPSHOT",
	ErrCodeThresholdConfigNotFound:   "THRESHOLD_CONFIG_NOT_FOUND",
	ErrCodeThresholdConfigInvalid:    "THRESHOLD_CONFIG_NOT_FOUND",
	ErrCodeDatabaseConnectionFailed:  "DATABASE_CONNECTION_FAILED",
	ErrCodeLoanSnapshotQueryFailed:   "LOAN_SNAPSHOT_QUERY_FAILED",
	ErrCodeQueryTimeout:              "QUERY_TIMEOUT",
	ErrCodeThresholdConfigLoadFailed: "THRESHOLD_CONFIG_LOAD_FAILED",
	ErrCodeCacheInvalidationFailed:   "CACHE_INVALIDATION_FAILED",
	ErrCodePoolInsertFailed:          "POOL_INSERT_FAILED",
	ErrCodeScoringFailed:             "SCORING_FAILED",
	ErrCodeScoringTimeout:            "SCORING_TIMEOUT",
	ErrCodeNotificationSendFailed:    "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeLoanSnapshotQueryFailed,
		ErrCodeThresholdConfigLoadFailed,
		ErrCodeCacheInvalidationFailed,
		ErrCodePoolInsertFailed,
		ErrCodeScoringFailed,
		ErrCodeNotificationSendFailed:
		return 3 // Retryable technical errors

	case ErrCodeQueryTimeout,
		ErrCodeScoringTimeout:
		return 2 // Partial retry for timeouts

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "THRESHOLD") || strings.Contains(codeStr, "CACHE"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "POOL"):
		return "DATABASE"
	case strings.Contains(codeStr, "SCORING"):
		return "SCORING"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
