// internal/api/handlers.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"tranche-workers/internal/allocation"
	"tranche-workers/internal/common/errors"
	"tranche-workers/internal/common/metrics"
	"tranche-workers/internal/common/validation"
	"tranche-workers/internal/models"
	"tranche-workers/internal/store"
)

const (
	maxBodyBytes = 32 << 20
	checkTimeout = 2 * time.Second
)

type allocateResponse struct {
	RunID            string                  `json:"runId"`
	CompletedAt      time.Time               `json:"completedAt"`
	Criterion        string                  `json:"criterion"`
	Suboption        string                  `json:"suboption"`
	ThresholdVersion string                  `json:"thresholdVersion"`
	InvestorBudget   float64                 `json:"investorBudget"`
	Message          string                  `json:"message,omitempty"`
	LoansAllocated   int                     `json:"loansAllocated"`
	TrancheDetails   []*models.TrancheResult `json:"trancheDetails"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady runs every check; any failure makes the instance not ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := s.checks[name](ctx)
		cancel()
		if err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			s.log.Warn("readiness check failed", map[string]interface{}{"check": name, "error": err.Error()})
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": results,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCriteria(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"criteria": s.allocator.Criteria(),
	})
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, errors.NewInvalidInputError(fmt.Sprintf("read body: %v", err)))
		return
	}

	var document interface{}
	if err := json.Unmarshal(body, &document); err != nil {
		s.writeError(w, errors.NewInvalidInputError(fmt.Sprintf("parse body: %v", err)))
		return
	}
	result, err := validation.ValidateInput(document, validation.AllocationRequestSchema())
	if err != nil {
		s.writeError(w, errors.NewInternalError(err))
		return
	}
	if !result.Valid {
		s.writeError(w, errors.NewInvalidInputError(fmt.Sprintf("validation errors: %v", result.GetErrorMessages())))
		return
	}

	var req allocation.Request
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, errors.NewInvalidInputError(fmt.Sprintf("parse body: %v", err)))
		return
	}

	resp, err := s.allocator.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res := resp.Result
	writeJSON(w, http.StatusOK, allocateResponse{
		RunID:            resp.RunID,
		CompletedAt:      resp.CompletedAt,
		Criterion:        res.Criterion,
		Suboption:        res.Suboption,
		ThresholdVersion: res.ThresholdVersion,
		InvestorBudget:   res.InvestorBudget,
		Message:          res.Message,
		LoansAllocated:   res.TotalAllocated(),
		TrancheDetails:   res.Details(),
	})
}

func (s *Server) handleRefreshThresholds(w http.ResponseWriter, r *http.Request) {
	if s.thresholds == nil {
		writeJSON(w, http.StatusNotFound, map[string]errorBody{
			"error": {Code: "NOT_CONFIGURED", Message: "threshold cache is not configured"},
		})
		return
	}

	version := r.URL.Query().Get("version")
	if err := s.thresholds.Invalidate(r.Context(), version); err != nil {
		s.writeError(w, err)
		return
	}
	metrics.ThresholdInvalidations.WithLabelValues(store.TriggerAPI).Inc()

	invalidated := version
	if invalidated == "" {
		invalidated = "all"
	}
	writeJSON(w, http.StatusOK, map[string]string{"invalidated": invalidated})
}

// writeError maps business errors to 400 and everything else to 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	stdErr, ok := errors.AsStandardError(err)
	if !ok {
		stdErr = errors.NewInternalError(err)
	}

	status := http.StatusInternalServerError
	if errors.IsBusinessError(stdErr) && stdErr.Code != "INTERNAL_ERROR" {
		status = http.StatusBadRequest
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", map[string]interface{}{
			"code":    string(stdErr.Code),
			"details": stdErr.Details,
		})
	}

	writeJSON(w, status, map[string]errorBody{
		"error": {Code: string(stdErr.Code), Message: stdErr.Message, Details: stdErr.Details},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
