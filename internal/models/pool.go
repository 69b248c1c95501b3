// internal/models/pool.go
package models

import "time"

// RiskPool is a persisted risk band, e.g. "Risk-20" for scores in [20, 30).
type RiskPool struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	LowerRisk float64   `json:"lowerRisk"`
	LoanIDs   []string  `json:"loanIds"`
	CreatedAt time.Time `json:"createdAt"`
}
