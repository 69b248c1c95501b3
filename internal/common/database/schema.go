// internal/common/database/schema.go
package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates the tables used by the loan, threshold and pool stores.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS loans (
		id                          TEXT PRIMARY KEY,
		loan_amount                 DOUBLE PRECISION,
		loan_duration               DOUBLE PRECISION,
		credit_score                DOUBLE PRECISION,
		number_of_open_credit_lines DOUBLE PRECISION,
		number_of_credit_inquiries  DOUBLE PRECISION,
		length_of_credit_history    DOUBLE PRECISION,
		debt_to_income_ratio        DOUBLE PRECISION,
		total_debt_to_income_ratio  DOUBLE PRECISION,
		savings_account_balance     DOUBLE PRECISION,
		checking_account_balance    DOUBLE PRECISION,
		monthly_income              DOUBLE PRECISION,
		annual_income               DOUBLE PRECISION,
		monthly_loan_payment        DOUBLE PRECISION,
		number_of_dependents        DOUBLE PRECISION,
		age                         DOUBLE PRECISION,
		previous_loan_defaults      DOUBLE PRECISION,
		bankruptcy_history          DOUBLE PRECISION,
		employment_status           TEXT,
		risk_score                  DOUBLE PRECISION,
		predicted_risk_score        DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS threshold_configs (
		version    TEXT PRIMARY KEY,
		config     JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS loan_pools (
		id         UUID PRIMARY KEY,
		risk_level TEXT NOT NULL,
		lower_risk DOUBLE PRECISION NOT NULL,
		loan_ids   TEXT[] NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
