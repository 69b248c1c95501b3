// internal/store/pools.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tranche-workers/internal/common/database"
	"tranche-workers/internal/common/errors"
	"tranche-workers/internal/models"
)

const insertPoolQuery = `INSERT INTO loan_pools (id, risk_level, lower_risk, loan_ids, created_at) VALUES ($1, $2, $3, $4, $5)`

// PoolRepository persists risk-band pools.
type PoolRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPoolRepository(db *sql.DB) *PoolRepository {
	return &PoolRepository{db: db, now: time.Now}
}

// SavePools inserts pools in one transaction, assigning ids and timestamps.
// The returned slice carries the stored values.
func (r *PoolRepository) SavePools(ctx context.Context, pools []models.RiskPool) ([]models.RiskPool, error) {
	if len(pools) == 0 {
		return []models.RiskPool{}, nil
	}

	createdAt := r.now().UTC()
	saved := make([]models.RiskPool, len(pools))
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertPoolQuery)
		if err != nil {
			return fmt.Errorf("prepare pool insert: %w", err)
		}
		defer stmt.Close()

		for i, p := range pools {
			p.ID = uuid.NewString()
			p.CreatedAt = createdAt
			if _, err := stmt.ExecContext(ctx, p.ID, p.Name, p.LowerRisk, pq.Array(p.LoanIDs), p.CreatedAt); err != nil {
				return fmt.Errorf("insert pool %s: %w", p.Name, err)
			}
			saved[i] = p
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewPoolInsertFailedError(err)
	}
	return saved, nil
}
