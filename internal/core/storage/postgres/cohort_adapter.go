package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aevon-lab/growthmart/internal/core/model"
)

const (
	queryDeleteCohorts = `DELETE FROM cohorts`

	queryInsertCohort = `
		INSERT INTO cohorts (
			cohort_month, cohort_size, d7_retention, d30_retention, d60_retention, d90_retention,
			ltv30, ltv90, ltv180, avg_cac, payback_days
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	querySelectCohorts = `
		SELECT cohort_month, cohort_size, d7_retention, d30_retention, d60_retention, d90_retention,
			ltv30, ltv90, ltv180, avg_cac, payback_days
		FROM cohorts
		ORDER BY cohort_month ASC
	`
)

// CohortAdapter implements storage.CohortStore using PostgreSQL.
type CohortAdapter struct {
	db *sql.DB
}

// NewCohortAdapter creates a CohortAdapter sharing the given connection.
func NewCohortAdapter(db *sql.DB) *CohortAdapter {
	return &CohortAdapter{db: db}
}

// ReplaceCohorts deletes every cohort row and inserts cohorts in one transaction.
func (a *CohortAdapter) ReplaceCohorts(ctx context.Context, cohorts []model.Cohort) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cohort replace: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, queryDeleteCohorts); err != nil {
		return fmt.Errorf("cohort replace: clear: %w", err)
	}

	err = insertEach(ctx, tx, queryInsertCohort, cohorts, func(c model.Cohort) []interface{} {
		var payback sql.NullInt64
		if c.PaybackDays != nil {
			payback = sql.NullInt64{Int64: int64(*c.PaybackDays), Valid: true}
		}
		return []interface{}{
			c.CohortMonth, c.CohortSize, c.D7Retention, c.D30Retention, c.D60Retention, c.D90Retention,
			c.LTV30, c.LTV90, c.LTV180, c.AvgCAC, payback,
		}
	})
	if err != nil {
		return fmt.Errorf("cohort replace: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cohort replace: commit: %w", err)
	}
	return nil
}

func (a *CohortAdapter) ListCohorts(ctx context.Context) ([]model.Cohort, error) {
	rows, err := queryAll(ctx, a.db, querySelectCohorts, func(row scanner) (model.Cohort, error) {
		var c model.Cohort
		var payback sql.NullInt64
		err := row.Scan(
			&c.CohortMonth, &c.CohortSize, &c.D7Retention, &c.D30Retention, &c.D60Retention, &c.D90Retention,
			&c.LTV30, &c.LTV90, &c.LTV180, &c.AvgCAC, &payback,
		)
		c.CohortMonth = asDate(c.CohortMonth)
		if payback.Valid {
			days := int(payback.Int64)
			c.PaybackDays = &days
		}
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("list cohorts: %w", err)
	}
	return rows, nil
}
