package postgres

import (
	"context"

	"github.com/frahmantamala/smm-storefront/internal/ledger"
	"github.com/jmoiron/sqlx"
)

// ReportRepository serves read-only aggregates straight from SQL.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) ledger.ReportAPI {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Stats(ctx context.Context) ([]ledger.StatusStats, error) {
	query := r.db.Rebind(`
		SELECT status,
		       COUNT(*) AS count,
		       COALESCE(SUM(amount), 0) AS total,
		       COALESCE(SUM(CASE WHEN credited = ? THEN 1 ELSE 0 END), 0) AS credited
		FROM payment_transactions
		GROUP BY status
		ORDER BY status`)

	stats := []ledger.StatusStats{}
	if err := r.db.SelectContext(ctx, &stats, query, true); err != nil {
		return nil, err
	}
	return stats, nil
}
