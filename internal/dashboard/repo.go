package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Stats counts fittings by status, fittings whose warranty ended on or before
// asOf, and pending alerts.
func (r *PGRepository) Stats(ctx context.Context, asOf time.Time) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE status = 'Active'),
    COUNT(*) FILTER (WHERE status = 'Attention'),
    COUNT(*) FILTER (WHERE status = 'Critical'),
    COUNT(*) FILTER (WHERE supply_date IS NOT NULL
                     AND supply_date + make_interval(months => warranty_months) <= $1::date),
    (SELECT COUNT(*) FROM alerts WHERE status = 'pending')
FROM fittings`, asOf).Scan(
		&s.TotalFittings, &s.ActiveFittings, &s.AttentionFittings,
		&s.CriticalFittings, &s.WarrantyExpired, &s.OpenFaults,
	)
	if err != nil {
		return Stats{}, err
	}
	return s, nil
}
