package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sink accepts submitted reports and returns the assigned report ID.
type Sink interface {
	Submit(ctx context.Context, report FaultReport) (string, error)
}

// ListFilter narrows report listings.
type ListFilter struct {
	FittingID string
	Severity  Severity
	Limit     int
	Offset    int
}

// Repository is the full persistence surface of the reports module.
type Repository interface {
	Sink
	List(ctx context.Context, filter ListFilter) ([]FaultReport, int, error)
	Get(ctx context.Context, id string) (FaultReport, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, now: time.Now}
}

// Submit stores the report under a fresh UUID.
func (r *PGRepository) Submit(ctx context.Context, report FaultReport) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `INSERT INTO fault_reports
    (id, fitting_id, fault_type, severity, description, location, reported_by, reported_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, report.FittingID, report.FaultType, string(report.Severity), report.Description,
		report.Location, report.ReportedBy, report.ReportedDate, r.now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert fault report: %w", err)
	}
	return id, nil
}

const reportColumns = `id::text, fitting_id, fault_type, severity, description, location, reported_by, reported_date, created_at`

// List returns reports newest first along with the unpaged total.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]FaultReport, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	const where = `WHERE ($1 = '' OR fitting_id = $1) AND ($2 = '' OR severity = $2)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fault_reports `+where, filter.FittingID, string(filter.Severity)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count fault reports: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+reportColumns+` FROM fault_reports `+where+`
ORDER BY reported_date DESC, created_at DESC
LIMIT $3 OFFSET $4`, filter.FittingID, string(filter.Severity), filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list fault reports: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanReport)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get loads one report.
func (r *PGRepository) Get(ctx context.Context, id string) (FaultReport, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reportColumns+` FROM fault_reports WHERE id::text = $1`, id)
	if err != nil {
		return FaultReport{}, fmt.Errorf("get fault report: %w", err)
	}
	rep, err := pgx.CollectExactlyOneRow(rows, scanReport)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FaultReport{}, ErrNotFound
		}
		return FaultReport{}, err
	}
	return rep, nil
}

func scanReport(row pgx.CollectableRow) (FaultReport, error) {
	var (
		rep      FaultReport
		severity string
	)
	err := row.Scan(&rep.ID, &rep.FittingID, &rep.FaultType, &severity, &rep.Description,
		&rep.Location, &rep.ReportedBy, &rep.ReportedDate, &rep.CreatedAt)
	rep.Severity = Severity(severity)
	return rep, err
}

var _ Repository = (*PGRepository)(nil)
