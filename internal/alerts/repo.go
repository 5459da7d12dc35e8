package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/db"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/reports"
)

// Sink is the alert surface used by the action router.
type Sink interface {
	ListAlerts(ctx context.Context, filter Filter) ([]Alert, error)
	PendingForFitting(ctx context.Context, fittingID string) (bool, error)
	SetDecision(ctx context.Context, alertID int64, d rbac.Decision, actor rbac.Principal) error
}

// Repository adds the write paths used by background jobs and the dashboard.
type Repository interface {
	Sink
	CreateFromReport(ctx context.Context, reportID string, report reports.FaultReport) (Alert, error)
	Get(ctx context.Context, id int64) (Alert, error)
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

const alertColumns = `id, fitting_id, report_id::text, severity, fault_type, location, inspector, description,
       raised_at, status, assigned_role, decided_by, decided_at`

// ListAlerts returns alerts newest first.
func (r *PGRepository) ListAlerts(ctx context.Context, filter Filter) ([]Alert, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+alertColumns+`
FROM alerts
WHERE ($1 = '' OR severity = $1)
  AND ($2 = '' OR status = $2)
  AND ($3 = '' OR assigned_role = $3)
ORDER BY raised_at DESC, id DESC
LIMIT $4`, string(filter.Severity), string(filter.Status), string(filter.AssignedTo), limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return pgx.CollectRows(rows, scanAlert)
}

// PendingForFitting reports whether the fitting has an undecided alert.
func (r *PGRepository) PendingForFitting(ctx context.Context, fittingID string) (bool, error) {
	var pending bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM alerts WHERE fitting_id = $1 AND status = 'pending')`, fittingID).Scan(&pending)
	if err != nil {
		return false, fmt.Errorf("pending alerts: %w", err)
	}
	return pending, nil
}

// SetDecision moves a pending alert to approved or rejected. The row is
// locked so two concurrent decisions cannot both succeed.
func (r *PGRepository) SetDecision(ctx context.Context, alertID int64, d rbac.Decision, actor rbac.Principal) error {
	return db.WithTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM alerts WHERE id = $1 FOR UPDATE`, alertID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock alert: %w", err)
		}
		if err := checkDecidable(Alert{Status: Status(status)}); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE alerts SET status = $2, decided_by = $3, decided_at = $4 WHERE id = $1`,
			alertID, string(StatusFor(d)), actor.UserID, r.now().UTC())
		if err != nil {
			return fmt.Errorf("update alert: %w", err)
		}
		return nil
	})
}

// CreateFromReport raises a pending alert for a report. Repeated calls for the
// same report return the existing alert, so job retries are harmless.
func (r *PGRepository) CreateFromReport(ctx context.Context, reportID string, report reports.FaultReport) (Alert, error) {
	var assigned *string
	if role := RouteFor(report.Severity); role != nil {
		s := string(*role)
		assigned = &s
	}
	rows, err := r.pool.Query(ctx, `INSERT INTO alerts
    (fitting_id, report_id, severity, fault_type, location, inspector, description, assigned_role, raised_at)
VALUES ($1, $2::uuid, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (report_id) DO NOTHING
RETURNING `+alertColumns,
		report.FittingID, reportID, string(report.Severity), report.FaultType, report.Location,
		report.ReportedBy, report.Description, assigned, r.now().UTC())
	if err != nil {
		return Alert{}, fmt.Errorf("insert alert: %w", err)
	}
	alert, err := pgx.CollectExactlyOneRow(rows, scanAlert)
	if err == nil {
		return alert, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Alert{}, err
	}
	rows, err = r.pool.Query(ctx, `SELECT `+alertColumns+` FROM alerts WHERE report_id = $1::uuid`, reportID)
	if err != nil {
		return Alert{}, fmt.Errorf("select alert by report: %w", err)
	}
	return pgx.CollectExactlyOneRow(rows, scanAlert)
}

// Get loads an alert by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (Alert, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	if err != nil {
		return Alert{}, fmt.Errorf("get alert: %w", err)
	}
	alert, err := pgx.CollectExactlyOneRow(rows, scanAlert)
	if errors.Is(err, pgx.ErrNoRows) {
		return Alert{}, ErrNotFound
	}
	return alert, err
}

// checkDecidable only looks at the alert's state. Who may decide is settled
// by the capability table before the sink is reached.
func checkDecidable(a Alert) error {
	if a.Status != StatusPending {
		return ErrAlreadyDecided
	}
	return nil
}

func scanAlert(row pgx.CollectableRow) (Alert, error) {
	var (
		a        Alert
		severity string
		status   string
		assigned *string
	)
	err := row.Scan(&a.ID, &a.FittingID, &a.ReportID, &severity, &a.FaultType, &a.Location, &a.Inspector,
		&a.Description, &a.RaisedAt, &status, &assigned, &a.DecidedBy, &a.DecidedAt)
	if err != nil {
		return Alert{}, err
	}
	a.Severity = reports.Severity(severity)
	a.Status = Status(status)
	if assigned != nil {
		role := rbac.Role(*assigned)
		a.AssignedRole = &role
	}
	return a, nil
}

var _ Repository = (*PGRepository)(nil)
