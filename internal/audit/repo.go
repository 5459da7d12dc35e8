package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository over audit_logs.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const timelineQuery = `SELECT id, occurred_at, actor_id, actor_name, actor_role, action, entity, entity_id, meta
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR actor_name = $3)
  AND ($4::text IS NULL OR entity = $4)
  AND ($5::text IS NULL OR action = $5)
ORDER BY occurred_at DESC, id DESC`

// Window returns rows in [Offset, Offset+Limit).
func (r *PGRepository) Window(ctx context.Context, params WindowParams) ([]TimelineRow, error) {
	args := filterArgs(params.Filters)
	args = append(args, params.Offset, params.Limit)
	rows, err := r.pool.Query(ctx, timelineQuery+` OFFSET $6 LIMIT $7`, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// All returns every matching row.
func (r *PGRepository) All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineQuery, filterArgs(filters)...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]TimelineRow, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var (
			out  TimelineRow
			meta []byte
		)
		if err := row.Scan(&out.ID, &out.At, &out.ActorID, &out.Actor, &out.Role, &out.Action, &out.Entity, &out.EntityID, &meta); err != nil {
			return TimelineRow{}, err
		}
		if len(meta) > 0 && string(meta) != "null" {
			if err := json.Unmarshal(meta, &out.Meta); err != nil {
				return TimelineRow{}, fmt.Errorf("audit meta %d: %w", out.ID, err)
			}
		}
		return out, nil
	})
}

// filterArgs makes the To bound exclusive of the following day so a
// date-only filter includes the whole day.
func filterArgs(f TimelineFilters) []any {
	to := f.To
	if !to.IsZero() {
		to = to.Add(24 * time.Hour)
	}
	return []any{toPgTime(f.From), toPgTime(to), optionalText(f.Actor), optionalText(f.Entity), optionalText(f.Action)}
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
