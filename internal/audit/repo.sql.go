package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads audit_logs from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Timeline lists audit rows newest first. To is inclusive of the whole day.
func (r *PGRepository) Timeline(ctx context.Context, q Query) ([]TimelineRow, error) {
	var to pgtype.Timestamptz
	if !q.To.IsZero() {
		to = pgtype.Timestamptz{Time: q.To.Add(24 * time.Hour), Valid: true}
	}
	rows, err := r.pool.Query(ctx, `SELECT a.occurred_at, COALESCE(a.actor_id, 0), COALESCE(u.username, ''),
		a.action, a.entity, a.entity_id, a.meta
	FROM audit_logs a LEFT JOIN users u ON u.id = a.actor_id
	WHERE ($1::timestamptz IS NULL OR a.occurred_at >= $1)
		AND ($2::timestamptz IS NULL OR a.occurred_at < $2)
		AND ($3::text IS NULL OR u.username = $3)
		AND ($4::text IS NULL OR a.entity = $4)
		AND ($5::text IS NULL OR a.action = $5)
	ORDER BY a.occurred_at DESC, a.id DESC
	LIMIT $6 OFFSET $7`,
		toPgTime(q.From), to, optionalText(q.Actor), optionalText(q.Entity), optionalText(q.Action), q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var t TimelineRow
		var meta []byte
		if err := row.Scan(&t.At, &t.ActorID, &t.Actor, &t.Action, &t.Entity, &t.EntityID, &meta); err != nil {
			return TimelineRow{}, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &t.Meta); err != nil {
				return TimelineRow{}, err
			}
		}
		return t, nil
	})
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}

var _ Repository = (*PGRepository)(nil)
