package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seva/seva/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const entryCols = `id, appointment_id, visitor_id, provider_id, service_day, position, status,
	priority, estimated_wait_min, mode, checked_in_at, assisted_by, location, note,
	created_at, updated_at`

func (r *repoPG) scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.AppointmentID, &e.VisitorID, &e.ProviderID, &e.ServiceDay, &e.Position, &e.Status,
		&e.Priority, &e.EstimatedWaitMin, &e.Mode, &e.CheckedInAt, &e.AssistedBy, &e.Location, &e.Note,
		&e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func (r *repoPG) CreateEntry(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO queue_entries (id, appointment_id, visitor_id, provider_id, service_day, position,
			status, priority, estimated_wait_min, mode, checked_in_at, assisted_by, location, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		e.ID, e.AppointmentID, e.VisitorID, e.ProviderID, e.ServiceDay, e.Position,
		e.Status, e.Priority, e.EstimatedWaitMin, e.Mode, e.CheckedInAt, e.AssistedBy, e.Location, e.Note)
	return err
}

func (r *repoPG) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return r.scanEntry(r.conn(ctx).QueryRow(ctx, `SELECT `+entryCols+` FROM queue_entries WHERE id = $1`, id))
}

func (r *repoPG) CountActiveForProvider(ctx context.Context, providerID uuid.UUID, day time.Time) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM queue_entries
		WHERE provider_id = $1 AND service_day = $2 AND status IN ('waiting','in_progress')`,
		providerID, day).Scan(&count)
	return count, err
}

func (r *repoPG) FindActiveForVisitor(ctx context.Context, visitorID uuid.UUID, day time.Time) (*Entry, error) {
	e, err := r.scanEntry(r.conn(ctx).QueryRow(ctx, `
		SELECT `+entryCols+` FROM queue_entries
		WHERE visitor_id = $1 AND service_day = $2 AND status IN ('waiting','in_progress')
		LIMIT 1`,
		visitorID, day))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *repoPG) ShiftProviderQueue(ctx context.Context, providerID uuid.UUID, day time.Time, excluding uuid.UUID, minPosition, positionDelta, waitDelta int) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE queue_entries
		SET position = position + $4,
		    estimated_wait_min = GREATEST(0, estimated_wait_min + $5),
		    updated_at = NOW()
		WHERE provider_id = $1 AND service_day = $2 AND id <> $3
		  AND status IN ('waiting','in_progress') AND position >= $6`,
		providerID, day, excluding, positionDelta, waitDelta, minPosition)
	return err
}

func (r *repoPG) ListActiveForProvider(ctx context.Context, providerID uuid.UUID, day time.Time) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM queue_entries
		WHERE provider_id = $1 AND service_day = $2 AND status IN ('waiting','in_progress')
		ORDER BY position`,
		providerID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Entry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, nil
}

func (r *repoPG) UpdateEntryStatus(ctx context.Context, id uuid.UUID, status Status) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE queue_entries SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	return err
}

func (r *repoPG) AssignProvider(ctx context.Context, id, providerID uuid.UUID, position, waitMin int) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE queue_entries
		SET provider_id=$2, position=$3, estimated_wait_min=$4, updated_at=NOW()
		WHERE id = $1`,
		id, providerID, position, waitMin)
	return err
}
