package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const entryColumns = `id, patient_id, patient_name, priority, status, token_number, added_at,
	nurse_completed_at, timeline_ready_at, started_at, completed_at, cancelled_at,
	attention_reason, attention_at, version`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var reason *string
	var flaggedAt *time.Time

	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&e.PatientName,
		&e.Priority,
		&e.Status,
		&e.TokenNumber,
		&e.AddedAt,
		&e.NurseCompletedAt,
		&e.TimelineReadyAt,
		&e.StartedAt,
		&e.CompletedAt,
		&e.CancelledAt,
		&reason,
		&flaggedAt,
		&e.Version,
	)
	if err != nil {
		return nil, err
	}

	if reason != nil && flaggedAt != nil {
		e.Attention = &Attention{Reason: *reason, FlaggedAt: *flaggedAt}
	}
	return &e, nil
}

// SaveEntry upserts e. The version guard keeps a stale writer from
// overwriting a newer row.
func (r *PgRepository) SaveEntry(ctx context.Context, e Entry) error {
	var reason *string
	var flaggedAt *time.Time
	if e.Attention != nil {
		reason = &e.Attention.Reason
		flaggedAt = &e.Attention.FlaggedAt
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO queue_entries (`+entryColumns+`, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    nurse_completed_at = EXCLUDED.nurse_completed_at,
		    timeline_ready_at = EXCLUDED.timeline_ready_at,
		    started_at = EXCLUDED.started_at,
		    completed_at = EXCLUDED.completed_at,
		    cancelled_at = EXCLUDED.cancelled_at,
		    attention_reason = EXCLUDED.attention_reason,
		    attention_at = EXCLUDED.attention_at,
		    version = EXCLUDED.version,
		    updated_at = now()
		WHERE queue_entries.version < EXCLUDED.version
	`,
		e.ID, e.PatientID, e.PatientName, e.Priority, e.Status, e.TokenNumber, e.AddedAt,
		e.NurseCompletedAt, e.TimelineReadyAt, e.StartedAt, e.CompletedAt, e.CancelledAt,
		reason, flaggedAt, e.Version,
	)
	if err != nil {
		return fmt.Errorf("save queue entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save queue entry %s: %w", e.ID, ErrConcurrentModification)
	}

	return nil
}

func (r *PgRepository) LoadEntries(ctx context.Context, since time.Time) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE status NOT IN ('completed', 'cancelled')
		   OR added_at >= $1
		ORDER BY added_at, token_number
	`, since)
	if err != nil {
		return nil, fmt.Errorf("load queue entries: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, queue_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.QueueID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
