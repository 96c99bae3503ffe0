package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	if err := row.Scan(&r.ID, &r.PatientID, &r.Kind, &r.Body, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PgStore) Append(ctx context.Context, rec Record) (*Record, error) {
	rec, err := prepare(rec, time.Now())
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO clinical_records (id, patient_id, kind, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, patient_id, kind, body, created_at
	`, rec.ID, rec.PatientID, rec.Kind, []byte(rec.Body), rec.CreatedAt)

	out, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("insert clinical record: %w", err)
	}
	return out, nil
}

func (s *PgStore) List(ctx context.Context, patientID string, kind Kind) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, patient_id, kind, body, created_at
		FROM clinical_records
		WHERE patient_id = $1 AND kind = $2
		ORDER BY created_at DESC
	`, patientID, kind)
	if err != nil {
		return nil, fmt.Errorf("list clinical records: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) HasSince(ctx context.Context, patientID string, since time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM clinical_records
			WHERE patient_id = $1 AND created_at >= $2
		)
	`, patientID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check clinical records: %w", err)
	}
	return exists, nil
}
