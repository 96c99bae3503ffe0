package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

const patientColumns = `id, uhid, name, phone, age, gender, visit_count, last_visit, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var lastVisit *time.Time

	err := row.Scan(
		&p.ID,
		&p.UHID,
		&p.Name,
		&p.Phone,
		&p.Age,
		&p.Gender,
		&p.VisitCount,
		&lastVisit,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	p.LastVisit = lastVisit
	return &p, nil
}

func (d *PgDirectory) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check patient exists: %w", err)
	}
	return exists, nil
}

func (d *PgDirectory) Get(ctx context.Context, id string) (*Patient, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (d *PgDirectory) GetByUHID(ctx context.Context, uhid string) (*Patient, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE uhid = $1
	`, uhid)
	return scanPatient(row)
}

// Create inserts a patient. A UHID already held by another patient yields
// ErrDuplicateUHID.
func (d *PgDirectory) Create(ctx context.Context, p Patient) (*Patient, error) {
	row := d.pool.QueryRow(ctx, `
		INSERT INTO patients (id, uhid, name, phone, age, gender, visit_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, now())
		RETURNING `+patientColumns,
		p.ID, p.UHID, p.Name, p.Phone, p.Age, p.Gender)

	created, err := scanPatient(row)
	if err != nil {
		if isDuplicateUHID(err) {
			return nil, ErrDuplicateUHID
		}
		return nil, fmt.Errorf("insert patient: %w", err)
	}
	return created, nil
}

// uhidConstraint is the name Postgres gives the UNIQUE on patients.uhid.
const uhidConstraint = "patients_uhid_key"

func isDuplicateUHID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == uhidConstraint
}
