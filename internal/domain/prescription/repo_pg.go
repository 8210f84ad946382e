package prescription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opdcare/opd/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const rxCols = `id, hospital_id, patient_id, visit_id, doctor_id, consulting_doctor, diagnosis,
	prescribed_date, notes, medications, created_at, updated_at`

// Create inserts rx, joining the transaction in ctx when there is one.
func (r *repoPG) Create(ctx context.Context, rx *Prescription) error {
	rx.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medication_history (id, hospital_id, patient_id, visit_id, doctor_id, consulting_doctor,
			diagnosis, prescribed_date, notes, medications)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		rx.ID, rx.HospitalID, rx.PatientID, rx.VisitID, rx.DoctorID, rx.ConsultingDoctor,
		rx.Diagnosis, rx.PrescribedDate, rx.Notes, rx.Medications,
	).Scan(&rx.CreatedAt, &rx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert medication history: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+` FROM medication_history WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, rx *Prescription) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medication_history SET
			consulting_doctor=$2, diagnosis=$3, prescribed_date=$4, notes=$5, medications=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		rx.ID, rx.ConsultingDoctor, rx.Diagnosis, rx.PrescribedDate, rx.Notes, rx.Medications,
	).Scan(&rx.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete fails with ErrHasSale while a sale references the row.
func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medication_history WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrHasSale
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	q := db.NewListQuery("medication_history", rxCols).
		Where("patient_id = ?", patientID).
		OrderBy("prescribed_date DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	sql, args := q.DataSQL(limit, offset)
	rxs, err := r.query(ctx, sql, args...)
	return rxs, total, err
}

func (r *repoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error) {
	return r.query(ctx, `SELECT `+rxCols+` FROM medication_history WHERE visit_id = $1 ORDER BY prescribed_date DESC`, visitID)
}

func (r *repoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rxs []*Prescription
	for rows.Next() {
		rx, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		rxs = append(rxs, rx)
	}
	return rxs, rows.Err()
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var rx Prescription
	err := row.Scan(
		&rx.ID, &rx.HospitalID, &rx.PatientID, &rx.VisitID, &rx.DoctorID, &rx.ConsultingDoctor, &rx.Diagnosis,
		&rx.PrescribedDate, &rx.Notes, &rx.Medications, &rx.CreatedAt, &rx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	return &rx, nil
}
