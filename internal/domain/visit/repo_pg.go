package visit

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

const visitCols = `id, hospital_id, patient_id, visit_date, status, nurse_id, doctor_id, consulting_doctor,
	pre_consultation, consultation, pre_consultation_completed_at, consultation_completed_at,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visits (id, hospital_id, patient_id, visit_date, status, consulting_doctor,
			pre_consultation, consultation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		v.ID, v.HospitalID, v.PatientID, v.VisitDate, v.Status, v.ConsultingDoctor,
		v.PreConsultation, v.Consultation,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visits WHERE id = $1`, id))
}

func (r *repoPG) Exists(ctx context.Context, hospitalID, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM visits WHERE id = $1 AND hospital_id = $2)`, id, hospitalID,
	).Scan(&exists)
	return exists, err
}

func (r *repoPG) Update(ctx context.Context, v *Visit, expectedStatus string) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE visits SET
			status=$2, nurse_id=$3, doctor_id=$4, consulting_doctor=$5,
			pre_consultation=$6, consultation=$7,
			pre_consultation_completed_at=$8, consultation_completed_at=$9, updated_at=NOW()
		WHERE id = $1 AND status = $10
		RETURNING updated_at`,
		v.ID, v.Status, v.NurseID, v.DoctorID, v.ConsultingDoctor,
		v.PreConsultation, v.Consultation,
		v.PreConsultationCompletedAt, v.ConsultationCompletedAt, expectedStatus,
	).Scan(&v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStatusConflict
	}
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	q := db.NewListQuery("visits", visitCols).
		Where("patient_id = ?", patientID).
		OrderBy("visit_date DESC")
	return r.list(ctx, q, limit, offset)
}

func (r *repoPG) ListByHospital(ctx context.Context, hospitalID uuid.UUID, f Filter, limit, offset int) ([]*Visit, int, error) {
	q := db.NewListQuery("visits", visitCols).
		Where("hospital_id = ?", hospitalID).
		OrderBy("visit_date DESC")
	if f.Status != "" {
		q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q.Where("visit_date >= ?", *f.From)
	}
	if f.To != nil {
		q.Where("visit_date <= ?", *f.To)
	}
	if f.DoctorID != "" {
		q.Where("doctor_id = ?", f.DoctorID)
	}
	if f.NurseID != "" {
		q.Where("nurse_id = ?", f.NurseID)
	}
	return r.list(ctx, q, limit, offset)
}

func (r *repoPG) list(ctx context.Context, q *db.ListQuery, limit, offset int) ([]*Visit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	sql, args := q.DataSQL(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var visits []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		visits = append(visits, v)
	}
	return visits, total, rows.Err()
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(
		&v.ID, &v.HospitalID, &v.PatientID, &v.VisitDate, &v.Status, &v.NurseID, &v.DoctorID, &v.ConsultingDoctor,
		&v.PreConsultation, &v.Consultation, &v.PreConsultationCompletedAt, &v.ConsultationCompletedAt,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	return &v, nil
}
