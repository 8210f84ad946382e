package sales

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

const saleCols = `id, hospital_id, patient_id, visit_id, prescription_id, total_amount, sale_date, sold_by, created_at`

const itemCols = `sale_id, inventory_id, item_name, quantity, unit_price, total_price, batch_number`

// Create joins the transaction in ctx. Without one it opens its own so the
// header never exists without its lines.
func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	if db.TxFromContext(ctx) != nil {
		return r.insert(ctx, rec)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := r.insert(db.WithTx(ctx, tx), rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *repoPG) insert(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	q := r.conn(ctx)
	err := q.QueryRow(ctx, `
		INSERT INTO pharmacy_sales (id, hospital_id, patient_id, visit_id, prescription_id, total_amount, sale_date, sold_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		rec.ID, rec.HospitalID, rec.PatientID, rec.VisitID, rec.PrescriptionID, rec.TotalAmount, rec.SaleDate, rec.SoldBy,
	).Scan(&rec.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyBilled
		}
		return fmt.Errorf("insert sales record: %w", err)
	}

	for i, it := range rec.Items {
		_, err := q.Exec(ctx, `
			INSERT INTO pharmacy_sale_items (sale_id, line_no, inventory_id, item_name, quantity, unit_price, total_price, batch_number)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rec.ID, i+1, it.InventoryID, it.ItemName, it.Quantity, it.UnitPrice, it.TotalPrice, it.BatchNumber,
		)
		if err != nil {
			return fmt.Errorf("insert sale item %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return r.getOne(ctx, `SELECT `+saleCols+` FROM pharmacy_sales WHERE id = $1`, id)
}

func (r *repoPG) GetByPrescription(ctx context.Context, prescriptionID uuid.UUID) (*Record, error) {
	return r.getOne(ctx, `SELECT `+saleCols+` FROM pharmacy_sales WHERE prescription_id = $1`, prescriptionID)
}

func (r *repoPG) getOne(ctx context.Context, sql string, arg interface{}) (*Record, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx, sql, arg))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, []*Record{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repoPG) ListByHospital(ctx context.Context, hospitalID uuid.UUID, p Period, limit, offset int) ([]*Record, Summary, error) {
	q := db.NewListQuery("pharmacy_sales", saleCols).
		Where("hospital_id = ?", hospitalID).
		OrderBy("sale_date DESC")
	if p.From != nil {
		q.Where("sale_date >= ?", *p.From)
	}
	if p.To != nil {
		q.Where("sale_date <= ?", *p.To)
	}

	var sum Summary
	if err := r.conn(ctx).QueryRow(ctx, q.AggregateSQL("COUNT(*), COALESCE(SUM(total_amount), 0)"), q.Args()...).
		Scan(&sum.Count, &sum.TotalAmount); err != nil {
		return nil, sum, err
	}
	sql, args := q.DataSQL(limit, offset)
	recs, err := r.list(ctx, sql, args...)
	return recs, sum, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	q := db.NewListQuery("pharmacy_sales", saleCols).
		Where("patient_id = ?", patientID).
		OrderBy("sale_date DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	sql, args := q.DataSQL(limit, offset)
	recs, err := r.list(ctx, sql, args...)
	return recs, total, err
}

func (r *repoPG) ExistsForPrescription(ctx context.Context, prescriptionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pharmacy_sales WHERE prescription_id = $1)`, prescriptionID,
	).Scan(&exists)
	return exists, err
}

func (r *repoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// loadItems fills Items of every record with one query.
func (r *repoPG) loadItems(ctx context.Context, recs []*Record) error {
	if len(recs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(recs))
	byID := make(map[uuid.UUID]*Record, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
		byID[rec.ID] = rec
		rec.Items = []Item{}
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM pharmacy_sale_items WHERE sale_id = ANY($1) ORDER BY sale_id, line_no`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var saleID uuid.UUID
		var it Item
		var batch *string
		if err := rows.Scan(&saleID, &it.InventoryID, &it.ItemName, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &batch); err != nil {
			return err
		}
		if batch != nil {
			it.BatchNumber = *batch
		}
		if rec, ok := byID[saleID]; ok {
			rec.Items = append(rec.Items, it)
		}
	}
	return rows.Err()
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.HospitalID, &rec.PatientID, &rec.VisitID, &rec.PrescriptionID,
		&rec.TotalAmount, &rec.SaleDate, &rec.SoldBy, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	return &rec, nil
}
