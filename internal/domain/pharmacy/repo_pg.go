package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

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

const itemCols = `id, hospital_id, item_name, generic_name, category, manufacturer, batch_number, expiry_date,
	quantity, min_stock_level, unit, purchase_price, selling_price, mrp,
	description, location, notes, is_active, added_by, last_updated_by, created_at, updated_at`

const activeBatchIndex = "uq_inventory_active_batch"

func (r *repoPG) Create(ctx context.Context, item *Item) error {
	item.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO pharmacy_inventory (
			id, hospital_id, item_name, generic_name, category, manufacturer, batch_number, expiry_date,
			quantity, min_stock_level, unit, purchase_price, selling_price, mrp,
			description, location, notes, is_active, added_by, last_updated_by
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,
			$11,$12,$13,$14,$15,$16,$17,$18,$19,$19
		)
		RETURNING created_at, updated_at`,
		item.ID, item.HospitalID, item.ItemName, item.GenericName, item.Category, item.Manufacturer,
		item.BatchNumber, item.ExpiryDate,
		item.Quantity, item.MinStockLevel, item.Unit, item.PurchasePrice, item.SellingPrice, item.MRP,
		item.Description, item.Location, item.Notes, item.IsActive, item.AddedBy,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return classify("insert inventory item", err)
	}
	item.LastUpdatedBy = item.AddedBy
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM pharmacy_inventory WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, item *Item) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE pharmacy_inventory SET
			item_name=$2, generic_name=$3, category=$4, manufacturer=$5, batch_number=$6, expiry_date=$7,
			min_stock_level=$8, unit=$9, purchase_price=$10, selling_price=$11, mrp=$12,
			description=$13, location=$14, notes=$15, is_active=$16, last_updated_by=$17, updated_at=NOW()
		WHERE id = $1
		RETURNING quantity, updated_at`,
		item.ID, item.ItemName, item.GenericName, item.Category, item.Manufacturer, item.BatchNumber, item.ExpiryDate,
		item.MinStockLevel, item.Unit, item.PurchasePrice, item.SellingPrice, item.MRP,
		item.Description, item.Location, item.Notes, item.IsActive, item.LastUpdatedBy,
	).Scan(&item.Quantity, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return classify("update inventory item", err)
	}
	return nil
}

func (r *repoPG) Deactivate(ctx context.Context, id uuid.UUID, by string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE pharmacy_inventory SET is_active = FALSE, last_updated_by = $2, updated_at = NOW()
		WHERE id = $1`, id, by)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int, by string) (*Item, error) {
	item, err := scanItem(r.conn(ctx).QueryRow(ctx, `
		UPDATE pharmacy_inventory SET quantity = quantity + $2, last_updated_by = $3, updated_at = NOW()
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING `+itemCols, id, delta, by))
	if err == nil {
		return item, nil
	}
	if db.IsCheckViolation(err) {
		return nil, ErrInsufficientStock
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pharmacy_inventory WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrInsufficientStock
	}
	return nil, ErrNotFound
}

// FindActiveByName prefers an exact match and falls back to a case-insensitive
// one. Among several batches the earliest expiry wins, then the oldest row.
func (r *repoPG) FindActiveByName(ctx context.Context, hospitalID uuid.UUID, name string) (*Item, error) {
	const order = ` ORDER BY expiry_date ASC NULLS LAST, created_at ASC LIMIT 1`
	item, err := scanItem(r.conn(ctx).QueryRow(ctx, `
		SELECT `+itemCols+` FROM pharmacy_inventory
		WHERE hospital_id = $1 AND is_active AND item_name = $2`+order, hospitalID, name))
	if err == nil || !errors.Is(err, ErrNotFound) {
		return item, err
	}

	item, err = scanItem(r.conn(ctx).QueryRow(ctx, `
		SELECT `+itemCols+` FROM pharmacy_inventory
		WHERE hospital_id = $1 AND is_active AND lower(item_name) = lower($2)`+order, hospitalID, name))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return item, err
}

func (r *repoPG) Deduct(ctx context.Context, id uuid.UUID, qty int, by string) (int, error) {
	var remaining int
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE pharmacy_inventory SET quantity = quantity - $2, last_updated_by = $3, updated_at = NOW()
		WHERE id = $1 AND is_active AND quantity >= $2
		RETURNING quantity`, id, qty, by,
	).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrStockChanged
	}
	if err != nil {
		return 0, fmt.Errorf("deduct inventory %s: %w", id, err)
	}
	return remaining, nil
}

func (r *repoPG) List(ctx context.Context, hospitalID uuid.UUID, f Filter, now time.Time, limit, offset int) ([]*Item, int, error) {
	q := db.NewListQuery("pharmacy_inventory", itemCols).
		Where("hospital_id = ?", hospitalID).
		OrderBy("item_name ASC, expiry_date ASC NULLS LAST")
	if f.Category != "" {
		q.Where("category = ?", f.Category)
	}
	if f.IsActive != nil {
		q.Where("is_active = ?", *f.IsActive)
	}
	if f.LowStock {
		q.Where("quantity <= min_stock_level")
	}
	if f.Expired {
		q.Where("expiry_date <= ?", now)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Where("(item_name ILIKE ? OR generic_name ILIKE ? OR manufacturer ILIKE ?)", like(s), like(s), like(s))
	}
	return r.list(ctx, q, limit, offset)
}

func (r *repoPG) LowStock(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*Item, int, error) {
	q := db.NewListQuery("pharmacy_inventory", itemCols).
		Where("hospital_id = ?", hospitalID).
		Where("is_active").
		Where("quantity <= min_stock_level").
		OrderBy("quantity ASC")
	return r.list(ctx, q, limit, offset)
}

func (r *repoPG) Expiring(ctx context.Context, hospitalID uuid.UUID, before time.Time, limit, offset int) ([]*Item, int, error) {
	q := db.NewListQuery("pharmacy_inventory", itemCols).
		Where("hospital_id = ?", hospitalID).
		Where("is_active").
		Where("expiry_date <= ?", before).
		OrderBy("expiry_date ASC")
	return r.list(ctx, q, limit, offset)
}

func (r *repoPG) Stats(ctx context.Context, hospitalID uuid.UUID, now time.Time) (*Stats, error) {
	st := &Stats{CategoryCounts: make(map[string]int)}
	var totalValue decimal.Decimal
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE is_active AND quantity <= min_stock_level),
			COUNT(*) FILTER (WHERE is_active AND expiry_date <= $2),
			COALESCE(SUM(selling_price * quantity) FILTER (WHERE is_active), 0)
		FROM pharmacy_inventory WHERE hospital_id = $1`, hospitalID, now,
	).Scan(&st.TotalItems, &st.ActiveItems, &st.LowStockCount, &st.ExpiredCount, &totalValue)
	if err != nil {
		return nil, fmt.Errorf("inventory stats: %w", err)
	}
	st.TotalValue = totalValue

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT category, COUNT(*) FROM pharmacy_inventory
		WHERE hospital_id = $1 AND is_active
		GROUP BY category`, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("inventory category counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		st.CategoryCounts[category] = n
	}
	return st, rows.Err()
}

func (r *repoPG) list(ctx context.Context, q *db.ListQuery, limit, offset int) ([]*Item, int, error) {
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

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func like(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func classify(op string, err error) error {
	if db.IsUniqueViolation(err) && db.ConstraintName(err) == activeBatchIndex {
		return ErrDuplicateBatch
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanItem(row pgx.Row) (*Item, error) {
	var i Item
	err := row.Scan(
		&i.ID, &i.HospitalID, &i.ItemName, &i.GenericName, &i.Category, &i.Manufacturer, &i.BatchNumber, &i.ExpiryDate,
		&i.Quantity, &i.MinStockLevel, &i.Unit, &i.PurchasePrice, &i.SellingPrice, &i.MRP,
		&i.Description, &i.Location, &i.Notes, &i.IsActive, &i.AddedBy, &i.LastUpdatedBy, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	return &i, nil
}
