package pharmacy

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("inventory item not found")
	ErrDuplicateBatch    = errors.New("item with same name and batch number already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStockChanged means a conditional deduction matched no row: the item
	// was deactivated or its quantity dropped below the requested amount.
	ErrStockChanged = errors.New("stock changed concurrently")
)

type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	// Update writes every field except quantity.
	Update(ctx context.Context, item *Item) error
	Deactivate(ctx context.Context, id uuid.UUID, by string) error
	// AdjustQuantity adds delta in one conditional statement and fails with
	// ErrInsufficientStock instead of going negative.
	AdjustQuantity(ctx context.Context, id uuid.UUID, delta int, by string) (*Item, error)
	// FindActiveByName returns nil, nil when no active item matches.
	FindActiveByName(ctx context.Context, hospitalID uuid.UUID, name string) (*Item, error)
	// Deduct subtracts qty only if at least qty is on hand and returns the
	// remaining quantity, or ErrStockChanged.
	Deduct(ctx context.Context, id uuid.UUID, qty int, by string) (int, error)
	List(ctx context.Context, hospitalID uuid.UUID, f Filter, now time.Time, limit, offset int) ([]*Item, int, error)
	LowStock(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*Item, int, error)
	Expiring(ctx context.Context, hospitalID uuid.UUID, before time.Time, limit, offset int) ([]*Item, int, error)
	Stats(ctx context.Context, hospitalID uuid.UUID, now time.Time) (*Stats, error)
}
