package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/opdcare/opd/internal/domain/pharmacy"
	"github.com/opdcare/opd/internal/domain/prescription"
)

// StockReader finds the active batch a medicine name resolves to, or nil.
type StockReader interface {
	FindActiveByName(ctx context.Context, hospitalID uuid.UUID, name string) (*pharmacy.Item, error)
}

// Allocation is one resolved line: the batch to deduct from and how much.
type Allocation struct {
	Line     prescription.MedicationLine
	Item     *pharmacy.Item
	Quantity int
}

// CheckAvailability resolves every line and collects a shortage entry for
// each one that cannot be filled. A malformed line aborts with its
// MedicationError. Lines resolving to the same batch draw on one balance.
func CheckAvailability(ctx context.Context, stock StockReader, hospitalID uuid.UUID, lines []prescription.MedicationLine) ([]Allocation, []string, error) {
	var (
		allocs    []Allocation
		shortages []string
		reserved  = make(map[uuid.UUID]int)
	)
	for _, line := range lines {
		qty, err := RequiredQuantity(line)
		if err != nil {
			return nil, nil, err
		}

		item, err := stock.FindActiveByName(ctx, hospitalID, strings.TrimSpace(line.MedicineName))
		if err != nil {
			return nil, nil, fmt.Errorf("look up %q: %w", line.MedicineName, err)
		}
		if item == nil {
			shortages = append(shortages, line.MedicineName+" - Not found in inventory")
			continue
		}

		available := item.Quantity - reserved[item.ID]
		if available < qty {
			shortages = append(shortages, fmt.Sprintf("%s - Required: %d, Available: %d", line.MedicineName, qty, available))
			continue
		}
		reserved[item.ID] += qty
		allocs = append(allocs, Allocation{Line: line, Item: item, Quantity: qty})
	}
	return allocs, shortages, nil
}
