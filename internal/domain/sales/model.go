package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is one dispensed line. Name, batch and price are snapshots taken at
// sale time.
type Item struct {
	InventoryID uuid.UUID       `json:"inventoryId"`
	ItemName    string          `json:"itemName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	BatchNumber string          `json:"batchNumber"`
}

func NewItem(inventoryID uuid.UUID, name, batch string, qty int, unitPrice decimal.Decimal) Item {
	return Item{
		InventoryID: inventoryID,
		ItemName:    name,
		Quantity:    qty,
		UnitPrice:   unitPrice,
		TotalPrice:  unitPrice.Mul(decimal.NewFromInt(int64(qty))),
		BatchNumber: batch,
	}
}

// Record is an immutable pharmacy sale tied to exactly one prescription.
type Record struct {
	ID             uuid.UUID       `json:"id"`
	HospitalID     uuid.UUID       `json:"hospitalId"`
	PatientID      uuid.UUID       `json:"patientId"`
	VisitID        uuid.UUID       `json:"visitId"`
	PrescriptionID uuid.UUID       `json:"prescriptionId"`
	Items          []Item          `json:"items"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	SaleDate       time.Time       `json:"saleDate"`
	SoldBy         *string         `json:"soldBy,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func ComputeTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.TotalPrice)
	}
	return total
}

// Consistent reports whether every line total is unit price times quantity,
// the header equals their sum, and nothing is negative.
func (r *Record) Consistent() bool {
	if len(r.Items) == 0 || r.TotalAmount.IsNegative() {
		return false
	}
	for _, it := range r.Items {
		if it.Quantity < 1 || it.UnitPrice.IsNegative() {
			return false
		}
		if !it.TotalPrice.Equal(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))) {
			return false
		}
	}
	return r.TotalAmount.Equal(ComputeTotal(r.Items))
}

// Period bounds a hospital listing. Nil ends are open.
type Period struct {
	From *time.Time
	To   *time.Time
}

// Summary is the count and amount of every sale in a listing, not just the page.
type Summary struct {
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}
