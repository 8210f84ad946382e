package pharmacy

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var Categories = []string{
	"tablet", "capsule", "syrup", "injection", "ointment",
	"drops", "inhaler", "suspension", "powder", "other",
}

const (
	DefaultMinStockLevel = 10
	DefaultUnit          = "pieces"
)

// Item is one stocked batch of a medicine. Quantity never goes below zero.
type Item struct {
	ID            uuid.UUID       `json:"id"`
	HospitalID    uuid.UUID       `json:"hospitalId"`
	ItemName      string          `json:"itemName"`
	GenericName   *string         `json:"genericName,omitempty"`
	Category      string          `json:"category"`
	Manufacturer  *string         `json:"manufacturer,omitempty"`
	BatchNumber   string          `json:"batchNumber"`
	ExpiryDate    *time.Time      `json:"expiryDate,omitempty"`
	Quantity      int             `json:"quantity"`
	MinStockLevel int             `json:"minStockLevel"`
	Unit          string          `json:"unit"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	SellingPrice  decimal.Decimal `json:"sellingPrice"`
	MRP           decimal.Decimal `json:"mrp"`
	Description   *string         `json:"description,omitempty"`
	Location      *string         `json:"location,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	IsActive      bool            `json:"isActive"`
	AddedBy       *string         `json:"addedBy,omitempty"`
	LastUpdatedBy *string         `json:"lastUpdatedBy,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// UnitPrice is what one unit sells for: the selling price, else the purchase
// price, else zero.
func (i *Item) UnitPrice() decimal.Decimal {
	if i.SellingPrice.IsPositive() {
		return i.SellingPrice
	}
	if i.PurchasePrice.IsPositive() {
		return i.PurchasePrice
	}
	return decimal.Zero
}

func (i *Item) IsLowStock() bool {
	return i.Quantity <= i.MinStockLevel
}

func (i *Item) IsExpired(now time.Time) bool {
	return i.ExpiryDate != nil && !i.ExpiryDate.After(now)
}

// Filter narrows List. Zero fields are ignored.
type Filter struct {
	Category string
	IsActive *bool
	LowStock bool
	Expired  bool
	Search   string
}

type Stats struct {
	TotalItems     int             `json:"totalItems"`
	ActiveItems    int             `json:"activeItems"`
	LowStockCount  int             `json:"lowStockCount"`
	ExpiredCount   int             `json:"expiredCount"`
	TotalValue     decimal.Decimal `json:"totalValue"`
	CategoryCounts map[string]int  `json:"categoryCounts"`
}
