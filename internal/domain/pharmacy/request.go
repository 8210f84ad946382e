package pharmacy

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opdcare/opd/internal/platform/validate"
)

func categoryIn() validation.Rule {
	vals := make([]interface{}, len(Categories))
	for i, c := range Categories {
		vals[i] = c
	}
	return validation.In(vals...)
}

type CreateRequest struct {
	HospitalID    uuid.UUID        `json:"hospitalId"`
	ItemName      string           `json:"itemName"`
	GenericName   *string          `json:"genericName"`
	Category      string           `json:"category"`
	Manufacturer  *string          `json:"manufacturer"`
	BatchNumber   string           `json:"batchNumber"`
	ExpiryDate    string           `json:"expiryDate"`
	Quantity      int              `json:"quantity"`
	MinStockLevel *int             `json:"minStockLevel"`
	Unit          string           `json:"unit"`
	PurchasePrice decimal.Decimal  `json:"purchasePrice"`
	SellingPrice  decimal.Decimal  `json:"sellingPrice"`
	MRP           *decimal.Decimal `json:"mrp"`
	Description   *string          `json:"description"`
	Location      *string          `json:"location"`
	Notes         *string          `json:"notes"`
}

func (r *CreateRequest) Validate() error {
	r.ItemName = strings.TrimSpace(r.ItemName)
	r.BatchNumber = strings.TrimSpace(r.BatchNumber)
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	return validation.ValidateStruct(r,
		validation.Field(&r.ItemName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Category, validation.Required, categoryIn()),
		validation.Field(&r.ExpiryDate, validate.Date),
		validation.Field(&r.Quantity, validation.Min(0)),
		validation.Field(&r.MinStockLevel, validation.Min(0)),
		validation.Field(&r.PurchasePrice, validate.NonNegativeMoney),
		validation.Field(&r.SellingPrice, validate.NonNegativeMoney),
		validation.Field(&r.MRP, validate.NonNegativeMoney),
	)
}

func (r *CreateRequest) toItem(hospitalID uuid.UUID, by string) *Item {
	item := &Item{
		HospitalID:    hospitalID,
		ItemName:      r.ItemName,
		GenericName:   r.GenericName,
		Category:      r.Category,
		Manufacturer:  r.Manufacturer,
		BatchNumber:   r.BatchNumber,
		ExpiryDate:    optionalDate(r.ExpiryDate),
		Quantity:      r.Quantity,
		MinStockLevel: DefaultMinStockLevel,
		Unit:          r.Unit,
		PurchasePrice: r.PurchasePrice,
		SellingPrice:  r.SellingPrice,
		MRP:           r.SellingPrice,
		Description:   r.Description,
		Location:      r.Location,
		Notes:         r.Notes,
		IsActive:      true,
		AddedBy:       &by,
	}
	if r.MinStockLevel != nil {
		item.MinStockLevel = *r.MinStockLevel
	}
	if item.Unit == "" {
		item.Unit = DefaultUnit
	}
	if r.MRP != nil {
		item.MRP = *r.MRP
	}
	return item
}

var errQuantityReadOnly = errors.New("quantity can only be changed through the quantity adjustment endpoint")

// UpdateRequest is a partial update. Quantity is rejected here.
type UpdateRequest struct {
	ItemName      *string          `json:"itemName"`
	GenericName   *string          `json:"genericName"`
	Category      *string          `json:"category"`
	Manufacturer  *string          `json:"manufacturer"`
	BatchNumber   *string          `json:"batchNumber"`
	ExpiryDate    *string          `json:"expiryDate"`
	Quantity      *int             `json:"quantity"`
	MinStockLevel *int             `json:"minStockLevel"`
	Unit          *string          `json:"unit"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice"`
	SellingPrice  *decimal.Decimal `json:"sellingPrice"`
	MRP           *decimal.Decimal `json:"mrp"`
	Description   *string          `json:"description"`
	Location      *string          `json:"location"`
	Notes         *string          `json:"notes"`
	IsActive      *bool            `json:"isActive"`
}

func (r *UpdateRequest) Validate() error {
	if r.Quantity != nil {
		return errQuantityReadOnly
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.ItemName, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Category, validation.NilOrNotEmpty, categoryIn()),
		validation.Field(&r.ExpiryDate, validate.Date),
		validation.Field(&r.MinStockLevel, validation.Min(0)),
		validation.Field(&r.PurchasePrice, validate.NonNegativeMoney),
		validation.Field(&r.SellingPrice, validate.NonNegativeMoney),
		validation.Field(&r.MRP, validate.NonNegativeMoney),
	)
}

func (r *UpdateRequest) apply(item *Item, by string) {
	if r.ItemName != nil {
		item.ItemName = strings.TrimSpace(*r.ItemName)
	}
	if r.GenericName != nil {
		item.GenericName = r.GenericName
	}
	if r.Category != nil {
		item.Category = *r.Category
	}
	if r.Manufacturer != nil {
		item.Manufacturer = r.Manufacturer
	}
	if r.BatchNumber != nil {
		item.BatchNumber = strings.TrimSpace(*r.BatchNumber)
	}
	if r.ExpiryDate != nil {
		item.ExpiryDate = optionalDate(*r.ExpiryDate)
	}
	if r.MinStockLevel != nil {
		item.MinStockLevel = *r.MinStockLevel
	}
	if r.Unit != nil && *r.Unit != "" {
		item.Unit = *r.Unit
	}
	if r.PurchasePrice != nil {
		item.PurchasePrice = *r.PurchasePrice
	}
	if r.SellingPrice != nil {
		item.SellingPrice = *r.SellingPrice
	}
	if r.MRP != nil {
		item.MRP = *r.MRP
	}
	if r.Description != nil {
		item.Description = r.Description
	}
	if r.Location != nil {
		item.Location = r.Location
	}
	if r.Notes != nil {
		item.Notes = r.Notes
	}
	if r.IsActive != nil {
		item.IsActive = *r.IsActive
	}
	item.LastUpdatedBy = &by
}

type AdjustRequest struct {
	QuantityChange *int `json:"quantityChange"`
}

func (r *AdjustRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.QuantityChange, validation.NotNil),
	)
}

func optionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := validate.ParseDate(s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
