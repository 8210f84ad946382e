package validate

import (
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestRequiredUUID(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name    string
		value   interface{}
		wantErr bool
	}{
		{"set", id, false},
		{"nil uuid", uuid.Nil, true},
		{"pointer set", &id, false},
		{"pointer nil", (*uuid.UUID)(nil), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Validate(tt.value, RequiredUUID)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		phone   string
		wantErr bool
	}{
		{"9876543210", false},
		{"+919876543210", false},
		{"", false},
		{"12345", true},
		{"98765-43210", true},
		{"+1234567890123456", true},
	}
	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			err := validation.Validate(tt.phone, Phone)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.phone, err, tt.wantErr)
			}
		})
	}
}

func TestNonNegativeMoney(t *testing.T) {
	neg := decimal.NewFromInt(-1)
	tests := []struct {
		name    string
		value   interface{}
		wantErr bool
	}{
		{"zero", decimal.Zero, false},
		{"positive", decimal.RequireFromString("12.50"), false},
		{"negative", decimal.RequireFromString("-0.01"), true},
		{"nil pointer", (*decimal.Decimal)(nil), false},
		{"negative pointer", &neg, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Validate(tt.value, NonNegativeMoney)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-31")
	if err != nil || d.Year() != 2026 || d.Month() != 3 || d.Day() != 31 {
		t.Errorf("ParseDate(date) = %v, %v", d, err)
	}
	if _, err := ParseDate("2026-03-31T10:00:00Z"); err != nil {
		t.Errorf("ParseDate(rfc3339) error: %v", err)
	}
	if err := validation.Validate("31/03/2026", Date); err == nil {
		t.Error("expected error for non-ISO date")
	}
}
