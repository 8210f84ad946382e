package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/internal/platform/db"
	"github.com/opdcare/opd/pkg/response"
)

func (f *fixture) post(t *testing.T, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/medication-history/billing", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithPrincipal(req.Context(), f.doctor()))
	rec := httptest.NewRecorder()
	err := NewHandler(f.svc).Create(echo.New().NewContext(req, rec))
	return rec, err
}

func (f *fixture) body(meds string) string {
	return fmt.Sprintf(`{"patientId":%q,"visitId":%q,"diagnosis":"Fever","medications":%s}`, f.patientID, f.visitID, meds)
}

const paracetamolLine = `[{"medicineName":"Paracetamol","dosage":"500mg","days":5,"timing":{"morning":true,"night":true},"meal":{"afterMeal":true}}]`

func assertHTTPError(t *testing.T, err error, status int, message string) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	if he.Code != status || he.Message != message {
		t.Errorf("expected %d %q, got %d %q", status, message, he.Code, he.Message)
	}
}

func TestHandler_Create(t *testing.T) {
	f := newFixture()
	f.stockItem("Paracetamol", 20, "2.00")

	rec, err := f.post(t, f.body(paracetamolLine))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			MedicationHistory struct {
				ID          string `json:"id"`
				Medications []struct {
					MedicineName string `json:"medicineName"`
				} `json:"medications"`
			} `json:"medicationHistory"`
			SalesRecord struct {
				TotalAmount string `json:"totalAmount"`
			} `json:"salesRecord"`
			DeductedItems []DeductedItem `json:"deductedItems"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Data.MedicationHistory.ID == "" {
		t.Errorf("unexpected response: %s", rec.Body.String())
	}
	if len(resp.Data.DeductedItems) != 1 || resp.Data.DeductedItems[0].QuantityDeducted != 10 {
		t.Errorf("unexpected deducted items: %+v", resp.Data.DeductedItems)
	}
	if resp.Data.SalesRecord.TotalAmount != "20" {
		t.Errorf("expected total 20, got %q", resp.Data.SalesRecord.TotalAmount)
	}
}

func TestHandler_Create_Shortage(t *testing.T) {
	f := newFixture()
	f.stockItem("Paracetamol", 5, "2.00")

	rec, err := f.post(t, f.body(paracetamolLine))
	if err != nil {
		t.Fatalf("shortage is written directly, got error %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var env response.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Success || env.Message != "Insufficient inventory for some medications" {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if len(env.InsufficientStock) != 1 || env.InsufficientStock[0] != "Paracetamol - Required: 10, Available: 5" {
		t.Errorf("unexpected shortage list: %q", env.InsufficientStock)
	}
}

func TestHandler_Create_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		meds    string
		status  int
		message string
	}{
		{
			name:    "no timing",
			meds:    `[{"medicineName":"Paracetamol","days":5,"timing":{}}]`,
			status:  http.StatusBadRequest,
			message: "No timing selected for medication: Paracetamol",
		},
		{
			name:    "invalid data",
			meds:    `[{"medicineName":"","days":5,"timing":{"morning":true}}]`,
			status:  http.StatusBadRequest,
			message: "Invalid medication data for: Unknown",
		},
		{
			name:    "no medications",
			meds:    `[]`,
			status:  http.StatusBadRequest,
			message: "At least one medication is required",
		},
		{
			name: "concurrent change",
			setup: func(f *fixture) {
				f.stock.beforeDeduct = func() {
					for _, item := range f.stock.items {
						item.Quantity = 0
					}
				}
			},
			meds:    paracetamolLine,
			status:  http.StatusConflict,
			message: "Stock changed during processing for: Paracetamol",
		},
		{
			name: "commit timeout",
			setup: func(f *fixture) {
				f.tx.commitErr = func() error { return fmt.Errorf("%w: %w", db.ErrTxTimeout, context.DeadlineExceeded) }
			},
			meds:    paracetamolLine,
			status:  http.StatusServiceUnavailable,
			message: "Billing transaction timed out",
		},
		{
			name:    "unexpected error",
			setup:   func(f *fixture) { f.sales.err = errors.New("connection reset") },
			meds:    paracetamolLine,
			status:  http.StatusInternalServerError,
			message: "Failed to add medication history with billing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.stockItem("Paracetamol", 20, "2.00")
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.post(t, f.body(tt.meds))
			assertHTTPError(t, err, tt.status, tt.message)
		})
	}
}

func TestHandler_Create_UnknownVisit(t *testing.T) {
	f := newFixture()
	body := fmt.Sprintf(`{"patientId":%q,"visitId":"8b6f1c2e-7c55-4e43-9d0e-0c1f2a3b4c5d","medications":%s}`, f.patientID, paracetamolLine)
	_, err := f.post(t, body)
	assertHTTPError(t, err, http.StatusBadRequest, "Visit not found")
}

func TestHandler_Create_MissingIDs(t *testing.T) {
	f := newFixture()
	_, err := f.post(t, `{"medications":[]}`)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestToHTTP_InvalidTotal(t *testing.T) {
	assertHTTPError(t, toHTTP(ErrInvalidTotalAmount), http.StatusInternalServerError, "Invalid total amount calculated")
}
