package billing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opdcare/opd/internal/domain/prescription"
	"github.com/opdcare/opd/internal/platform/db"
)

var (
	ErrPatientNotFound = prescription.ErrPatientNotFound
	ErrVisitNotFound   = prescription.ErrVisitNotFound
	ErrNoMedications   = prescription.ErrNoMedications

	ErrInvalidMedicationData = errors.New("invalid medication data")
	ErrNoTimingSelected      = errors.New("no timing selected")
	ErrInvalidQuantity       = errors.New("invalid quantity calculated")

	ErrInsufficientStock     = errors.New("insufficient inventory")
	ErrConcurrentStockChange = errors.New("stock changed during processing")
	ErrInvalidTotalAmount    = errors.New("invalid total amount calculated")
	ErrCommitTimeout         = db.ErrTxTimeout
)

// MedicationError rejects one malformed medication line. Kind is one of
// ErrInvalidMedicationData, ErrNoTimingSelected or ErrInvalidQuantity.
type MedicationError struct {
	Kind     error
	Medicine string
}

func (e *MedicationError) Error() string {
	return fmt.Sprintf("%s for %s", e.Kind, e.Name())
}

func (e *MedicationError) Unwrap() error { return e.Kind }

// Name is the medicine as the prescriber wrote it, or "Unknown".
func (e *MedicationError) Name() string {
	if strings.TrimSpace(e.Medicine) == "" {
		return "Unknown"
	}
	return e.Medicine
}

// ShortageError lists every line that could not be filled.
type ShortageError struct {
	Items []string
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInsufficientStock, strings.Join(e.Items, "; "))
}

func (e *ShortageError) Unwrap() error { return ErrInsufficientStock }

// ConcurrentStockChangeError means another writer consumed the stock after
// it was checked. The caller may retry the whole request.
type ConcurrentStockChangeError struct {
	Medicine string
	Err      error
}

func (e *ConcurrentStockChangeError) Error() string {
	return fmt.Sprintf("%s for: %s", ErrConcurrentStockChange, e.Medicine)
}

func (e *ConcurrentStockChangeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConcurrentStockChange}
	}
	return []error{ErrConcurrentStockChange, e.Err}
}
