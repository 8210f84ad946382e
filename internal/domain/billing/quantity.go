package billing

import (
	"math"
	"strings"

	"github.com/opdcare/opd/internal/domain/prescription"
)

// RequiredQuantity is doses per day times days.
func RequiredQuantity(line prescription.MedicationLine) (int, error) {
	if strings.TrimSpace(line.MedicineName) == "" || line.Days <= 0 {
		return 0, &MedicationError{Kind: ErrInvalidMedicationData, Medicine: line.MedicineName}
	}
	perDay := line.Timing.DosesPerDay()
	if perDay == 0 {
		return 0, &MedicationError{Kind: ErrNoTimingSelected, Medicine: line.MedicineName}
	}
	if line.Days > math.MaxInt32/perDay {
		return 0, &MedicationError{Kind: ErrInvalidQuantity, Medicine: line.MedicineName}
	}
	qty := perDay * line.Days
	if qty <= 0 {
		return 0, &MedicationError{Kind: ErrInvalidQuantity, Medicine: line.MedicineName}
	}
	return qty, nil
}
