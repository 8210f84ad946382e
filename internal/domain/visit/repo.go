package visit

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("visit not found")
	// ErrStatusConflict means the visit changed status between read and write.
	ErrStatusConflict = errors.New("visit status changed concurrently")
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	Exists(ctx context.Context, hospitalID, id uuid.UUID) (bool, error)
	// Update writes v only while the stored status still equals expectedStatus.
	Update(ctx context.Context, v *Visit, expectedStatus string) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error)
	ListByHospital(ctx context.Context, hospitalID uuid.UUID, f Filter, limit, offset int) ([]*Visit, int, error)
}
