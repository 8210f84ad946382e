package prescription

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("medication history not found")
	ErrNoMedications = errors.New("at least one medication is required")
	ErrHasSale       = errors.New("medication history is referenced by a pharmacy sale")
)

type Repository interface {
	Create(ctx context.Context, rx *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, rx *Prescription) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error)
}
