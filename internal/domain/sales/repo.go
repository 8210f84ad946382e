package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("sales record not found")
	ErrAlreadyBilled = errors.New("prescription already has a sales record")
)

type Repository interface {
	// Create writes the header and every line atomically.
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	GetByPrescription(ctx context.Context, prescriptionID uuid.UUID) (*Record, error)
	ListByHospital(ctx context.Context, hospitalID uuid.UUID, p Period, limit, offset int) ([]*Record, Summary, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)
	ExistsForPrescription(ctx context.Context, prescriptionID uuid.UUID) (bool, error)
}
