package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("patient not found")
	ErrDuplicatePhone = errors.New("a patient with this phone number is already registered")
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Exists(ctx context.Context, hospitalID, id uuid.UUID) (bool, error)
	// Search matches name by substring and phone number by prefix. An empty
	// term lists the whole hospital.
	Search(ctx context.Context, hospitalID uuid.UUID, term string, limit, offset int) ([]*Patient, int, error)
}
