package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/pkg/pagination"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "patient").Logger()}
}

// Register stores a new patient in the caller's hospital. The request must
// already be validated.
func (s *Service) Register(ctx context.Context, p auth.Principal, req *CreateRequest) (*Patient, error) {
	hospitalID, err := auth.HospitalFor(ctx, p, req.HospitalID)
	if err != nil {
		return nil, err
	}
	pt := req.toPatient(hospitalID)
	if err := s.repo.Create(ctx, pt); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("patient_id", pt.ID.String()).
		Str("hospital_id", hospitalID.String()).
		Str("by", p.Actor()).
		Msg("patient registered")
	return pt, nil
}

// Get returns ErrNotFound for patients of hospitals p cannot access.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Patient, error) {
	pt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccessHospital(pt.HospitalID) {
		return nil, ErrNotFound
	}
	return pt, nil
}

func (s *Service) Search(ctx context.Context, p auth.Principal, hospitalID uuid.UUID, term string, pg pagination.Params) ([]*Patient, int, error) {
	hospitalID, err := auth.HospitalFor(ctx, p, hospitalID)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.Search(ctx, hospitalID, term, pg.Limit, pg.Offset())
}

// Exists reports whether patient id is registered in hospitalID.
func (s *Service) Exists(ctx context.Context, hospitalID, id uuid.UUID) (bool, error) {
	return s.repo.Exists(ctx, hospitalID, id)
}
