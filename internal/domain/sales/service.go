package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/pkg/pagination"
)

var ErrPatientNotFound = errors.New("patient not found")

type PatientChecker interface {
	Exists(ctx context.Context, hospitalID, id uuid.UUID) (bool, error)
}

// Service is the read side of the sales ledger. Records are only written by
// billing, through the Repository.
type Service struct {
	repo     Repository
	patients PatientChecker
	logger   zerolog.Logger
}

func NewService(repo Repository, patients PatientChecker, logger zerolog.Logger) *Service {
	return &Service{repo: repo, patients: patients, logger: logger.With().Str("component", "sales").Logger()}
}

func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return visible(p, rec)
}

func (s *Service) GetByPrescription(ctx context.Context, p auth.Principal, prescriptionID uuid.UUID) (*Record, error) {
	rec, err := s.repo.GetByPrescription(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	return visible(p, rec)
}

// visible hides records of other hospitals behind ErrNotFound.
func visible(p auth.Principal, rec *Record) (*Record, error) {
	if !p.CanAccessHospital(rec.HospitalID) {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *Service) ListByHospital(ctx context.Context, p auth.Principal, hospitalID uuid.UUID, period Period, pg pagination.Params) ([]*Record, Summary, error) {
	hospitalID, err := auth.HospitalFor(ctx, p, hospitalID)
	if err != nil {
		return nil, Summary{}, err
	}
	return s.repo.ListByHospital(ctx, hospitalID, period, pg.Limit, pg.Offset())
}

func (s *Service) ListByPatient(ctx context.Context, p auth.Principal, patientID uuid.UUID, pg pagination.Params) ([]*Record, int, error) {
	hospitalID, err := auth.HospitalFor(ctx, p, uuid.Nil)
	if err != nil {
		return nil, 0, err
	}
	ok, err := s.patients.Exists(ctx, hospitalID, patientID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrPatientNotFound
	}
	return s.repo.ListByPatient(ctx, patientID, pg.Limit, pg.Offset())
}

func (s *Service) ExistsForPrescription(ctx context.Context, prescriptionID uuid.UUID) (bool, error) {
	return s.repo.ExistsForPrescription(ctx, prescriptionID)
}
