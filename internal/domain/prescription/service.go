package prescription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/pkg/pagination"
)

const DefaultRecentLimit = 5

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrVisitNotFound   = errors.New("visit not found")
)

// Checker reports whether a record exists inside a hospital.
type Checker interface {
	Exists(ctx context.Context, hospitalID, id uuid.UUID) (bool, error)
}

// SaleLookup reports whether a sales record references a prescription.
type SaleLookup interface {
	ExistsForPrescription(ctx context.Context, prescriptionID uuid.UUID) (bool, error)
}

type Service struct {
	repo     Repository
	patients Checker
	visits   Checker
	sales    SaleLookup
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients, visits Checker, sales SaleLookup, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		visits:   visits,
		sales:    sales,
		logger:   logger.With().Str("component", "prescription").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create records a prescription without touching stock.
func (s *Service) Create(ctx context.Context, p auth.Principal, req *CreateRequest) (*Prescription, error) {
	hospitalID, err := auth.HospitalFor(ctx, p, req.HospitalID)
	if err != nil {
		return nil, err
	}
	if err := s.verify(ctx, hospitalID, req.PatientID, req.VisitID); err != nil {
		return nil, err
	}
	if err := validateLines(req.Medications); err != nil {
		return nil, err
	}

	rx := req.NewPrescription(hospitalID, p.Actor(), s.now())
	if err := s.repo.Create(ctx, rx); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("prescription_id", rx.ID.String()).
		Str("visit_id", rx.VisitID.String()).
		Int("lines", len(rx.Medications)).
		Msg("medication history added")
	return rx, nil
}

func (s *Service) verify(ctx context.Context, hospitalID, patientID, visitID uuid.UUID) error {
	ok, err := s.patients.Exists(ctx, hospitalID, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPatientNotFound
	}
	ok, err = s.visits.Exists(ctx, hospitalID, visitID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVisitNotFound
	}
	return nil
}

// Get returns ErrNotFound for entries of hospitals p cannot access.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Prescription, error) {
	rx, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccessHospital(rx.HospitalID) {
		return nil, ErrNotFound
	}
	return rx, nil
}

func (s *Service) ListByPatient(ctx context.Context, p auth.Principal, patientID uuid.UUID, pg pagination.Params) ([]*Prescription, int, error) {
	if err := s.checkPatient(ctx, p, patientID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, patientID, pg.Limit, pg.Offset())
}

// Recent returns the newest limit entries of a patient.
func (s *Service) Recent(ctx context.Context, p auth.Principal, patientID uuid.UUID, limit int) ([]*Prescription, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if err := s.checkPatient(ctx, p, patientID); err != nil {
		return nil, err
	}
	rxs, _, err := s.repo.ListByPatient(ctx, patientID, limit, 0)
	return rxs, err
}

func (s *Service) ListByVisit(ctx context.Context, p auth.Principal, visitID uuid.UUID) ([]*Prescription, error) {
	hospitalID, err := auth.HospitalFor(ctx, p, uuid.Nil)
	if err != nil {
		return nil, err
	}
	ok, err := s.visits.Exists(ctx, hospitalID, visitID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVisitNotFound
	}
	return s.repo.ListByVisit(ctx, visitID)
}

func (s *Service) checkPatient(ctx context.Context, p auth.Principal, patientID uuid.UUID) error {
	hospitalID, err := auth.HospitalFor(ctx, p, uuid.Nil)
	if err != nil {
		return err
	}
	ok, err := s.patients.Exists(ctx, hospitalID, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPatientNotFound
	}
	return nil
}

func (s *Service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, req *UpdateRequest) (*Prescription, error) {
	rx, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	req.apply(rx)
	if err := s.repo.Update(ctx, rx); err != nil {
		return nil, err
	}
	s.logger.Info().Str("prescription_id", id.String()).Str("by", p.Actor()).Msg("medication history updated")
	return rx, nil
}

// Delete removes an entry that no sale references.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	sold, err := s.sales.ExistsForPrescription(ctx, id)
	if err != nil {
		return err
	}
	if sold {
		return ErrHasSale
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("prescription_id", id.String()).Str("by", p.Actor()).Msg("medication history deleted")
	return nil
}
