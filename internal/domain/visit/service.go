package visit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opdcare/opd/internal/domain/patient"
	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/pkg/pagination"
)

// PatientReader resolves a patient the caller may access.
type PatientReader interface {
	Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	repo     Repository
	patients PatientReader
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients PatientReader, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		logger:   logger.With().Str("component", "visit").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a pending visit in the patient's hospital.
func (s *Service) Create(ctx context.Context, p auth.Principal, req *CreateRequest) (*Visit, error) {
	pt, err := s.patients.Get(ctx, p, req.PatientID)
	if err != nil {
		return nil, err
	}
	v := &Visit{
		HospitalID:       pt.HospitalID,
		PatientID:        pt.ID,
		VisitDate:        s.now(),
		Status:           StatusPending,
		ConsultingDoctor: req.ConsultingDoctor,
	}
	if req.VisitDate != nil {
		v.VisitDate = req.VisitDate.UTC()
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("visit_id", v.ID.String()).
		Str("patient_id", v.PatientID.String()).
		Str("status", v.Status).
		Msg("visit created")
	return v, nil
}

// Get returns ErrNotFound for visits of hospitals p cannot access.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Visit, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccessHospital(v.HospitalID) {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *Service) ListByPatient(ctx context.Context, p auth.Principal, patientID uuid.UUID, pg pagination.Params) ([]*Visit, int, error) {
	if _, err := s.patients.Get(ctx, p, patientID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, patientID, pg.Limit, pg.Offset())
}

func (s *Service) ListByHospital(ctx context.Context, p auth.Principal, hospitalID uuid.UUID, f Filter, pg pagination.Params) ([]*Visit, int, error) {
	hospitalID, err := auth.HospitalFor(ctx, p, hospitalID)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.ListByHospital(ctx, hospitalID, f, pg.Limit, pg.Offset())
}

// UpdateStatus moves a visit along the workflow. Entering with-nurse or
// with-doctor records the caller as the nurse or doctor.
func (s *Service) UpdateStatus(ctx context.Context, p auth.Principal, id uuid.UUID, status string) (*Visit, error) {
	v, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(v.Status, status) {
		return nil, &TransitionError{Action: "move visit to " + status, Status: v.Status}
	}

	from := v.Status
	actor := p.Actor()
	now := s.now()
	v.Status = status
	switch status {
	case StatusWithNurse:
		v.NurseID = &actor
	case StatusWithDoctor:
		v.DoctorID = &actor
	case StatusReadyForDoctor:
		if v.PreConsultationCompletedAt == nil {
			v.PreConsultationCompletedAt = &now
		}
	case StatusCompleted:
		v.ConsultationCompletedAt = &now
	}
	if err := s.repo.Update(ctx, v, from); err != nil {
		return nil, err
	}
	s.logEvent(v, from, "visit status updated")
	return v, nil
}

// RecordPreConsultation stores the nurse's findings and hands the visit to
// the doctor.
func (s *Service) RecordPreConsultation(ctx context.Context, p auth.Principal, id uuid.UUID, pre PreConsultation) (*Visit, error) {
	v, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if v.Status != StatusPending && v.Status != StatusWithNurse {
		return nil, &TransitionError{Action: "update pre-consultation", Status: v.Status}
	}

	from := v.Status
	actor := p.Actor()
	now := s.now()
	v.PreConsultation = pre
	v.NurseID = &actor
	v.PreConsultationCompletedAt = &now
	v.Status = StatusReadyForDoctor
	if err := s.repo.Update(ctx, v, from); err != nil {
		return nil, err
	}
	s.logEvent(v, from, "pre-consultation recorded")
	return v, nil
}

// RecordConsultation stores the doctor's findings and completes the visit.
// Nurse findings are left untouched.
func (s *Service) RecordConsultation(ctx context.Context, p auth.Principal, id uuid.UUID, consult Consultation) (*Visit, error) {
	v, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(v.Status, StatusCompleted) {
		return nil, &TransitionError{Action: "update consultation", Status: v.Status}
	}

	from := v.Status
	actor := p.Actor()
	now := s.now()
	v.Consultation = consult
	v.DoctorID = &actor
	v.ConsultationCompletedAt = &now
	v.Status = StatusCompleted
	if err := s.repo.Update(ctx, v, from); err != nil {
		return nil, err
	}
	s.logEvent(v, from, "consultation recorded")
	return v, nil
}

func (s *Service) Cancel(ctx context.Context, p auth.Principal, id uuid.UUID, reason string) (*Visit, error) {
	v, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(v.Status) {
		return nil, &TransitionError{Action: "cancel visit", Status: v.Status}
	}

	from := v.Status
	v.Status = StatusCancelled
	if err := s.repo.Update(ctx, v, from); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "Not specified"
	}
	s.logger.Info().
		Str("visit_id", v.ID.String()).
		Str("from", from).
		Str("reason", reason).
		Str("by", p.Actor()).
		Msg("visit cancelled")
	return v, nil
}

// Exists reports whether visit id belongs to hospitalID.
func (s *Service) Exists(ctx context.Context, hospitalID, id uuid.UUID) (bool, error) {
	return s.repo.Exists(ctx, hospitalID, id)
}

func (s *Service) logEvent(v *Visit, from, msg string) {
	s.logger.Info().
		Str("visit_id", v.ID.String()).
		Str("from", from).
		Str("to", v.Status).
		Msg(msg)
}
