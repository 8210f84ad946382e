package prescription

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/opdcare/opd/internal/platform/validate"
)

// CreateRequest is the payload of both the plain and the billing create.
// Medication lines are checked by whichever path consumes them.
type CreateRequest struct {
	HospitalID       uuid.UUID        `json:"hospitalId"`
	PatientID        uuid.UUID        `json:"patientId"`
	VisitID          uuid.UUID        `json:"visitId"`
	DoctorID         *string          `json:"doctorId"`
	ConsultingDoctor *string          `json:"consultingDoctor"`
	Diagnosis        *string          `json:"diagnosis"`
	PrescribedDate   *time.Time       `json:"prescribedDate"`
	Notes            *string          `json:"notes"`
	Medications      []MedicationLine `json:"medications"`
}

func (r *CreateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.PatientID, validate.RequiredUUID),
		validation.Field(&r.VisitID, validate.RequiredUUID),
		validation.Field(&r.Diagnosis, validation.Length(0, 2000)),
		validation.Field(&r.Notes, validation.Length(0, 4000)),
	)
}

// NewPrescription builds the row for hospitalID. The doctor defaults to the
// acting user.
func (r *CreateRequest) NewPrescription(hospitalID uuid.UUID, actor string, now time.Time) *Prescription {
	rx := &Prescription{
		HospitalID:       hospitalID,
		PatientID:        r.PatientID,
		VisitID:          r.VisitID,
		DoctorID:         r.DoctorID,
		ConsultingDoctor: r.ConsultingDoctor,
		Diagnosis:        r.Diagnosis,
		PrescribedDate:   now,
		Notes:            r.Notes,
		Medications:      r.Medications,
	}
	if rx.DoctorID == nil {
		rx.DoctorID = &actor
	}
	if r.PrescribedDate != nil {
		rx.PrescribedDate = r.PrescribedDate.UTC()
	}
	return rx
}

func (l MedicationLine) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.MedicineName, validate.NotBlank),
		validation.Field(&l.Days, validation.Required, validation.Min(1)),
	)
}

func validateLines(lines []MedicationLine) error {
	if len(lines) == 0 {
		return ErrNoMedications
	}
	return validation.Validate(lines)
}

// UpdateRequest corrects an existing entry. Absent fields are kept.
type UpdateRequest struct {
	ConsultingDoctor *string           `json:"consultingDoctor"`
	Diagnosis        *string           `json:"diagnosis"`
	PrescribedDate   *time.Time        `json:"prescribedDate"`
	Notes            *string           `json:"notes"`
	Medications      *[]MedicationLine `json:"medications"`
}

func (r *UpdateRequest) Validate() error {
	if r.Medications != nil {
		if err := validateLines(*r.Medications); err != nil {
			return err
		}
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Diagnosis, validation.Length(0, 2000)),
		validation.Field(&r.Notes, validation.Length(0, 4000)),
	)
}

func (r *UpdateRequest) apply(rx *Prescription) {
	if r.ConsultingDoctor != nil {
		rx.ConsultingDoctor = r.ConsultingDoctor
	}
	if r.Diagnosis != nil {
		rx.Diagnosis = r.Diagnosis
	}
	if r.PrescribedDate != nil {
		rx.PrescribedDate = r.PrescribedDate.UTC()
	}
	if r.Notes != nil {
		rx.Notes = r.Notes
	}
	if r.Medications != nil {
		rx.Medications = *r.Medications
	}
}
