package visit

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/opdcare/opd/internal/platform/validate"
)

type CreateRequest struct {
	PatientID        uuid.UUID  `json:"patientId"`
	VisitDate        *time.Time `json:"visitDate"`
	ConsultingDoctor *string    `json:"consultingDoctor"`
}

func (r *CreateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.PatientID, validate.RequiredUUID),
	)
}

type StatusRequest struct {
	Status string `json:"status"`
}

func (r *StatusRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required, validation.In(
			StatusPending, StatusWithNurse, StatusReadyForDoctor, StatusWithDoctor, StatusCompleted, StatusCancelled,
		)),
	)
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

func (r *CancelRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Length(0, 500)),
	)
}

func (p *PreConsultation) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Vitals),
		validation.Field(&p.BloodInvestigations),
	)
}

func (v Vitals) Validate() error {
	return validation.ValidateStruct(&v,
		validation.Field(&v.PulseRate, validation.Min(0.0), validation.Max(300.0)),
		validation.Field(&v.SpO2, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&v.Temperature, validation.Min(0.0), validation.Max(150.0)),
	)
}

func (b BloodInvestigation) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.TestName, validation.Required),
		validation.Field(&b.Value, validation.Required),
	)
}

func (c *Consultation) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Diagnosis, validation.Length(0, 2000)),
		validation.Field(&c.Treatment, validation.Length(0, 4000)),
	)
}
