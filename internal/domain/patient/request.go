package patient

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/opdcare/opd/internal/platform/validate"
)

type CreateRequest struct {
	HospitalID  uuid.UUID `json:"hospitalId"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phoneNumber"`
	Age         *int      `json:"age"`
	Gender      *string   `json:"gender"`
	Address     *string   `json:"address"`
}

func (r *CreateRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.PhoneNumber, validation.Required, validate.Phone),
		validation.Field(&r.Age, validation.Min(0), validation.Max(150)),
		validation.Field(&r.Gender, validation.In(GenderMale, GenderFemale, GenderOther)),
	)
}

func (r *CreateRequest) toPatient(hospitalID uuid.UUID) *Patient {
	return &Patient{
		HospitalID:  hospitalID,
		Name:        r.Name,
		PhoneNumber: r.PhoneNumber,
		Age:         r.Age,
		Gender:      r.Gender,
		Address:     r.Address,
	}
}
