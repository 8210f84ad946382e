package patient

import (
	"time"

	"github.com/google/uuid"
)

const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

type Patient struct {
	ID               uuid.UUID `json:"id"`
	HospitalID       uuid.UUID `json:"hospitalId"`
	Name             string    `json:"name"`
	PhoneNumber      string    `json:"phoneNumber"`
	Age              *int      `json:"age,omitempty"`
	Gender           *string   `json:"gender,omitempty"`
	Address          *string   `json:"address,omitempty"`
	RegistrationDate time.Time `json:"registrationDate"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
