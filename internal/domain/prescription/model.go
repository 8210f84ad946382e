package prescription

import (
	"time"

	"github.com/google/uuid"
)

// Timing marks the parts of the day a medicine is taken.
type Timing struct {
	Morning   bool `json:"morning"`
	Afternoon bool `json:"afternoon"`
	Evening   bool `json:"evening"`
	Night     bool `json:"night"`
}

func (t Timing) DosesPerDay() int {
	n := 0
	for _, on := range []bool{t.Morning, t.Afternoon, t.Evening, t.Night} {
		if on {
			n++
		}
	}
	return n
}

type Meal struct {
	BeforeMeal bool `json:"beforeMeal"`
	AfterMeal  bool `json:"afterMeal"`
}

type MedicationLine struct {
	MedicineName string `json:"medicineName"`
	Dosage       string `json:"dosage,omitempty"`
	Days         int    `json:"days"`
	Timing       Timing `json:"timing"`
	Meal         Meal   `json:"meal"`
	Route        string `json:"route,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Prescription is one medication history entry written for a visit.
type Prescription struct {
	ID               uuid.UUID        `json:"id"`
	HospitalID       uuid.UUID        `json:"hospitalId"`
	PatientID        uuid.UUID        `json:"patientId"`
	VisitID          uuid.UUID        `json:"visitId"`
	DoctorID         *string          `json:"doctorId,omitempty"`
	ConsultingDoctor *string          `json:"consultingDoctor,omitempty"`
	Diagnosis        *string          `json:"diagnosis,omitempty"`
	PrescribedDate   time.Time        `json:"prescribedDate"`
	Notes            *string          `json:"notes,omitempty"`
	Medications      []MedicationLine `json:"medications"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}
