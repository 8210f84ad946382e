package visit

import (
	"time"

	"github.com/google/uuid"
)

type Visit struct {
	ID                         uuid.UUID       `json:"id"`
	HospitalID                 uuid.UUID       `json:"hospitalId"`
	PatientID                  uuid.UUID       `json:"patientId"`
	VisitDate                  time.Time       `json:"visitDate"`
	Status                     string          `json:"status"`
	NurseID                    *string         `json:"nurseId,omitempty"`
	DoctorID                   *string         `json:"doctorId,omitempty"`
	ConsultingDoctor           *string         `json:"consultingDoctor,omitempty"`
	PreConsultation            PreConsultation `json:"preConsultation"`
	Consultation               Consultation    `json:"consultation"`
	PreConsultationCompletedAt *time.Time      `json:"preConsultationCompletedAt,omitempty"`
	ConsultationCompletedAt    *time.Time      `json:"consultationCompletedAt,omitempty"`
	CreatedAt                  time.Time       `json:"createdAt"`
	UpdatedAt                  time.Time       `json:"updatedAt"`
}

// PreConsultation is what the nurse records before the doctor sees the
// patient. Stored as one JSONB document.
type PreConsultation struct {
	Vitals              *Vitals              `json:"vitals,omitempty"`
	ChiefComplaints     string               `json:"chiefComplaints,omitempty"`
	PastHistory         string               `json:"pastHistory,omitempty"`
	FamilyHistory       string               `json:"familyHistory,omitempty"`
	MaritalHistory      string               `json:"maritalHistory,omitempty"`
	GeneralExamination  *GeneralExamination  `json:"generalExamination,omitempty"`
	BloodInvestigations []BloodInvestigation `json:"bloodInvestigations,omitempty"`
}

type Vitals struct {
	PulseRate     *float64       `json:"pulseRate,omitempty"`
	BloodPressure *BloodPressure `json:"bloodPressure,omitempty"`
	SpO2          *float64       `json:"spO2,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
}

type BloodPressure struct {
	Systolic  *float64 `json:"systolic,omitempty"`
	Diastolic *float64 `json:"diastolic,omitempty"`
}

type GeneralExamination struct {
	Pallor          bool `json:"pallor"`
	Icterus         bool `json:"icterus"`
	Clubbing        bool `json:"clubbing"`
	Cyanosis        bool `json:"cyanosis"`
	Lymphadenopathy bool `json:"lymphadenopathy"`
}

type BloodInvestigation struct {
	TestName       string     `json:"testName"`
	Value          string     `json:"value"`
	Unit           string     `json:"unit,omitempty"`
	ReferenceRange string     `json:"referenceRange,omitempty"`
	TestDate       *time.Time `json:"testDate,omitempty"`
}

// Consultation is the doctor's record of the visit.
type Consultation struct {
	SystemicExamination *SystemicExamination `json:"systemicExamination,omitempty"`
	Diagnosis           string               `json:"diagnosis,omitempty"`
	Treatment           string               `json:"treatment,omitempty"`
	Investigation       string               `json:"investigation,omitempty"`
	Advice              string               `json:"advice,omitempty"`
	ReviewDate          *time.Time           `json:"reviewDate,omitempty"`
}

type SystemicExamination struct {
	CVS string `json:"cvs,omitempty"`
	RS  string `json:"rs,omitempty"`
	PA  string `json:"pa,omitempty"`
	CNS string `json:"cns,omitempty"`
}

// Filter narrows ListByHospital. Zero fields are ignored.
type Filter struct {
	Status   string
	From     *time.Time
	To       *time.Time
	DoctorID string
	NurseID  string
}
