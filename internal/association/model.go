package association

import "github.com/uptrace/bun"

const table = "doctors_patients"

// DoctorPatient is one row of the many-to-many join between doctors and patients.
type DoctorPatient struct {
	bun.BaseModel `bun:"table:doctors_patients,alias:dp"`

	DoctorID  int64 `bun:"doctor_id,pk"`
	PatientID int64 `bun:"patient_id,pk"`
}

// Link describes the state of one doctor patient pair in API responses.
type Link struct {
	DoctorID  int64 `json:"doctorId"`
	PatientID int64 `json:"patientId"`
	Linked    bool  `json:"linked"`
}
