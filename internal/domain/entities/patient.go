package entities

import (
	"encoding/json"
	"time"
)

// Patient is a caller-supplied demographic record. Created once, never
// updated or deleted by this system.
type Patient struct {
	PatientID           string          `json:"patient_id" db:"patient_id"`
	MedicalRecordNumber string          `json:"medical_record_number" db:"medical_record_number"`
	FirstName           string          `json:"first_name" db:"first_name"`
	LastName            string          `json:"last_name" db:"last_name"`
	DOB                 string          `json:"dob,omitempty" db:"dob"`
	Gender              string          `json:"gender,omitempty" db:"gender"`
	Phone               string          `json:"phone,omitempty" db:"phone"`
	Metadata            json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
}
