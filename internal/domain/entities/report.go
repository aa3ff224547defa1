package entities

import "time"

// ReportTypeSOAP is the sentinel report type used when the caller supplies none.
const ReportTypeSOAP = "SOAP"

// Report is a clinical report attached to a patient. ReportID is assigned by
// the ingestion pipeline exactly once, before the first write. Embedding is
// nil until enrichment succeeds; a report without an embedding is a valid
// terminal state, not a pending one.
type Report struct {
	ReportID   string    `json:"report_id" db:"report_id"`
	PatientID  string    `json:"patient_id" db:"patient_id"`
	DoctorID   string    `json:"doctor_id,omitempty" db:"doctor_id"`
	VisitID    string    `json:"visit_id,omitempty" db:"visit_id"`
	ReportType string    `json:"report_type" db:"report_type"`
	Title      string    `json:"title,omitempty" db:"title"`
	Content    string    `json:"content" db:"content"`
	Embedding  []float64 `json:"embedding,omitempty" db:"embedding"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ReportSearchResult pairs a report with its cosine distance to a query
// embedding, ascending distance meaning closer.
type ReportSearchResult struct {
	Report   *Report `json:"report"`
	Distance float64 `json:"distance"`
}
