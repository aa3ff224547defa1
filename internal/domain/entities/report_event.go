package entities

import "time"

// Report event types published on the event bus. Enrichment failures are
// published so operators can watch the failure rate without the caller ever
// seeing it.
const (
	ReportEventCreated          = "report.created"
	ReportEventEnriched         = "report.enriched"
	ReportEventEnrichmentFailed = "report.enrichment_failed"
)

// ReportEvent describes a report lifecycle change.
type ReportEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ReportID  string    `json:"report_id"`
	PatientID string    `json:"patient_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
