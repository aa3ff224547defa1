package repositories

import (
	"context"

	"github.com/samdiagnosis/backend/internal/domain/entities"
)

// Page bounds a list query. Handlers clamp Limit before it reaches the store.
type Page struct {
	Limit  int
	Offset int
}

// ReportRepository defines the keyed store operations for reports. Create and
// SetEmbedding are the pipeline's two physical writes; SetEmbedding is only
// ever issued by the request that created the row, so last-write-wins is safe.
type ReportRepository interface {
	// Create inserts the full record with a NULL embedding.
	Create(ctx context.Context, report *entities.Report) error

	// SetEmbedding updates the embedding by key. The embedding column is the
	// only field this system ever mutates.
	SetEmbedding(ctx context.Context, reportID string, embedding []float64) error

	// GetByID retrieves a report by key.
	GetByID(ctx context.Context, reportID string) (*entities.Report, error)

	// ListByPatient returns a patient's reports newest-first. Patient
	// existence is not checked; an unknown patient yields an empty list.
	ListByPatient(ctx context.Context, patientID string, page Page) ([]*entities.Report, error)

	// NearestByEmbedding returns the closest enriched reports by cosine
	// distance, ascending. Rows with no embedding are never returned.
	NearestByEmbedding(ctx context.Context, embedding []float64, limit int) ([]*entities.ReportSearchResult, error)

	// ListUnenrichedIDs returns ids of reports still missing an embedding,
	// oldest first, for the backfill job. Offset skips that many of the
	// oldest matching rows so a caller can scan past rows it already tried.
	ListUnenrichedIDs(ctx context.Context, limit, offset int) ([]string, error)
}
