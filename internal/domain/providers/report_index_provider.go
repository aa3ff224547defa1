package providers

import (
	"context"

	"github.com/samdiagnosis/backend/internal/domain/entities"
)

// ReportIndexProvider maintains a keyword search index over reports.
// Indexing on the write path is best-effort, like embedding enrichment.
type ReportIndexProvider interface {
	Index(ctx context.Context, report *entities.Report) error
	Search(ctx context.Context, query string, limit int) ([]*entities.Report, error)
}
