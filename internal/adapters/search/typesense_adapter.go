package search

import (
	"context"
	"fmt"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/samdiagnosis/backend/internal/domain/entities"
	"github.com/samdiagnosis/backend/internal/domain/providers"
	tsclient "github.com/samdiagnosis/backend/internal/infrastructure/clients/typesense"
)

const collectionName = "reports"

// TypesenseAdapter implements keyword search over reports using Typesense.
// The index carries no embeddings; it only mirrors the text fields.
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ providers.ReportIndexProvider = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the reports collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	_, err := a.client.Client().Collection(collectionName).Retrieve(ctx)
	if err == nil {
		return nil
	}

	schema := &api.CollectionSchema{
		Name: collectionName,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "patient_id", Type: "string", Facet: pointer.True()},
			{Name: "report_type", Type: "string", Facet: pointer.True()},
			{Name: "title", Type: "string"},
			{Name: "content", Type: "string"},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_at"),
	}

	_, err = a.client.Client().Collections().Create(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create typesense collection: %w", err)
	}

	return nil
}

// Index upserts a report into the keyword index
func (a *TypesenseAdapter) Index(ctx context.Context, report *entities.Report) error {
	// Fresh submissions are indexed before the store-assigned created_at is
	// read back; stamp them with the ingestion time instead.
	createdAt := report.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	document := map[string]interface{}{
		"id":          report.ReportID,
		"patient_id":  report.PatientID,
		"report_type": report.ReportType,
		"title":       report.Title,
		"content":     report.Content,
		"created_at":  createdAt.Unix(),
	}

	_, err := a.client.Client().Collection(collectionName).Documents().Upsert(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to index report: %w", err)
	}

	return nil
}

// Search runs a keyword query over report titles and content
func (a *TypesenseAdapter) Search(ctx context.Context, query string, limit int) ([]*entities.Report, error) {
	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(query),
		QueryBy: pointer.String("title,content"),
		PerPage: pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(collectionName).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search reports: %w", err)
	}

	reports := []*entities.Report{}
	if result.Hits == nil {
		return reports, nil
	}

	for _, hit := range *result.Hits {
		doc := *hit.Document

		report := &entities.Report{}
		if val, ok := doc["id"].(string); ok {
			report.ReportID = val
		}
		if val, ok := doc["patient_id"].(string); ok {
			report.PatientID = val
		}
		if val, ok := doc["report_type"].(string); ok {
			report.ReportType = val
		}
		if val, ok := doc["title"].(string); ok {
			report.Title = val
		}
		if val, ok := doc["content"].(string); ok {
			report.Content = val
		}
		if val, ok := doc["created_at"].(float64); ok {
			report.CreatedAt = time.Unix(int64(val), 0).UTC()
		}

		reports = append(reports, report)
	}

	return reports, nil
}
