package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/samdiagnosis/backend/internal/domain/entities"
	"github.com/samdiagnosis/backend/internal/domain/repositories"
	"github.com/samdiagnosis/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/samdiagnosis/backend/pkg/errors"
)

const reportsTable = "reports"

// reportColumns are the scan targets shared by every report read. The
// embedding is read through its text representation so the driver stays
// vector-type agnostic.
var reportColumns = []interface{}{
	"report_id",
	"patient_id",
	"doctor_id",
	"visit_id",
	"report_type",
	"title",
	"content",
	goqu.L("embedding::text").As("embedding"),
	"created_at",
}

// ReportAdapter implements report persistence in Postgres. Embeddings live in
// a pgvector column; cosine distance is computed store-side.
type ReportAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewReportAdapter creates a new report adapter.
func NewReportAdapter(client *postgres.Client) repositories.ReportRepository {
	return &ReportAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts the full record with a NULL embedding. created_at is
// assigned by the store.
func (a *ReportAdapter) Create(ctx context.Context, report *entities.Report) error {
	if report == nil {
		return apperrors.NewInternalError("report is nil", fmt.Errorf("report is nil"))
	}

	record := goqu.Record{
		"report_id":   report.ReportID,
		"patient_id":  report.PatientID,
		"doctor_id":   sql.NullString{String: report.DoctorID, Valid: report.DoctorID != ""},
		"visit_id":    sql.NullString{String: report.VisitID, Valid: report.VisitID != ""},
		"report_type": report.ReportType,
		"title":       sql.NullString{String: report.Title, Valid: report.Title != ""},
		"content":     report.Content,
	}

	query, args, err := a.db.Insert(reportsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build report insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create report", err)
	}

	return nil
}

// SetEmbedding attaches an embedding to an existing report.
func (a *ReportAdapter) SetEmbedding(ctx context.Context, reportID string, embedding []float64) error {
	if len(embedding) == 0 {
		return apperrors.NewInternalError("embedding is empty", fmt.Errorf("embedding is empty"))
	}

	query, args, err := a.db.Update(reportsTable).
		Set(goqu.Record{"embedding": goqu.L("?::vector", vectorLiteral(embedding))}).
		Where(goqu.Ex{"report_id": reportID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build embedding update query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to set report embedding", err)
	}

	return nil
}

// GetByID retrieves a report by key.
func (a *ReportAdapter) GetByID(ctx context.Context, reportID string) (*entities.Report, error) {
	query, args, err := a.db.Select(reportColumns...).
		From(reportsTable).
		Where(goqu.Ex{"report_id": reportID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build report query", err)
	}

	report, err := scanReport(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("report %s not found", reportID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get report", err)
	}

	return report, nil
}

// ListByPatient returns a patient's reports newest-first.
func (a *ReportAdapter) ListByPatient(ctx context.Context, patientID string, page repositories.Page) ([]*entities.Report, error) {
	query, args, err := a.db.Select(reportColumns...).
		From(reportsTable).
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("created_at").Desc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build report list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list reports", err)
	}
	defer rows.Close()

	reports := []*entities.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan report", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate reports", err)
	}

	return reports, nil
}

// NearestByEmbedding returns the closest enriched reports by cosine distance,
// ascending. Rows without an embedding never match.
func (a *ReportAdapter) NearestByEmbedding(ctx context.Context, embedding []float64, limit int) ([]*entities.ReportSearchResult, error) {
	if len(embedding) == 0 {
		return nil, apperrors.NewInternalError("query embedding is empty", fmt.Errorf("query embedding is empty"))
	}

	literal := vectorLiteral(embedding)
	columns := append(append([]interface{}{}, reportColumns...),
		goqu.L("embedding <=> ?::vector", literal).As("distance"))

	query, args, err := a.db.Select(columns...).
		From(reportsTable).
		Where(goqu.L("embedding IS NOT NULL")).
		Order(goqu.I("distance").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build similarity query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to search reports by embedding", err)
	}
	defer rows.Close()

	results := []*entities.ReportSearchResult{}
	for rows.Next() {
		var (
			report             entities.Report
			doctorID, visitID  sql.NullString
			title, embeddingTx sql.NullString
			distance           float64
		)

		err := rows.Scan(
			&report.ReportID,
			&report.PatientID,
			&doctorID,
			&visitID,
			&report.ReportType,
			&title,
			&report.Content,
			&embeddingTx,
			&report.CreatedAt,
			&distance,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan similarity row", err)
		}

		report.DoctorID = doctorID.String
		report.VisitID = visitID.String
		report.Title = title.String
		if embeddingTx.Valid {
			if report.Embedding, err = parseVector(embeddingTx.String); err != nil {
				return nil, apperrors.NewInternalError("failed to parse stored embedding", err)
			}
		}

		results = append(results, &entities.ReportSearchResult{
			Report:   &report,
			Distance: distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate similarity rows", err)
	}

	return results, nil
}

// ListUnenrichedIDs returns ids of reports still missing an embedding,
// oldest first.
func (a *ReportAdapter) ListUnenrichedIDs(ctx context.Context, limit, offset int) ([]string, error) {
	query, args, err := a.db.Select("report_id").
		From(reportsTable).
		Where(goqu.L("embedding IS NULL")).
		Order(goqu.I("created_at").Asc()).
		Limit(uint(limit)).
		Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build unenriched query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list unenriched reports", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan report id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate report ids", err)
	}

	return ids, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*entities.Report, error) {
	var (
		report            entities.Report
		doctorID, visitID sql.NullString
		title, embedding  sql.NullString
	)

	err := row.Scan(
		&report.ReportID,
		&report.PatientID,
		&doctorID,
		&visitID,
		&report.ReportType,
		&title,
		&report.Content,
		&embedding,
		&report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	report.DoctorID = doctorID.String
	report.VisitID = visitID.String
	report.Title = title.String
	if embedding.Valid {
		if report.Embedding, err = parseVector(embedding.String); err != nil {
			return nil, err
		}
	}

	return &report, nil
}
