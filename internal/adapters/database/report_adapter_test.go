package database_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samdiagnosis/backend/internal/adapters/database"
	"github.com/samdiagnosis/backend/internal/domain/entities"
	"github.com/samdiagnosis/backend/internal/domain/repositories"
	"github.com/samdiagnosis/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/samdiagnosis/backend/pkg/errors"
)

var reportRowColumns = []string{
	"report_id", "patient_id", "doctor_id", "visit_id",
	"report_type", "title", "content", "embedding", "created_at",
}

func newMockAdapter(t *testing.T) (repositories.ReportRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	adapter := database.NewReportAdapter(postgres.NewClientFromDB(db))
	return adapter, mock
}

func TestReportAdapter_Create(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec(`INSERT INTO "reports"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.Create(context.Background(), &entities.Report{
		ReportID:   "r1",
		PatientID:  "p1",
		ReportType: entities.ReportTypeSOAP,
		Content:    "Patient reports mild fever.",
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportAdapter_Create_StoreFailure(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec(`INSERT INTO "reports"`).
		WillReturnError(sql.ErrConnDone)

	err := adapter.Create(context.Background(), &entities.Report{
		ReportID:  "r1",
		PatientID: "p1",
		Content:   "text",
	})

	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeInternal, appErr.Type)
}

func TestReportAdapter_SetEmbedding(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	// The embedding travels as a pgvector literal cast in the statement.
	mock.ExpectExec(`UPDATE "reports" SET "embedding"=.*0\.1,0\.2,0\.3.*::vector.*"report_id"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.SetEmbedding(context.Background(), "r1", []float64{0.1, 0.2, 0.3})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportAdapter_GetByID_NotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(`SELECT .* FROM "reports"`).
		WillReturnError(sql.ErrNoRows)

	report, err := adapter.GetByID(context.Background(), "missing")

	assert.Nil(t, report)
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeNotFound, appErr.Type)
}

func TestReportAdapter_GetByID_ParsesEmbedding(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(reportRowColumns).
		AddRow("r1", "p1", nil, nil, "SOAP", "Fever", "Patient reports mild fever.", "[0.1,0.2,0.3]", created)

	mock.ExpectQuery(`SELECT .* FROM "reports"`).WillReturnRows(rows)

	report, err := adapter.GetByID(context.Background(), "r1")

	require.NoError(t, err)
	assert.Equal(t, "r1", report.ReportID)
	assert.Equal(t, "Fever", report.Title)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, report.Embedding)
}

func TestReportAdapter_ListByPatient_NewestFirst(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(reportRowColumns).
		AddRow("r3", "p1", nil, nil, "SOAP", nil, "third", nil, now).
		AddRow("r2", "p1", nil, nil, "SOAP", nil, "second", nil, now.Add(-time.Hour)).
		AddRow("r1", "p1", nil, nil, "SOAP", nil, "first", nil, now.Add(-2*time.Hour))

	// Ordering is pinned in the statement itself.
	mock.ExpectQuery(`SELECT .* FROM "reports" WHERE .*"patient_id".* ORDER BY "created_at" DESC`).
		WillReturnRows(rows)

	reports, err := adapter.ListByPatient(context.Background(), "p1", repositories.Page{Limit: 50})

	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "r3", reports[0].ReportID)
	assert.Equal(t, "r1", reports[2].ReportID)
	assert.Nil(t, reports[0].Embedding)
}

func TestReportAdapter_NearestByEmbedding_ExcludesUnenriched(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(append(append([]string{}, reportRowColumns...), "distance")).
		AddRow("r1", "p1", nil, nil, "SOAP", nil, "close match", "[0.1,0.2]", now, 0.05).
		AddRow("r2", "p2", nil, nil, "SOAP", nil, "far match", "[0.9,0.8]", now, 0.42)

	// Rows with no embedding must be filtered store-side.
	mock.ExpectQuery(`SELECT .* FROM "reports" WHERE .*embedding IS NOT NULL.* ORDER BY "distance" ASC`).
		WillReturnRows(rows)

	results, err := adapter.NearestByEmbedding(context.Background(), []float64{0.1, 0.2}, 10)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "r1", results[0].Report.ReportID)
	assert.InDelta(t, 0.05, results[0].Distance, 1e-9)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestReportAdapter_ListUnenrichedIDs(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	rows := sqlmock.NewRows([]string{"report_id"}).AddRow("r1").AddRow("r2")

	mock.ExpectQuery(`SELECT "report_id" FROM "reports" WHERE .*embedding IS NULL.* LIMIT 100 OFFSET 50`).
		WillReturnRows(rows)

	ids, err := adapter.ListUnenrichedIDs(context.Background(), 100, 50)

	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids)
}
