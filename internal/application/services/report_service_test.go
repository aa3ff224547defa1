package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samdiagnosis/backend/internal/domain/entities"
	"github.com/samdiagnosis/backend/internal/domain/repositories"
	"github.com/samdiagnosis/backend/pkg/config"
	apperrors "github.com/samdiagnosis/backend/pkg/errors"
)

type stubReportRepo struct {
	created       []*entities.Report
	createErr     error
	embeddings    map[string][]float64
	embeddingErr  error
	byID          map[string]*entities.Report
	byPatient     map[string][]*entities.Report
	nearest       []*entities.ReportSearchResult
	lastPage      repositories.Page
	lastNearestK  int
	unenrichedIDs []string
}

func newStubReportRepo() *stubReportRepo {
	return &stubReportRepo{
		embeddings: make(map[string][]float64),
		byID:       make(map[string]*entities.Report),
		byPatient:  make(map[string][]*entities.Report),
	}
}

func (r *stubReportRepo) Create(_ context.Context, report *entities.Report) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, report)
	r.byID[report.ReportID] = report
	r.byPatient[report.PatientID] = append([]*entities.Report{report}, r.byPatient[report.PatientID]...)
	return nil
}

func (r *stubReportRepo) SetEmbedding(_ context.Context, reportID string, embedding []float64) error {
	if r.embeddingErr != nil {
		return r.embeddingErr
	}
	r.embeddings[reportID] = embedding
	return nil
}

func (r *stubReportRepo) GetByID(_ context.Context, reportID string) (*entities.Report, error) {
	report, ok := r.byID[reportID]
	if !ok {
		return nil, apperrors.NewNotFoundError("report not found")
	}
	return report, nil
}

func (r *stubReportRepo) ListByPatient(_ context.Context, patientID string, page repositories.Page) ([]*entities.Report, error) {
	r.lastPage = page
	return r.byPatient[patientID], nil
}

func (r *stubReportRepo) NearestByEmbedding(_ context.Context, _ []float64, limit int) ([]*entities.ReportSearchResult, error) {
	r.lastNearestK = limit
	return r.nearest, nil
}

func (r *stubReportRepo) ListUnenrichedIDs(_ context.Context, _, _ int) ([]string, error) {
	return r.unenrichedIDs, nil
}

type stubEmbedder struct {
	vector []float64
	err    error
	calls  int
}

func (e *stubEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

type memoryCache struct {
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("key not found")
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.data[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func (c *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := c.data[key]
	return ok, nil
}

func pipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		EmbedTimeout:    time.Second,
		DefaultPageSize: 50,
		MaxPageSize:     200,
		IdempotencyTTL:  time.Hour,
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc := NewReportService(newStubReportRepo(), &stubEmbedder{}, pipelineConfig())

	_, err := svc.Submit(context.Background(), SubmitReportInput{Content: "text"})
	requireErrorType(t, err, apperrors.ErrorTypeValidation)

	_, err = svc.Submit(context.Background(), SubmitReportInput{PatientID: "p1", Content: "   "})
	requireErrorType(t, err, apperrors.ErrorTypeValidation)
}

func TestSubmit_EnrichesOnSuccess(t *testing.T) {
	repo := newStubReportRepo()
	embedder := &stubEmbedder{vector: []float64{0.1, 0.2, 0.3}}
	svc := NewReportService(repo, embedder, pipelineConfig())

	reportID, err := svc.Submit(context.Background(), SubmitReportInput{
		PatientID: "p1",
		Content:   "Patient reports mild fever.",
	})

	require.NoError(t, err)
	require.NotEmpty(t, reportID)
	require.Len(t, repo.created, 1)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, repo.embeddings[reportID])
	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, entities.ReportTypeSOAP, repo.created[0].ReportType)
}

func TestSubmit_SucceedsWhenEmbedderAlwaysFails(t *testing.T) {
	repo := newStubReportRepo()
	embedder := &stubEmbedder{err: errors.New("provider down")}
	svc := NewReportService(repo, embedder, pipelineConfig())

	reportID, err := svc.Submit(context.Background(), SubmitReportInput{
		PatientID: "p1",
		Content:   "text",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, reportID)
	require.Len(t, repo.created, 1)
	assert.Empty(t, repo.embeddings, "no embedding must be written on embed failure")
	assert.Equal(t, 1, embedder.calls, "at most one embed attempt")
}

func TestSubmit_SucceedsWhenEmbeddingWriteFails(t *testing.T) {
	repo := newStubReportRepo()
	repo.embeddingErr = errors.New("connection reset")
	svc := NewReportService(repo, &stubEmbedder{vector: []float64{0.5}}, pipelineConfig())

	reportID, err := svc.Submit(context.Background(), SubmitReportInput{
		PatientID: "p1",
		Content:   "text",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, reportID)
}

func TestSubmit_InsertFailureAborts(t *testing.T) {
	repo := newStubReportRepo()
	repo.createErr = apperrors.NewInternalError("insert failed", errors.New("disk full"))
	embedder := &stubEmbedder{vector: []float64{0.1}}
	svc := NewReportService(repo, embedder, pipelineConfig())

	_, err := svc.Submit(context.Background(), SubmitReportInput{
		PatientID: "p1",
		Content:   "text",
	})

	require.Error(t, err)
	assert.Zero(t, embedder.calls, "embedding must never be attempted after a failed insert")
	assert.Empty(t, repo.embeddings)
}

func TestSubmit_NilEmbedderStoresUnenriched(t *testing.T) {
	repo := newStubReportRepo()
	svc := NewReportService(repo, nil, pipelineConfig())

	reportID, err := svc.Submit(context.Background(), SubmitReportInput{
		PatientID: "p1",
		Content:   "text",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, reportID)
	require.Len(t, repo.created, 1)
	assert.Empty(t, repo.embeddings)
}

func TestSubmit_IdempotencyKeyReturnsOriginalID(t *testing.T) {
	repo := newStubReportRepo()
	svc := NewReportService(repo, &stubEmbedder{vector: []float64{0.1}}, pipelineConfig())
	svc.SetCacheProvider(newMemoryCache())

	input := SubmitReportInput{
		PatientID:      "p1",
		Content:        "text",
		IdempotencyKey: "req-42",
	}

	first, err := svc.Submit(context.Background(), input)
	require.NoError(t, err)

	second, err := svc.Submit(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, repo.created, 1, "duplicate submission must not write")
}

func TestListByPatient_ClampsPageSize(t *testing.T) {
	repo := newStubReportRepo()
	svc := NewReportService(repo, nil, pipelineConfig())

	_, err := svc.ListByPatient(context.Background(), "p1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, repo.lastPage.Limit)

	_, err = svc.ListByPatient(context.Background(), "p1", 1000, -5)
	require.NoError(t, err)
	assert.Equal(t, 200, repo.lastPage.Limit)
	assert.Equal(t, 0, repo.lastPage.Offset)
}

func TestSearchSimilar_RequiresEmbedding(t *testing.T) {
	repo := newStubReportRepo()
	embedder := &stubEmbedder{err: errors.New("provider down")}
	svc := NewReportService(repo, embedder, pipelineConfig())

	_, err := svc.SearchSimilar(context.Background(), "fever", 10)
	requireErrorType(t, err, apperrors.ErrorTypeExternal)
}

func TestSearchSimilar_NilEmbedderUnavailable(t *testing.T) {
	svc := NewReportService(newStubReportRepo(), nil, pipelineConfig())

	_, err := svc.SearchSimilar(context.Background(), "fever", 10)
	requireErrorType(t, err, apperrors.ErrorTypeUnavailable)
}

func TestSearchSimilar_DefaultsAndCapsTopK(t *testing.T) {
	repo := newStubReportRepo()
	svc := NewReportService(repo, &stubEmbedder{vector: []float64{0.1}}, pipelineConfig())

	_, err := svc.SearchSimilar(context.Background(), "fever", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultTopK, repo.lastNearestK)

	_, err = svc.SearchSimilar(context.Background(), "fever", 500)
	require.NoError(t, err)
	assert.Equal(t, maxTopK, repo.lastNearestK)
}

func TestKeywordSearch_NoIndexUnavailable(t *testing.T) {
	svc := NewReportService(newStubReportRepo(), nil, pipelineConfig())

	_, err := svc.KeywordSearch(context.Background(), "fever", 10)
	requireErrorType(t, err, apperrors.ErrorTypeUnavailable)
}

func TestSubmit_ThenReadBackThroughPatientSurface(t *testing.T) {
	repo := newStubReportRepo()
	svc := NewReportService(repo, &stubEmbedder{vector: []float64{0.1}}, pipelineConfig())

	reportID, err := svc.Submit(context.Background(), SubmitReportInput{
		PatientID: "p1",
		Content:   "Patient reports mild fever.",
		Title:     "Fever",
	})
	require.NoError(t, err)

	reports, err := svc.ListByPatient(context.Background(), "p1", 0, 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, reportID, reports[0].ReportID)
	assert.Equal(t, "Fever", reports[0].Title)
}

func requireErrorType(t *testing.T, err error, errorType apperrors.ErrorType) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok, "expected *AppError, got %T", err)
	assert.Equal(t, errorType, appErr.Type)
}
