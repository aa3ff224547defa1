package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samdiagnosis/backend/internal/application/services"
	"github.com/samdiagnosis/backend/internal/domain/entities"
	apperrors "github.com/samdiagnosis/backend/pkg/errors"
)

type stubReportService struct {
	submitID   string
	submitErr  error
	lastInput  services.SubmitReportInput
	report     *entities.Report
	getErr     error
	results    []*entities.ReportSearchResult
	searchErr  error
	keyword    []*entities.Report
	keywordErr error
}

func (s *stubReportService) Submit(_ context.Context, input services.SubmitReportInput) (string, error) {
	s.lastInput = input
	return s.submitID, s.submitErr
}

func (s *stubReportService) GetByID(_ context.Context, _ string) (*entities.Report, error) {
	return s.report, s.getErr
}

func (s *stubReportService) SearchSimilar(_ context.Context, _ string, _ int) ([]*entities.ReportSearchResult, error) {
	return s.results, s.searchErr
}

func (s *stubReportService) KeywordSearch(_ context.Context, _ string, _ int) ([]*entities.Report, error) {
	return s.keyword, s.keywordErr
}

type stubNoteService struct {
	note string
	err  error
}

func (s *stubNoteService) GenerateSOAP(_ context.Context, _ string) (string, error) {
	return s.note, s.err
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestSubmitReport_Created(t *testing.T) {
	svc := &stubReportService{submitID: "r1"}
	handler := NewReportHandler(svc, &stubNoteService{})

	payload := `{"patient_id":"p1","content":"Patient reports mild fever."}`
	req := httptest.NewRequest(http.MethodPost, "/api/reports", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()

	handler.SubmitReport(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "r1", body["report_id"])
	assert.Equal(t, "p1", svc.lastInput.PatientID)
}

func TestSubmitReport_ValidationMapsTo400(t *testing.T) {
	svc := &stubReportService{submitErr: apperrors.NewValidationError("content is required")}
	handler := NewReportHandler(svc, &stubNoteService{})

	req := httptest.NewRequest(http.MethodPost, "/api/reports", bytes.NewBufferString(`{"patient_id":"p1"}`))
	rec := httptest.NewRecorder()

	handler.SubmitReport(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "content is required", body["error"])
}

func TestSubmitReport_InvalidJSON(t *testing.T) {
	handler := NewReportHandler(&stubReportService{}, &stubNoteService{})

	req := httptest.NewRequest(http.MethodPost, "/api/reports", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()

	handler.SubmitReport(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitReport_StoreFailureMapsTo500(t *testing.T) {
	svc := &stubReportService{submitErr: apperrors.NewInternalError("insert failed", nil)}
	handler := NewReportHandler(svc, &stubNoteService{})

	req := httptest.NewRequest(http.MethodPost, "/api/reports", bytes.NewBufferString(`{"patient_id":"p1","content":"x"}`))
	rec := httptest.NewRecorder()

	handler.SubmitReport(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetReport_NotFound(t *testing.T) {
	svc := &stubReportService{getErr: apperrors.NewNotFoundError("report not found")}
	handler := NewReportHandler(svc, &stubNoteService{})

	req := httptest.NewRequest(http.MethodGet, "/api/reports/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()

	handler.GetReport(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetReport_OK(t *testing.T) {
	svc := &stubReportService{report: &entities.Report{ReportID: "r1", PatientID: "p1", Content: "text"}}
	handler := NewReportHandler(svc, &stubNoteService{})

	req := httptest.NewRequest(http.MethodGet, "/api/reports/r1", nil)
	req.SetPathValue("id", "r1")
	rec := httptest.NewRecorder()

	handler.GetReport(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
}

func TestSemanticSearch_EmbedFailureMapsTo502(t *testing.T) {
	svc := &stubReportService{searchErr: apperrors.NewExternalError("failed to embed query text", nil)}
	handler := NewReportHandler(svc, &stubNoteService{})

	req := httptest.NewRequest(http.MethodPost, "/api/reports/semantic-search", bytes.NewBufferString(`{"query":"fever"}`))
	rec := httptest.NewRecorder()

	handler.SemanticSearch(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSemanticSearch_OK(t *testing.T) {
	svc := &stubReportService{results: []*entities.ReportSearchResult{
		{Report: &entities.Report{ReportID: "r1"}, Distance: 0.1},
	}}
	handler := NewReportHandler(svc, &stubNoteService{})

	req := httptest.NewRequest(http.MethodPost, "/api/reports/semantic-search", bytes.NewBufferString(`{"query":"fever","top_k":5}`))
	rec := httptest.NewRecorder()

	handler.SemanticSearch(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}

func TestKeywordSearch_UnavailableMapsTo503(t *testing.T) {
	svc := &stubReportService{keywordErr: apperrors.NewUnavailableError("keyword search engine is not configured")}
	handler := NewReportHandler(svc, &stubNoteService{})

	req := httptest.NewRequest(http.MethodGet, "/api/reports/keyword-search?q=fever", nil)
	rec := httptest.NewRecorder()

	handler.KeywordSearch(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGenerateSOAP_OK(t *testing.T) {
	handler := NewReportHandler(&stubReportService{}, &stubNoteService{note: "S: ..."})

	req := httptest.NewRequest(http.MethodPost, "/api/reports/generate-soap", bytes.NewBufferString(`{"condition":"cough"}`))
	rec := httptest.NewRecorder()

	handler.GenerateSOAP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "S: ...", body["note"])
}
