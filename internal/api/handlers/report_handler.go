package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/samdiagnosis/backend/internal/application/services"
	"github.com/samdiagnosis/backend/internal/domain/entities"
)

// ReportService is the service surface the report handler depends on
type ReportService interface {
	Submit(ctx context.Context, input services.SubmitReportInput) (string, error)
	GetByID(ctx context.Context, reportID string) (*entities.Report, error)
	SearchSimilar(ctx context.Context, queryText string, topK int) ([]*entities.ReportSearchResult, error)
	KeywordSearch(ctx context.Context, query string, limit int) ([]*entities.Report, error)
}

// NoteService generates SOAP notes
type NoteService interface {
	GenerateSOAP(ctx context.Context, condition string) (string, error)
}

// ReportHandler handles report-related HTTP requests
type ReportHandler struct {
	reportService ReportService
	noteService   NoteService
}

// NewReportHandler creates a new report handler
func NewReportHandler(reportService ReportService, noteService NoteService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		noteService:   noteService,
	}
}

// SubmitReport handles POST /api/reports
func (h *ReportHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	var input services.SubmitReportInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reportID, err := h.reportService.Submit(r.Context(), input)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":        true,
		"report_id": reportID,
	})
}

// GetReport handles GET /api/reports/{id}
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	reportID := r.PathValue("id")
	if reportID == "" {
		respondWithError(w, http.StatusBadRequest, "report ID is required")
		return
	}

	report, err := h.reportService.GetByID(r.Context(), reportID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"report": report,
	})
}

type semanticSearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// SemanticSearch handles POST /api/reports/semantic-search
func (h *ReportHandler) SemanticSearch(w http.ResponseWriter, r *http.Request) {
	var req semanticSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.reportService.SearchSimilar(r.Context(), req.Query, req.TopK)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"results": results,
		"count":   len(results),
	})
}

// KeywordSearch handles GET /api/reports/keyword-search
func (h *ReportHandler) KeywordSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	reports, err := h.reportService.KeywordSearch(r.Context(), query, limit)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"reports": reports,
		"count":   len(reports),
	})
}

type generateSOAPRequest struct {
	Condition string `json:"condition"`
}

// GenerateSOAP handles POST /api/reports/generate-soap
func (h *ReportHandler) GenerateSOAP(w http.ResponseWriter, r *http.Request) {
	var req generateSOAPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	note, err := h.noteService.GenerateSOAP(r.Context(), req.Condition)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"note": note,
	})
}
