package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/samdiagnosis/backend/internal/domain/entities"
)

// PatientService is the service surface the patient handler depends on
type PatientService interface {
	Create(ctx context.Context, patient *entities.Patient) error
	Get(ctx context.Context, patientID string) (*entities.Patient, []*entities.Report, error)
	List(ctx context.Context, limit, offset int) ([]*entities.Patient, error)
}

// PatientReportLister lists a patient's reports
type PatientReportLister interface {
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*entities.Report, error)
}

// PatientHandler handles patient-related HTTP requests
type PatientHandler struct {
	patientService PatientService
	reportLister   PatientReportLister
}

// NewPatientHandler creates a new patient handler
func NewPatientHandler(patientService PatientService, reportLister PatientReportLister) *PatientHandler {
	return &PatientHandler{
		patientService: patientService,
		reportLister:   reportLister,
	}
}

// CreatePatient handles POST /api/patients
func (h *PatientHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var patient entities.Patient
	if err := json.NewDecoder(r.Body).Decode(&patient); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.patientService.Create(r.Context(), &patient); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":      true,
		"patient": patient,
	})
}

// GetPatient handles GET /api/patients/{id}
func (h *PatientHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	if patientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}

	patient, reports, err := h.patientService.Get(r.Context(), patientID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"patient": patient,
		"reports": reports,
	})
}

// ListPatients handles GET /api/patients
func (h *PatientHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	patients, err := h.patientService.List(r.Context(), limit, offset)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"patients": patients,
		"count":    len(patients),
	})
}

// ListPatientReports handles GET /api/patients/{id}/reports
func (h *PatientHandler) ListPatientReports(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	if patientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	reports, err := h.reportLister.ListByPatient(r.Context(), patientID, limit, offset)
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
