package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/samdiagnosis/backend/internal/domain/entities"
	"github.com/samdiagnosis/backend/internal/domain/repositories"
	apperrors "github.com/samdiagnosis/backend/pkg/errors"
)

// PatientService handles patient registration and lookup
type PatientService struct {
	patients repositories.PatientRepository
	reports  repositories.ReportRepository
	cfg      pageConfig
}

type pageConfig struct {
	defaultSize int
	maxSize     int
}

// NewPatientService creates a new patient service
func NewPatientService(patients repositories.PatientRepository, reports repositories.ReportRepository, defaultPageSize, maxPageSize int) *PatientService {
	return &PatientService{
		patients: patients,
		reports:  reports,
		cfg:      pageConfig{defaultSize: defaultPageSize, maxSize: maxPageSize},
	}
}

// Create registers a new patient, generating its id
func (s *PatientService) Create(ctx context.Context, patient *entities.Patient) error {
	if patient == nil {
		return apperrors.NewValidationError("patient is required")
	}
	if strings.TrimSpace(patient.FirstName) == "" || strings.TrimSpace(patient.LastName) == "" {
		return apperrors.NewValidationError("first_name and last_name are required")
	}

	patient.PatientID = uuid.New().String()
	return s.patients.Create(ctx, patient)
}

// Get retrieves a patient together with their reports, newest-first
func (s *PatientService) Get(ctx context.Context, patientID string) (*entities.Patient, []*entities.Report, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, nil, apperrors.NewValidationError("patient id is required")
	}

	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}

	reports, err := s.reports.ListByPatient(ctx, patientID, s.page(0, 0))
	if err != nil {
		return nil, nil, err
	}

	return patient, reports, nil
}

// List retrieves patients, paginated
func (s *PatientService) List(ctx context.Context, limit, offset int) ([]*entities.Patient, error) {
	return s.patients.List(ctx, s.page(limit, offset))
}

func (s *PatientService) page(limit, offset int) repositories.Page {
	if limit <= 0 {
		limit = s.cfg.defaultSize
	}
	if limit > s.cfg.maxSize {
		limit = s.cfg.maxSize
	}
	if offset < 0 {
		offset = 0
	}
	return repositories.Page{Limit: limit, Offset: offset}
}
