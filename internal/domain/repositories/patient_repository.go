package repositories

import (
	"context"

	"github.com/samdiagnosis/backend/internal/domain/entities"
)

// PatientRepository defines the interface for patient operations.
type PatientRepository interface {
	Create(ctx context.Context, patient *entities.Patient) error
	GetByID(ctx context.Context, patientID string) (*entities.Patient, error)
	List(ctx context.Context, page Page) ([]*entities.Patient, error)
}
