package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samdiagnosis/backend/internal/domain/entities"
	"github.com/samdiagnosis/backend/internal/domain/providers"
	"github.com/samdiagnosis/backend/internal/domain/repositories"
	"github.com/samdiagnosis/backend/internal/infrastructure/observability"
)

// patientByIDTTL is the cache lifetime for single-patient reads. Patients
// are immutable after creation, so a generous TTL is safe.
const patientByIDTTL = 600

// CachedPatientAdapter wraps a PatientRepository with read-through caching
// on by-id lookups. Lists are not cached; every report submission would
// invalidate them.
type CachedPatientAdapter struct {
	adapter repositories.PatientRepository
	cache   providers.CacheProvider
}

// NewCachedPatientAdapter creates a new cached patient adapter.
func NewCachedPatientAdapter(adapter repositories.PatientRepository, cache providers.CacheProvider) repositories.PatientRepository {
	return &CachedPatientAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

func patientCacheKey(id string) string {
	return fmt.Sprintf("patient:%s", id)
}

// Create passes through and drops any stale cached entry for the id.
func (a *CachedPatientAdapter) Create(ctx context.Context, patient *entities.Patient) error {
	if err := a.adapter.Create(ctx, patient); err != nil {
		return err
	}
	_ = a.cache.Delete(ctx, patientCacheKey(patient.PatientID))
	return nil
}

// GetByID retrieves a patient with read-through caching.
func (a *CachedPatientAdapter) GetByID(ctx context.Context, patientID string) (*entities.Patient, error) {
	cacheKey := patientCacheKey(patientID)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var patient entities.Patient
		if err := json.Unmarshal(cached, &patient); err == nil {
			return &patient, nil
		}
	}

	patient, err := a.adapter.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(patient); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, patientByIDTTL); err != nil {
			observability.LoggerFromContext(ctx).Debug().Err(err).
				Str("patient_id", patientID).Msg("failed to cache patient")
		}
	}

	return patient, nil
}

// List always hits the store.
func (a *CachedPatientAdapter) List(ctx context.Context, page repositories.Page) ([]*entities.Patient, error) {
	return a.adapter.List(ctx, page)
}
