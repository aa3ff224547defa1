package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/samdiagnosis/backend/internal/domain/entities"
	"github.com/samdiagnosis/backend/internal/domain/repositories"
	"github.com/samdiagnosis/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/samdiagnosis/backend/pkg/errors"
)

const patientsTable = "patients"

// PatientAdapter implements patient persistence in Postgres.
type PatientAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatientAdapter creates a new patient adapter.
func NewPatientAdapter(client *postgres.Client) repositories.PatientRepository {
	return &PatientAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a patient record. created_at is assigned by the store.
func (a *PatientAdapter) Create(ctx context.Context, patient *entities.Patient) error {
	if patient == nil {
		return apperrors.NewInternalError("patient is nil", fmt.Errorf("patient is nil"))
	}

	record := goqu.Record{
		"patient_id":            patient.PatientID,
		"medical_record_number": patient.MedicalRecordNumber,
		"first_name":            patient.FirstName,
		"last_name":             patient.LastName,
		"dob":                   sql.NullString{String: patient.DOB, Valid: patient.DOB != ""},
		"gender":                sql.NullString{String: patient.Gender, Valid: patient.Gender != ""},
		"phone":                 sql.NullString{String: patient.Phone, Valid: patient.Phone != ""},
	}
	if len(patient.Metadata) > 0 {
		record["metadata"] = []byte(patient.Metadata)
	}

	query, args, err := a.db.Insert(patientsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build patient insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create patient", err)
	}

	return nil
}

// GetByID retrieves a patient by key.
func (a *PatientAdapter) GetByID(ctx context.Context, patientID string) (*entities.Patient, error) {
	query, args, err := a.db.Select(
		"patient_id",
		"medical_record_number",
		"first_name",
		"last_name",
		"dob",
		"gender",
		"phone",
		"metadata",
		"created_at",
	).
		From(patientsTable).
		Where(goqu.Ex{"patient_id": patientID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build patient query", err)
	}

	patient, err := scanPatient(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient %s not found", patientID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}

	return patient, nil
}

// List returns patients newest-first with an explicit page size.
func (a *PatientAdapter) List(ctx context.Context, page repositories.Page) ([]*entities.Patient, error) {
	query, args, err := a.db.Select(
		"patient_id",
		"medical_record_number",
		"first_name",
		"last_name",
		"dob",
		"gender",
		"phone",
		"metadata",
		"created_at",
	).
		From(patientsTable).
		Order(goqu.I("created_at").Desc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build patient list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list patients", err)
	}
	defer rows.Close()

	patients := []*entities.Patient{}
	for rows.Next() {
		patient, err := scanPatient(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan patient", err)
		}
		patients = append(patients, patient)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate patients", err)
	}

	return patients, nil
}

func scanPatient(row rowScanner) (*entities.Patient, error) {
	var (
		patient            entities.Patient
		dob, gender, phone sql.NullString
		metadata           []byte
	)

	err := row.Scan(
		&patient.PatientID,
		&patient.MedicalRecordNumber,
		&patient.FirstName,
		&patient.LastName,
		&dob,
		&gender,
		&phone,
		&metadata,
		&patient.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	patient.DOB = dob.String
	patient.Gender = gender.String
	patient.Phone = phone.String
	if len(metadata) > 0 {
		patient.Metadata = metadata
	}

	return &patient, nil
}
