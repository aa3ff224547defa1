package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/samdiagnosis/backend/internal/domain/providers"
	apperrors "github.com/samdiagnosis/backend/pkg/errors"
)

const soapPromptTemplate = "Generate a concise SOAP medical progress note (Subjective, Objective, Assessment, Plan) for the following: %s. Keep it formal and without PHI."

// NoteService generates SOAP progress notes from a condition summary
type NoteService struct {
	textProvider providers.TextProvider
}

// NewNoteService creates a new note service. The text provider may be nil,
// in which case generation is refused as unavailable.
func NewNoteService(textProvider providers.TextProvider) *NoteService {
	return &NoteService{textProvider: textProvider}
}

// GenerateSOAP produces a SOAP note for the given condition summary
func (s *NoteService) GenerateSOAP(ctx context.Context, condition string) (string, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return "", apperrors.NewValidationError("condition is required")
	}
	if s.textProvider == nil {
		return "", apperrors.NewUnavailableError("note generation requires a text provider")
	}

	note, err := s.textProvider.GenerateText(ctx, fmt.Sprintf(soapPromptTemplate, condition))
	if err != nil {
		return "", apperrors.NewExternalError("failed to generate SOAP note", err)
	}
	return note, nil
}
