package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/samdiagnosis/backend/internal/domain/entities"
	"github.com/samdiagnosis/backend/internal/domain/providers"
	"github.com/samdiagnosis/backend/internal/domain/repositories"
	"github.com/samdiagnosis/backend/internal/infrastructure/observability"
	"github.com/samdiagnosis/backend/pkg/config"
	apperrors "github.com/samdiagnosis/backend/pkg/errors"
)

const (
	defaultTopK = 10
	maxTopK     = 50

	idempotencyKeyPrefix = "reports:idempotency:"
)

// SubmitReportInput carries the caller-supplied fields for a new report.
type SubmitReportInput struct {
	PatientID      string `json:"patient_id"`
	DoctorID       string `json:"doctor_id"`
	VisitID        string `json:"visit_id"`
	ReportType     string `json:"report_type"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ReportService handles report ingestion, enrichment and retrieval.
//
// Ingestion is a two-write pipeline: a full insert with a NULL embedding,
// then a conditional update-by-key once the embedding call succeeds. The
// second half is best-effort: the caller never sees an enrichment failure.
type ReportService struct {
	reports  repositories.ReportRepository
	embedder providers.EmbeddingProvider
	cfg      config.PipelineConfig

	index    providers.ReportIndexProvider
	eventBus providers.EventBus
	cache    providers.CacheProvider
	metrics  *observability.Metrics
}

// NewReportService creates a new report service. The embedder may be nil, in
// which case reports are stored unenriched and similarity search is refused.
func NewReportService(reports repositories.ReportRepository, embedder providers.EmbeddingProvider, cfg config.PipelineConfig) *ReportService {
	return &ReportService{
		reports:  reports,
		embedder: embedder,
		cfg:      cfg,
	}
}

// SetIndexProvider wires an optional keyword search index
func (s *ReportService) SetIndexProvider(index providers.ReportIndexProvider) {
	s.index = index
}

// SetEventBus wires an optional event bus for lifecycle events
func (s *ReportService) SetEventBus(bus providers.EventBus) {
	s.eventBus = bus
}

// SetCacheProvider wires an optional cache used for idempotency keys
func (s *ReportService) SetCacheProvider(cache providers.CacheProvider) {
	s.cache = cache
}

// SetMetrics wires optional application metrics
func (s *ReportService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// Submit validates and stores a report, then enriches it best-effort.
// It returns the new report id once the insert has committed; everything
// after that point is invisible to the caller.
func (s *ReportService) Submit(ctx context.Context, input SubmitReportInput) (string, error) {
	patientID := strings.TrimSpace(input.PatientID)
	content := strings.TrimSpace(input.Content)

	if patientID == "" {
		return "", apperrors.NewValidationError("patient_id is required")
	}
	if content == "" {
		return "", apperrors.NewValidationError("content is required")
	}

	reportType := strings.TrimSpace(input.ReportType)
	if reportType == "" {
		reportType = entities.ReportTypeSOAP
	}

	if input.IdempotencyKey != "" {
		if reportID, ok := s.lookupIdempotencyKey(ctx, input.IdempotencyKey); ok {
			log.Info().
				Str("report_id", reportID).
				Msg("Duplicate submission, returning original report id")
			return reportID, nil
		}
	}

	report := &entities.Report{
		ReportID:   uuid.New().String(),
		PatientID:  patientID,
		DoctorID:   strings.TrimSpace(input.DoctorID),
		VisitID:    strings.TrimSpace(input.VisitID),
		ReportType: reportType,
		Title:      strings.TrimSpace(input.Title),
		Content:    content,
	}

	if err := s.reports.Create(ctx, report); err != nil {
		return "", err
	}

	if input.IdempotencyKey != "" {
		s.storeIdempotencyKey(ctx, input.IdempotencyKey, report.ReportID)
	}

	s.publishEvent(ctx, entities.ReportEventCreated, report, "")
	s.enrich(ctx, report)
	s.indexReport(ctx, report)

	return report.ReportID, nil
}

// enrich makes at most one embedding attempt for the report and persists the
// vector on success. Every failure mode here is logged, metered and swallowed.
func (s *ReportService) enrich(ctx context.Context, report *entities.Report) {
	if s.embedder == nil {
		log.Warn().
			Str("report_id", report.ReportID).
			Msg("No embedding provider configured, storing report unenriched")
		observability.RecordEnrichment(ctx, s.metrics, "skipped")
		return
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	vector, err := s.embedder.Embed(embedCtx, report.Content)
	if err == nil && len(vector) == 0 {
		err = apperrors.NewExternalError("embedding provider returned an empty vector", nil)
	}
	if err != nil {
		log.Warn().
			Err(err).
			Str("report_id", report.ReportID).
			Msg("Embedding failed, report stored unenriched")
		observability.RecordEnrichment(ctx, s.metrics, "embed_failed")
		s.publishEvent(ctx, entities.ReportEventEnrichmentFailed, report, err.Error())
		return
	}

	if err := s.reports.SetEmbedding(ctx, report.ReportID, vector); err != nil {
		log.Warn().
			Err(err).
			Str("report_id", report.ReportID).
			Msg("Failed to persist embedding, report stored unenriched")
		observability.RecordEnrichment(ctx, s.metrics, "write_failed")
		s.publishEvent(ctx, entities.ReportEventEnrichmentFailed, report, err.Error())
		return
	}

	report.Embedding = vector
	observability.RecordEnrichment(ctx, s.metrics, "enriched")
	s.publishEvent(ctx, entities.ReportEventEnriched, report, "")
}

func (s *ReportService) indexReport(ctx context.Context, report *entities.Report) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, report); err != nil {
		log.Warn().
			Err(err).
			Str("report_id", report.ReportID).
			Msg("Failed to index report for keyword search")
	}
}

func (s *ReportService) publishEvent(ctx context.Context, eventType string, report *entities.Report, reason string) {
	if s.eventBus == nil {
		return
	}
	event := &entities.ReportEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		ReportID:  report.ReportID,
		PatientID: report.PatientID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	if err := s.eventBus.Publish(ctx, providers.EventChannelReportUpdates, event); err != nil {
		log.Warn().Err(err).Str("report_id", report.ReportID).Msg("Failed to publish report event")
	}
	if err := s.eventBus.Publish(ctx, providers.GetPatientChannel(report.PatientID), event); err != nil {
		log.Warn().Err(err).Str("report_id", report.ReportID).Msg("Failed to publish patient event")
	}
}

func (s *ReportService) lookupIdempotencyKey(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	data, err := s.cache.Get(ctx, idempotencyKeyPrefix+key)
	if err != nil || len(data) == 0 {
		return "", false
	}
	var reportID string
	if err := json.Unmarshal(data, &reportID); err != nil {
		return "", false
	}
	return reportID, true
}

func (s *ReportService) storeIdempotencyKey(ctx context.Context, key, reportID string) {
	if s.cache == nil {
		return
	}
	data, _ := json.Marshal(reportID)
	ttl := int(s.cfg.IdempotencyTTL.Seconds())
	if err := s.cache.Set(ctx, idempotencyKeyPrefix+key, data, ttl); err != nil {
		log.Warn().Err(err).Msg("Failed to store idempotency key")
	}
}

// GetByID retrieves a report by id
func (s *ReportService) GetByID(ctx context.Context, reportID string) (*entities.Report, error) {
	if strings.TrimSpace(reportID) == "" {
		return nil, apperrors.NewValidationError("report id is required")
	}
	return s.reports.GetByID(ctx, reportID)
}

// ListByPatient retrieves a patient's reports newest-first
func (s *ReportService) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*entities.Report, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, apperrors.NewValidationError("patient id is required")
	}
	return s.reports.ListByPatient(ctx, patientID, s.clampPage(limit, offset))
}

func (s *ReportService) clampPage(limit, offset int) repositories.Page {
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return repositories.Page{Limit: limit, Offset: offset}
}

// SearchSimilar embeds the query text and returns the nearest enriched
// reports by cosine distance. Unlike ingestion, a failed embedding call
// fails the whole query.
func (s *ReportService) SearchSimilar(ctx context.Context, queryText string, topK int) ([]*entities.ReportSearchResult, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, apperrors.NewValidationError("query text is required")
	}
	if s.embedder == nil {
		return nil, apperrors.NewUnavailableError("similarity search requires an embedding provider")
	}

	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	vector, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to embed query text", err)
	}
	if len(vector) == 0 {
		return nil, apperrors.NewExternalError("embedding provider returned an empty vector", nil)
	}

	return s.reports.NearestByEmbedding(ctx, vector, topK)
}

// KeywordSearch runs a keyword query against the search index
func (s *ReportService) KeywordSearch(ctx context.Context, query string, limit int) ([]*entities.Report, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError("query is required")
	}
	if s.index == nil {
		return nil, apperrors.NewUnavailableError("keyword search engine is not configured")
	}
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	return s.index.Search(ctx, query, limit)
}
