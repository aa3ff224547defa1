package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"

	"github.com/samdiagnosis/backend/internal/domain/providers"
	"github.com/samdiagnosis/backend/internal/domain/repositories"
	apperrors "github.com/samdiagnosis/backend/pkg/errors"
)

const backfillBatchSize = 100

// BackfillSummary reports the outcome of a backfill run
type BackfillSummary struct {
	TotalProcessed int
	SuccessCount   int
	FailureCount   int
}

// EmbeddingBackfillService enriches reports that were stored without an
// embedding, either because the provider was down at ingestion time or not
// configured at all. Unlike the inline pipeline it surfaces failures to the
// operator instead of swallowing them.
type EmbeddingBackfillService struct {
	reports     repositories.ReportRepository
	embedder    providers.EmbeddingProvider
	workerCount int
}

// NewEmbeddingBackfillService creates a new backfill service
func NewEmbeddingBackfillService(reports repositories.ReportRepository, embedder providers.EmbeddingProvider, workers int) *EmbeddingBackfillService {
	if workers <= 0 {
		workers = 1
	}
	return &EmbeddingBackfillService{
		reports:     reports,
		embedder:    embedder,
		workerCount: workers,
	}
}

// BackfillAll scans for unenriched reports in batches and enriches them over
// a bounded worker pool. Rows that fail to enrich stay unenriched, so each
// rescan skips as many of the oldest rows as have failed so far; a batch of
// persistent failures moves the scan window forward instead of ending the run.
func (s *EmbeddingBackfillService) BackfillAll(ctx context.Context) (*BackfillSummary, error) {
	if s.embedder == nil {
		return nil, apperrors.NewUnavailableError("backfill requires an embedding provider")
	}

	pool, err := ants.NewPool(s.workerCount)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var processed, success, failure int64
	var wg sync.WaitGroup
	seen := make(map[string]struct{})

	for {
		ids, err := s.reports.ListUnenrichedIDs(ctx, backfillBatchSize, int(atomic.LoadInt64(&failure)))
		if err != nil {
			wg.Wait()
			return nil, fmt.Errorf("failed to list unenriched reports: %w", err)
		}

		pending := ids[:0]
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			pending = append(pending, id)
		}
		if len(pending) == 0 {
			break
		}

		for _, id := range pending {
			if ctx.Err() != nil {
				wg.Wait()
				return nil, ctx.Err()
			}

			reportID := id
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				atomic.AddInt64(&processed, 1)
				if err := s.BackfillOne(ctx, reportID); err != nil {
					atomic.AddInt64(&failure, 1)
					log.Warn().Err(err).Str("report_id", reportID).Msg("Backfill failed for report")
				} else {
					atomic.AddInt64(&success, 1)
				}
			}); err != nil {
				wg.Done()
				wg.Wait()
				return nil, fmt.Errorf("failed to submit backfill task: %w", err)
			}
		}

		// Wait out the batch before rescanning so enriched rows drop out
		// of the next ListUnenrichedIDs result.
		wg.Wait()

		if len(ids) < backfillBatchSize {
			break
		}
	}

	wg.Wait()

	return &BackfillSummary{
		TotalProcessed: int(processed),
		SuccessCount:   int(success),
		FailureCount:   int(failure),
	}, nil
}

// BackfillOne enriches a single report by id
func (s *EmbeddingBackfillService) BackfillOne(ctx context.Context, reportID string) error {
	if s.embedder == nil {
		return apperrors.NewUnavailableError("backfill requires an embedding provider")
	}

	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return fmt.Errorf("failed to get report %s: %w", reportID, err)
	}

	vector, err := s.embedder.Embed(ctx, report.Content)
	if err != nil {
		return fmt.Errorf("failed to embed report %s: %w", reportID, err)
	}
	if len(vector) == 0 {
		return fmt.Errorf("embedding provider returned an empty vector for report %s", reportID)
	}

	if err := s.reports.SetEmbedding(ctx, reportID, vector); err != nil {
		return fmt.Errorf("failed to persist embedding for report %s: %w", reportID, err)
	}

	return nil
}
