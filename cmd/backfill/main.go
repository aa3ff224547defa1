package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/samdiagnosis/backend/internal/adapters/database"
	"github.com/samdiagnosis/backend/internal/application/services"
	"github.com/samdiagnosis/backend/internal/infrastructure/clients/postgres"
	"github.com/samdiagnosis/backend/internal/infrastructure/clients/vertex"
	"github.com/samdiagnosis/backend/internal/infrastructure/observability"
	"github.com/samdiagnosis/backend/pkg/config"
)

func main() {
	var workers int
	var reportID string

	flag.IntVar(&workers, "workers", 3, "Number of concurrent workers")
	flag.StringVar(&reportID, "report", "", "Single report ID to backfill")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger("samdiagnosis-backfill", "production")

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgClient.Close()

	if cfg.Vertex.ProjectID == "" {
		log.Fatal().Msg("GCP_PROJECT must be set for backfill")
	}

	vertexClient, err := vertex.NewClient(&cfg.Vertex)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Vertex AI client")
	}

	reportAdapter := database.NewReportAdapter(pgClient)
	svc := services.NewEmbeddingBackfillService(reportAdapter, vertexClient, workers)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()

	if reportID != "" {
		log.Info().Str("report_id", reportID).Msg("Backfilling single report")
		if err := svc.BackfillOne(ctx, reportID); err != nil {
			log.Fatal().Err(err).Str("report_id", reportID).Msg("Failed to backfill report")
		}
		log.Info().Str("report_id", reportID).Msg("Successfully backfilled report")
		return
	}

	log.Info().Int("workers", workers).Msg("Starting embedding backfill")
	summary, err := svc.BackfillAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Backfill failed")
	}

	log.Info().
		Dur("elapsed", time.Since(start)).
		Int("total", summary.TotalProcessed).
		Int("success", summary.SuccessCount).
		Int("failed", summary.FailureCount).
		Msg("Backfill complete")
}
