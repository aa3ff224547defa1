package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/samdiagnosis/backend/internal/adapters/cache"
	"github.com/samdiagnosis/backend/internal/adapters/database"
	"github.com/samdiagnosis/backend/internal/adapters/events"
	"github.com/samdiagnosis/backend/internal/adapters/search"
	"github.com/samdiagnosis/backend/internal/api/handlers"
	"github.com/samdiagnosis/backend/internal/api/middleware"
	"github.com/samdiagnosis/backend/internal/api/routes"
	"github.com/samdiagnosis/backend/internal/application/services"
	"github.com/samdiagnosis/backend/internal/domain/providers"
	"github.com/samdiagnosis/backend/internal/domain/repositories"
	"github.com/samdiagnosis/backend/internal/infrastructure/clients/postgres"
	"github.com/samdiagnosis/backend/internal/infrastructure/clients/redis"
	"github.com/samdiagnosis/backend/internal/infrastructure/clients/typesense"
	"github.com/samdiagnosis/backend/internal/infrastructure/clients/vertex"
	"github.com/samdiagnosis/backend/internal/infrastructure/observability"
	"github.com/samdiagnosis/backend/pkg/config"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, getEnv("APP_ENV", "development"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// The record store is the only hard dependency
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()
	log.Info().Msg("PostgreSQL client initialized successfully")

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis client, falling back to in-process cache")
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Info().Msg("Redis client initialized successfully")
	}

	typesenseClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Typesense client, keyword search disabled")
		typesenseClient = nil
	} else {
		log.Info().Msg("Typesense client initialized successfully")
	}

	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
	} else {
		cacheProvider, err = cache.NewLRUAdapter(0)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize LRU cache")
		}
	}

	var eventBus providers.EventBus
	if redisClient != nil {
		eventBus = events.NewRedisEventBus(redisClient)
		log.Info().Msg("Event bus initialized successfully")
	} else {
		log.Info().Msg("Event bus disabled (Redis not available)")
	}

	var indexProvider providers.ReportIndexProvider
	if typesenseClient != nil {
		adapter := search.NewTypesenseAdapter(typesenseClient)
		if err := adapter.InitSchema(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to init Typesense schema")
		}
		indexProvider = adapter
	}

	var embeddingProvider providers.EmbeddingProvider
	var textProvider providers.TextProvider
	if cfg.Vertex.ProjectID == "" {
		log.Warn().Msg("GCP_PROJECT is not set; enrichment and note generation disabled")
	} else {
		vertexClient, err := vertex.NewClient(&cfg.Vertex)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Vertex AI client")
		} else {
			embeddingProvider = vertexClient
			textProvider = vertexClient
			log.Info().Msg("Vertex AI client initialized successfully")
		}
	}

	// Adapters
	reportAdapter := database.NewReportAdapter(pgClient)

	basePatientAdapter := database.NewPatientAdapter(pgClient)
	var patientAdapter repositories.PatientRepository
	if cacheProvider != nil {
		patientAdapter = database.NewCachedPatientAdapter(basePatientAdapter, cacheProvider)
	} else {
		patientAdapter = basePatientAdapter
	}

	// Services
	reportService := services.NewReportService(reportAdapter, embeddingProvider, cfg.Pipeline)
	reportService.SetCacheProvider(cacheProvider)
	reportService.SetMetrics(metrics)
	if eventBus != nil {
		reportService.SetEventBus(eventBus)
	}
	if indexProvider != nil {
		reportService.SetIndexProvider(indexProvider)
	}

	patientService := services.NewPatientService(
		patientAdapter,
		reportAdapter,
		cfg.Pipeline.DefaultPageSize,
		cfg.Pipeline.MaxPageSize,
	)
	noteService := services.NewNoteService(textProvider)

	// Handlers
	reportHandler := handlers.NewReportHandler(reportService, noteService)
	patientHandler := handlers.NewPatientHandler(patientService, reportService)

	var sseHandler *handlers.SSEHandler
	if eventBus != nil {
		sseHandler = handlers.NewSSEHandler(eventBus)
	}

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider)
	}

	router := routes.NewRouter(reportHandler, patientHandler, sseHandler, cacheMiddleware, metrics, cfg.Server.AllowedOrigins)
	handler := router.SetupRoutes()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	}

	log.Info().Msg("Server stopped")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
