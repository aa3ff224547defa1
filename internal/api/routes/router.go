package routes

import (
	"net/http"

	"github.com/samdiagnosis/backend/internal/api/handlers"
	"github.com/samdiagnosis/backend/internal/api/middleware"
	"github.com/samdiagnosis/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	reportHandler  *handlers.ReportHandler
	patientHandler *handlers.PatientHandler
	sseHandler     *handlers.SSEHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
	allowedOrigins  []string
}

// NewRouter creates a new router. sseHandler is nil when no event bus is
// configured; the stream routes are simply not registered then.
func NewRouter(
	reportHandler *handlers.ReportHandler,
	patientHandler *handlers.PatientHandler,
	sseHandler *handlers.SSEHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
	allowedOrigins []string,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		reportHandler:   reportHandler,
		patientHandler:  patientHandler,
		sseHandler:      sseHandler,
		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
		allowedOrigins:  allowedOrigins,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Report endpoints
	r.mux.HandleFunc("POST /api/reports", r.reportHandler.SubmitReport)
	r.mux.HandleFunc("POST /api/reports/semantic-search", r.reportHandler.SemanticSearch)
	r.mux.HandleFunc("GET /api/reports/keyword-search", r.reportHandler.KeywordSearch)
	r.mux.HandleFunc("POST /api/reports/generate-soap", r.reportHandler.GenerateSOAP)
	r.mux.HandleFunc("GET /api/reports/{id}", r.reportHandler.GetReport)

	// Patient endpoints
	r.mux.HandleFunc("POST /api/patients", r.patientHandler.CreatePatient)
	r.mux.HandleFunc("GET /api/patients", r.patientHandler.ListPatients)
	r.mux.HandleFunc("GET /api/patients/{id}", r.patientHandler.GetPatient)
	r.mux.HandleFunc("GET /api/patients/{id}/reports", r.patientHandler.ListPatientReports)

	// Streaming endpoints
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/reports", r.sseHandler.StreamReportUpdates)
		r.mux.HandleFunc("GET /api/stream/patients/{id}/reports", r.sseHandler.StreamPatientReportUpdates)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	if r.metrics != nil {
		handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	}

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
