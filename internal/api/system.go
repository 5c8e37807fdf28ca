package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"dermai-backend/internal/core"
	"dermai-backend/internal/database"
	"dermai-backend/internal/storage"
	"dermai-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	HealthPath  = "/api/health"
	MetricsPath = "/metrics"
)

type SystemService struct {
	store         *database.Store
	classifier    *core.ConditionClassifier
	images        storage.ImageStore
	llmConfigured bool
	limiter       *RateLimiter
}

func NewSystemService(store *database.Store, classifier *core.ConditionClassifier, images storage.ImageStore, llmConfigured bool, limiter *RateLimiter) *SystemService {
	return &SystemService{
		store:         store,
		classifier:    classifier,
		images:        images,
		llmConfigured: llmConfigured,
		limiter:       limiter,
	}
}

// AddRoutes expects the router mounted at /api.
func (s *SystemService) AddRoutes(r chi.Router) {
	r.With(s.limiter.Middleware).Get("/health", RestHandler(s.Health))
	r.Get("/system/status", RestHandler(s.Status))
	r.Post("/init", RestHandler(s.Init))
}

func AddMetricsRoute(r chi.Router) {
	r.Handle(MetricsPath, promhttp.Handler())
}

func (s *SystemService) uploadsAvailable(ctx context.Context) bool {
	if err := s.images.Check(ctx); err != nil {
		slog.Error("upload location check failed", "location", s.images.Location(), "error", err)
		return false
	}
	return true
}

func (s *SystemService) Health(r *http.Request) (any, error) {
	ctx := r.Context()

	dbErr := s.store.Ping(ctx)
	if dbErr != nil {
		slog.Error("database health check failed", "error", dbErr)
	}
	modelLoaded := s.classifier.IsReady()

	status := "healthy"
	if dbErr != nil || !modelLoaded {
		status = "unhealthy"
	}

	return api.HealthResponse{
		Status:            status,
		ModelLoaded:       modelLoaded,
		DatabaseConnected: dbErr == nil,
		UploadFolder:      s.uploadsAvailable(ctx),
		LLMConfigured:     s.llmConfigured,
		Timestamp:         time.Now().UTC(),
	}, nil
}

func (s *SystemService) Status(r *http.Request) (any, error) {
	services := api.SystemServices{
		ChatService:     api.ServiceStatus{Status: "healthy", Message: "Chat service configured"},
		AnalysisService: api.ServiceStatus{Status: "healthy", Message: "Skin analysis model loaded and ready"},
		Database:        api.ServiceStatus{Status: "healthy", Message: "Database connection verified"},
	}

	if err := s.store.Ping(r.Context()); err != nil {
		services.Database = api.ServiceStatus{Status: "error", Message: fmt.Sprintf("Database error: %v", err)}
	}
	if !s.classifier.IsReady() {
		services.AnalysisService = api.ServiceStatus{Status: "error", Message: "Skin analysis model not loaded"}
	}
	if !s.llmConfigured {
		services.ChatService = api.ServiceStatus{Status: "error", Message: "Missing GROQ API key"}
	}

	healthy := true
	for _, svc := range []api.ServiceStatus{services.ChatService, services.AnalysisService, services.Database} {
		healthy = healthy && svc.Status == "healthy"
	}

	return api.SystemStatusResponse{
		Success:   healthy,
		Timestamp: time.Now().UTC(),
		Services:  services,
	}, nil
}

// Init migrates the schema, reruns the model liveness check and verifies the
// upload location. Only a schema failure fails the request.
func (s *SystemService) Init(r *http.Request) (any, error) {
	ctx := r.Context()

	failed := func(err error) (any, error) {
		slog.Error("initialization failed", "error", err)
		return WithStatus(http.StatusInternalServerError, api.InitResponse{
			Status:  "error",
			Message: fmt.Sprintf("Initialization failed: %v", err),
		}), nil
	}

	if err := database.GetMigrator(s.store.DB().WithContext(ctx)).Migrate(); err != nil {
		return failed(fmt.Errorf("error migrating database: %w", err))
	}
	if !database.VerifySchema(s.store.DB().WithContext(ctx)) {
		return failed(fmt.Errorf("database schema verification failed"))
	}
	if err := s.store.Ping(ctx); err != nil {
		return failed(err)
	}

	modelLoaded := s.classifier.Ready(ctx) == nil

	return api.InitResponse{
		Status:       "success",
		Database:     "connected",
		ModelLoaded:  modelLoaded,
		UploadFolder: s.uploadsAvailable(ctx),
		Message:      "System initialized successfully",
	}, nil
}
