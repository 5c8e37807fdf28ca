package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dermai-backend/cmd"
	"dermai-backend/internal/api"
	"dermai-backend/internal/augment"
	"dermai-backend/internal/chat"
	"dermai-backend/internal/config"
	"dermai-backend/internal/core"
	"dermai-backend/internal/metrics"
	"dermai-backend/internal/retry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func createServer(cfg config.Config, chatService *api.ChatService, analysisService *api.AnalysisService, systemService *api.SystemService) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", api.APIKeyHeader},
		ExposedHeaders:   []string{"Content-Range", "X-Content-Range"},
		AllowCredentials: true,
		MaxAge:           600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(api.RequireAPIKey(cfg.ServiceAPIKey, api.HealthPath, api.MetricsPath, "/chat/health"))

	chatService.AddRoutes(r)
	r.Route("/api", func(r chi.Router) {
		analysisService.AddRoutes(r)
		systemService.AddRoutes(r)
	})
	api.AddMetricsRoute(r)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
}

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating directory for log file: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(cfg.Root, "backend.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(f, os.Stderr))

	slog.Info("starting dermai backend", "root", cfg.Root, "port", cfg.Port, "model_type", cfg.ModelType, "upload_store", cfg.UploadStore, "queue_backend", cfg.QueueBackend)

	metrics.Register()

	db := cmd.CreateDatabase(cfg)
	store := cmd.CreateStore(db)
	images := cmd.CreateImageStore(cfg)

	classifier := cmd.CreateClassifier(context.Background(), cfg)
	defer func() {
		if err := core.DestroyOnnxRuntime(); err != nil {
			slog.Error("error destroying onnx env", "error", err)
		}
	}()

	cache, err := augment.NewCache(cfg.AugmentCacheSize)
	if err != nil {
		log.Fatalf("invalid augmentation cache: %v", err)
	}

	llmPolicy := retry.Default(nil)
	augmenter := augment.NewAugmenter(cmd.CreateCompleter(cfg, cfg.AnalysisModel), cache, cfg.AnalysisModel, llmPolicy)
	orchestrator := chat.NewOrchestrator(store, cmd.CreateCompleter(cfg, cfg.ChatModel), cfg.ChatModel, llmPolicy, cfg.ChatMaxActiveUsers)
	analyzer := core.NewAnalyzer(classifier, augmenter, store, images)

	publisher, reciever := cmd.CreateQueue(cfg)
	worker := core.NewTaskProcessor(store, images, classifier, publisher, reciever)
	scheduler := core.NewScheduler(publisher, cfg.CleanupInterval, cfg.RetentionDays)

	server := createServer(cfg,
		api.NewChatService(orchestrator),
		api.NewAnalysisService(analyzer, store, api.NewRateLimiter(cfg.AnalyzeRateLimit)),
		api.NewSystemService(store, classifier, images, orchestrator.LLMConfigured(), api.NewRateLimiter(cfg.HealthRateLimit)),
	)

	slog.Info("starting worker")
	go worker.Start()
	go scheduler.Start()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down worker")
		scheduler.Stop()
		worker.Stop()
	}()

	slog.Info("server started", "port", cfg.Port, "origins", cfg.Origins())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	<-stopped
	slog.Info("server stopped")
}
