package cmd

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	"dermai-backend/internal/config"
	"dermai-backend/internal/core"
	"dermai-backend/internal/database"
	"dermai-backend/internal/llm"
	"dermai-backend/internal/messaging"
	"dermai-backend/internal/retry"
	"dermai-backend/internal/storage"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

func CreateDatabase(cfg config.Config) *gorm.DB {
	db, err := database.Open(cfg.DatabaseDSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	return db
}

func CreateStore(db *gorm.DB) *database.Store {
	return database.NewStore(db, retry.Default(nil))
}

func CreateImageStore(cfg config.Config) storage.ImageStore {
	switch cfg.UploadStore {
	case "local", "":
		images, err := storage.NewLocalImageStore(cfg.UploadFolder)
		if err != nil {
			log.Fatalf("Failed to create upload folder: %v", err)
		}
		return images
	case "s3":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		images, err := storage.NewS3ImageStore(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		}, cfg.S3Bucket, "uploads")
		if err != nil {
			log.Fatalf("Failed to create s3 image store: %v", err)
		}
		return images
	default:
		log.Fatalf("Invalid UPLOAD_STORE: %s. Must be either 'local' or 's3'", cfg.UploadStore)
		return nil
	}
}

// CreateClassifier loads the configured model. Load failures are logged and
// leave the classifier not ready so the service can still start.
func CreateClassifier(ctx context.Context, cfg config.Config) *core.ConditionClassifier {
	meta := core.DefaultModelMetadata()

	location := cfg.ModelPath
	modelType := core.ModelType(cfg.ModelType)

	switch modelType {
	case core.OnnxModel:
		if err := core.InitOnnxRuntime(cfg.OnnxRuntimeDylib); err != nil {
			slog.Error("could not init onnx runtime", "error", err)
			return core.NewConditionClassifier(nil, meta)
		}
	case core.RemoteModel:
		location = cfg.RemoteModelURL
	}

	model, err := core.LoadClassifier(modelType, location, meta)
	if err != nil {
		slog.Error("could not load skin condition model", "model_type", cfg.ModelType, "location", location, "error", err)
		return core.NewConditionClassifier(nil, meta)
	}

	classifier := core.NewConditionClassifier(model, meta)
	if err := classifier.Ready(ctx); err != nil {
		slog.Error("model liveness check failed at startup", "error", err)
	} else {
		slog.Info("model initialized successfully", "model_type", cfg.ModelType, "labels", len(meta.Labels))
	}
	return classifier
}

// CreateCompleter returns nil when no API key is configured.
func CreateCompleter(cfg config.Config, model string) llm.Completer {
	if cfg.LLMAPIKey == "" {
		return nil
	}

	completer, err := llm.NewCompleter(llm.Config{
		Backend: llm.Backend(cfg.LLMBackend),
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   model,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to create llm client: %v", err)
	}
	return completer
}

func CreateQueue(cfg config.Config) (messaging.Publisher, messaging.Reciever) {
	switch cfg.QueueBackend {
	case "memory", "":
		queue := messaging.NewInMemoryQueue()
		return queue, queue
	case "rabbitmq":
		publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		reciever, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("Failed to create RabbitMQ receiver: %v", err)
		}
		return publisher, reciever
	default:
		log.Fatalf("Invalid QUEUE_BACKEND: %s", cfg.QueueBackend)
		return nil, nil
	}
}
