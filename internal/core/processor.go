package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dermai-backend/internal/core/utils"
	"dermai-backend/internal/database"
	"dermai-backend/internal/messaging"
	"dermai-backend/internal/metrics"
	"dermai-backend/internal/storage"
)

const cleanupWorkers = 4

// TaskProcessor consumes background tasks. Maintenance failures are logged
// and reported to the queue, never escalated.
type TaskProcessor struct {
	store      *database.Store
	images     storage.ImageStore
	classifier *ConditionClassifier
	publisher  messaging.Publisher
	reciever   messaging.Reciever

	now func() time.Time
}

func NewTaskProcessor(store *database.Store, images storage.ImageStore, classifier *ConditionClassifier, publisher messaging.Publisher, reciever messaging.Reciever) *TaskProcessor {
	return &TaskProcessor{
		store:      store,
		images:     images,
		classifier: classifier,
		publisher:  publisher,
		reciever:   reciever,
		now:        time.Now,
	}
}

func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor")

	for task := range proc.reciever.Tasks() {
		proc.ProcessTask(task)
	}

	slog.Info("task processor stopped")
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.publisher.Close()
	proc.reciever.Close()
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	var err error
	switch task.Type() {
	case messaging.MaintenanceQueue:
		var payload messaging.MaintenancePayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling maintenance task", "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		_, err = proc.RunMaintenance(ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

type MaintenanceReport struct {
	DeletedRecords int
	DeletedImages  int
	DatabaseErr    error
	ModelErr       error
}

// RunMaintenance purges analyses older than the retention window, removes
// their images and checks the database and model. Only a failed purge is
// returned as an error; health check failures are logged and reported.
func (proc *TaskProcessor) RunMaintenance(ctx context.Context, payload messaging.MaintenancePayload) (MaintenanceReport, error) {
	var report MaintenanceReport

	if payload.RetentionDays <= 0 {
		return report, fmt.Errorf("invalid retention days %d", payload.RetentionDays)
	}

	cutoff := proc.now().UTC().AddDate(0, 0, -payload.RetentionDays)
	expired, err := proc.store.DeleteAnalysesOlderThan(ctx, cutoff)
	if err != nil {
		return report, fmt.Errorf("error cleaning up old analyses: %w", err)
	}
	report.DeletedRecords = len(expired)
	metrics.CleanupDeletedTotal.Add(float64(len(expired)))

	refs := make([]string, 0, len(expired))
	for _, row := range expired {
		if row.ImagePath != "" {
			refs = append(refs, row.ImagePath)
		}
	}

	results := utils.RunInPool(ctx, refs, cleanupWorkers, func(ctx context.Context, ref string) (struct{}, error) {
		return struct{}{}, proc.images.Delete(ctx, ref)
	})
	failed := utils.Failed(results)
	report.DeletedImages = len(results) - len(failed)
	for _, res := range failed {
		if !errors.Is(res.Error, storage.ErrImageNotFound) {
			slog.Error("error deleting expired image", "image", res.Input, "error", res.Error)
		}
	}

	slog.Info("retention cleanup finished", "cutoff", cutoff, "deleted_records", report.DeletedRecords, "deleted_images", report.DeletedImages)

	if report.DatabaseErr = proc.store.Ping(ctx); report.DatabaseErr != nil {
		slog.Error("database health check failed", "error", report.DatabaseErr)
	}

	if proc.classifier != nil {
		if report.ModelErr = proc.classifier.Ready(ctx); report.ModelErr != nil {
			slog.Error("model health check failed", "error", report.ModelErr)
		}
	}

	return report, nil
}
