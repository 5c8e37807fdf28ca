package core

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"dermai-backend/internal/database"
	"dermai-backend/internal/messaging"
	"dermai-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTask struct {
	queue   string
	payload []byte

	acked, nacked, rejected atomic.Bool
}

func (t *recordingTask) Type() string    { return t.queue }
func (t *recordingTask) Payload() []byte { return t.payload }
func (t *recordingTask) Ack() error      { t.acked.Store(true); return nil }
func (t *recordingTask) Nack() error     { t.nacked.Store(true); return nil }
func (t *recordingTask) Reject() error   { t.rejected.Store(true); return nil }

func seedAnalysis(t *testing.T, store *database.Store, images *storage.LocalImageStore, name string, ts time.Time) database.SkinAnalysisResult {
	ref, err := images.Put(context.Background(), name, strings.NewReader("image"))
	require.NoError(t, err)

	row := database.SkinAnalysisResult{
		UserID:           "u1",
		Timestamp:        ts,
		ImagePath:        ref,
		PrimaryCondition: "FU-ringworm",
		Confidence:       80,
		DetailedAnalysis: []byte(`{}`),
	}
	require.NoError(t, store.SaveAnalysis(context.Background(), &row))
	return row
}

func newTestProcessor(t *testing.T, now time.Time) (*TaskProcessor, *database.Store, *storage.LocalImageStore) {
	store := createTestStore(t)
	images := createImageStore(t)
	classifier, _ := readyClassifier(t)
	queue := messaging.NewInMemoryQueue()
	t.Cleanup(queue.Close)

	proc := NewTaskProcessor(store, images, classifier, queue, queue)
	proc.now = func() time.Time { return now }
	return proc, store, images
}

func TestRunMaintenancePurgesExpiredAnalyses(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	proc, store, images := newTestProcessor(t, now)
	ctx := context.Background()

	old := seedAnalysis(t, store, images, "old.jpg", now.AddDate(0, 0, -31))
	recent := seedAnalysis(t, store, images, "recent.jpg", now.AddDate(0, 0, -29))

	report, err := proc.RunMaintenance(ctx, messaging.MaintenancePayload{RetentionDays: 30})
	require.NoError(t, err)
	assert.Equal(t, 1, report.DeletedRecords)
	assert.Equal(t, 1, report.DeletedImages)
	assert.NoError(t, report.DatabaseErr)
	assert.NoError(t, report.ModelErr)

	rows, err := store.ListAnalyses(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, recent.ID, rows[0].ID)

	exists, err := images.Exists(ctx, old.ImagePath)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = images.Exists(ctx, recent.ImagePath)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRunMaintenanceToleratesMissingImages(t *testing.T) {
	now := time.Now().UTC()
	proc, store, images := newTestProcessor(t, now)
	ctx := context.Background()

	old := seedAnalysis(t, store, images, "old.jpg", now.AddDate(0, 0, -40))
	require.NoError(t, images.Delete(ctx, old.ImagePath))

	report, err := proc.RunMaintenance(ctx, messaging.MaintenancePayload{RetentionDays: 30})
	require.NoError(t, err)
	assert.Equal(t, 1, report.DeletedRecords)
	assert.Equal(t, 0, report.DeletedImages)
}

func TestRunMaintenanceCountsOnlyRemovedImages(t *testing.T) {
	now := time.Now().UTC()
	proc, store, images := newTestProcessor(t, now)
	ctx := context.Background()

	gone := seedAnalysis(t, store, images, "gone.jpg", now.AddDate(0, 0, -45))
	require.NoError(t, images.Delete(ctx, gone.ImagePath))
	seedAnalysis(t, store, images, "a.jpg", now.AddDate(0, 0, -40))
	seedAnalysis(t, store, images, "b.jpg", now.AddDate(0, 0, -35))

	report, err := proc.RunMaintenance(ctx, messaging.MaintenancePayload{RetentionDays: 30})
	require.NoError(t, err)
	assert.Equal(t, 3, report.DeletedRecords)
	assert.Equal(t, 2, report.DeletedImages)
}

func TestRunMaintenanceRejectsInvalidRetention(t *testing.T) {
	proc, _, _ := newTestProcessor(t, time.Now())

	_, err := proc.RunMaintenance(context.Background(), messaging.MaintenancePayload{RetentionDays: 0})
	assert.Error(t, err)
}

func TestProcessTaskAcknowledgement(t *testing.T) {
	now := time.Now().UTC()
	proc, _, _ := newTestProcessor(t, now)

	body, err := json.Marshal(messaging.MaintenancePayload{RetentionDays: 30, RequestedAt: now})
	require.NoError(t, err)

	ok := &recordingTask{queue: messaging.MaintenanceQueue, payload: body}
	proc.ProcessTask(ok)
	assert.True(t, ok.acked.Load())
	assert.False(t, ok.nacked.Load())

	malformed := &recordingTask{queue: messaging.MaintenanceQueue, payload: []byte("{not json")}
	proc.ProcessTask(malformed)
	assert.True(t, malformed.rejected.Load())
	assert.False(t, malformed.acked.Load())

	unknown := &recordingTask{queue: "inference_queue", payload: body}
	proc.ProcessTask(unknown)
	assert.True(t, unknown.rejected.Load())

	invalid := &recordingTask{queue: messaging.MaintenanceQueue, payload: []byte(`{"retention_days": -1}`)}
	proc.ProcessTask(invalid)
	assert.True(t, invalid.nacked.Load())
	assert.False(t, invalid.acked.Load())
}

func TestSchedulerDrivesProcessor(t *testing.T) {
	store := createTestStore(t)
	images, err := storage.NewLocalImageStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	classifier, _ := readyClassifier(t)
	queue := messaging.NewInMemoryQueue()

	seedAnalysis(t, store, images, "old.jpg", time.Now().UTC().AddDate(0, 0, -45))

	proc := NewTaskProcessor(store, images, classifier, queue, queue)
	processorDone := make(chan struct{})
	go func() {
		proc.Start()
		close(processorDone)
	}()

	scheduler := NewScheduler(queue, time.Hour, 30)
	go scheduler.Start()

	assert.Eventually(t, func() bool {
		rows, err := store.ListAnalyses(context.Background(), "u1")
		return err == nil && len(rows) == 0
	}, 5*time.Second, 20*time.Millisecond)

	scheduler.Stop()
	proc.Stop()
	<-processorDone
}
