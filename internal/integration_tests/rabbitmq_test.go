package integrationtests

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dermai-backend/internal/core"
	"dermai-backend/internal/database"
	"dermai-backend/internal/messaging"
	"dermai-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRabbitMQ(t *testing.T) {
	skipShort(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	url := setupRabbitMQContainer(t, ctx)

	publisher, err := messaging.NewRabbitMQPublisher(url)
	require.NoError(t, err)
	defer publisher.Close()

	receiver, err := messaging.NewRabbitMQReceiver(url)
	require.NoError(t, err)
	defer receiver.Close()

	t.Run("Publish and Receive MaintenanceTask", func(t *testing.T) {
		payload := messaging.MaintenancePayload{RetentionDays: 30, RequestedAt: time.Now().UTC().Truncate(time.Second)}
		require.NoError(t, publisher.PublishMaintenanceTask(ctx, payload))

		select {
		case task := <-receiver.Tasks():
			assert.Equal(t, messaging.MaintenanceQueue, task.Type())

			var received messaging.MaintenancePayload
			require.NoError(t, json.Unmarshal(task.Payload(), &received))
			assert.Equal(t, payload.RetentionDays, received.RetentionDays)
			assert.True(t, payload.RequestedAt.Equal(received.RequestedAt))

			require.NoError(t, task.Ack())
		case <-time.After(10 * time.Second):
			t.Fatal("Timed out waiting for task")
		}
	})
}

type constantModel struct {
	labels int
}

func (m constantModel) Predict(ctx context.Context, input core.Tensor) ([]float32, error) {
	return make([]float32, m.labels), nil
}

func (constantModel) Release() {}

func TestMaintenanceOverRabbitMQ(t *testing.T) {
	skipShort(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	url := setupRabbitMQContainer(t, ctx)
	store := createStore(t)

	images, err := storage.NewLocalImageStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	ref, err := images.Put(ctx, "expired.jpg", strings.NewReader("image"))
	require.NoError(t, err)
	require.NoError(t, store.SaveAnalysis(ctx, &database.SkinAnalysisResult{
		UserID:           "mq-user",
		Timestamp:        time.Now().UTC().AddDate(0, 0, -60),
		ImagePath:        ref,
		PrimaryCondition: "VI-shingles",
		Confidence:       66,
		DetailedAnalysis: []byte(`{}`),
	}))

	publisher, err := messaging.NewRabbitMQPublisher(url)
	require.NoError(t, err)
	receiver, err := messaging.NewRabbitMQReceiver(url)
	require.NoError(t, err)

	meta := core.DefaultModelMetadata()
	classifier := core.NewConditionClassifier(constantModel{labels: len(meta.Labels)}, meta)
	worker := core.NewTaskProcessor(store, images, classifier, publisher, receiver)
	go worker.Start()
	defer worker.Stop()

	scheduler := core.NewScheduler(publisher, time.Hour, 30)
	go scheduler.Start()
	defer scheduler.Stop()

	assert.Eventually(t, func() bool {
		rows, err := store.ListAnalyses(ctx, "mq-user")
		return err == nil && len(rows) == 0
	}, 30*time.Second, 100*time.Millisecond)

	assert.Eventually(t, func() bool {
		exists, err := images.Exists(ctx, ref)
		return err == nil && !exists
	}, 10*time.Second, 100*time.Millisecond)

	assert.Eventually(t, classifier.IsReady, 10*time.Second, 100*time.Millisecond)
}
