package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var errQueueClosed = errors.New("queue is closed")

type inMemoryTask struct {
	queue   string
	payload []byte
}

func (t *inMemoryTask) Type() string {
	return t.queue
}

func (t *inMemoryTask) Payload() []byte {
	return t.payload
}

func (t *inMemoryTask) Ack() error {
	return nil
}

func (t *inMemoryTask) Nack() error {
	return nil
}

func (t *inMemoryTask) Reject() error {
	return nil
}

// InMemoryQueue is both Publisher and Reciever for single-process deployments.
// Close unblocks pending publishes before closing the task channel.
type InMemoryQueue struct {
	tasks     chan Task
	done      chan struct{}
	closeOnce sync.Once
	inflight  sync.WaitGroup
	mu        sync.Mutex
	closed    bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks: make(chan Task, 100),
		done:  make(chan struct{}),
	}
}

func (q *InMemoryQueue) publishTaskInternal(ctx context.Context, queue string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", queue, err)
	}
	return q.PublishRaw(ctx, queue, data)
}

func (q *InMemoryQueue) PublishMaintenanceTask(ctx context.Context, payload MaintenancePayload) error {
	return q.publishTaskInternal(ctx, MaintenanceQueue, payload)
}

// PublishRaw enqueues an arbitrary body, used to exercise task rejection.
func (q *InMemoryQueue) PublishRaw(ctx context.Context, queue string, body []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errQueueClosed
	}
	q.inflight.Add(1)
	q.mu.Unlock()
	defer q.inflight.Done()

	select {
	case q.tasks <- &inMemoryTask{queue: queue, payload: body}:
		return nil
	case <-q.done:
		return errQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemoryQueue) Tasks() <-chan Task {
	return q.tasks
}

func (q *InMemoryQueue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		close(q.done)
		q.inflight.Wait()
		close(q.tasks)
	})
}
