package messaging

import (
	"context"
	"time"
)

const (
	MaintenanceQueue = "maintenance_queue"
	RetryDelay       = 5 * time.Second
	MaxConnectRetry  = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// MaintenancePayload asks a worker to purge analyses older than RetentionDays
// and to run the storage and model liveness checks.
type MaintenancePayload struct {
	RetentionDays int       `json:"retention_days"`
	RequestedAt   time.Time `json:"requested_at"`
}

type Publisher interface {
	PublishMaintenanceTask(ctx context.Context, payload MaintenancePayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
