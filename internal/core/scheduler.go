package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dermai-backend/internal/messaging"
)

// Scheduler publishes a maintenance task at startup and then once per interval.
type Scheduler struct {
	publisher     messaging.Publisher
	interval      time.Duration
	retentionDays int

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewScheduler(publisher messaging.Publisher, interval time.Duration, retentionDays int) *Scheduler {
	return &Scheduler{
		publisher:     publisher,
		interval:      interval,
		retentionDays: retentionDays,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (s *Scheduler) publish() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	payload := messaging.MaintenancePayload{RetentionDays: s.retentionDays, RequestedAt: time.Now().UTC()}
	if err := s.publisher.PublishMaintenanceTask(ctx, payload); err != nil {
		slog.Error("error publishing maintenance task", "error", err)
	}
}

func (s *Scheduler) Start() {
	defer close(s.done)

	slog.Info("starting maintenance scheduler", "interval", s.interval, "retention_days", s.retentionDays)
	s.publish()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.publish()
		case <-s.stop:
			slog.Info("maintenance scheduler stopped")
			return
		}
	}
}

// Stop waits for Start to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}
