package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/notihub/notihub/internal/queue"
)

// DLQHealth summarizes the automation dead-letter queue for alerting and
// the /stats endpoint.
type DLQHealth struct {
	PendingCount int64
	DLQCount     int64
	OldestDLQAge time.Duration
	Severity     DLQSeverity
}

// DLQSeverity classifies a DLQHealth reading against the configured
// warning/critical/stale thresholds.
type DLQSeverity string

const (
	DLQHealthy  DLQSeverity = "healthy"
	DLQWarning  DLQSeverity = "warning"
	DLQCritical DLQSeverity = "critical"
)

// DLQStats is the subset of AutomationQueue the health check and replay job
// use.
type DLQStats interface {
	Stats(ctx context.Context) (queue.AutomationStats, error)
	OldestDLQEntry(ctx context.Context) (time.Time, bool, error)
	ReplayFromDLQ(ctx context.Context, id uuid.UUID) error
}

// CheckDLQHealth reports current depth and staleness against the configured
// thresholds. It never errors on a Stats failure — a health check failing
// open is preferable to a monitoring loop crashing the worker.
func (w *Worker) CheckDLQHealth(ctx context.Context, stats DLQStats) DLQHealth {
	s, err := stats.Stats(ctx)
	if err != nil {
		w.captureError(err, "check_dlq_health")
		return DLQHealth{Severity: DLQCritical}
	}

	var age time.Duration
	if oldest, ok, oldestErr := stats.OldestDLQEntry(ctx); oldestErr == nil && ok {
		age = w.now().Sub(oldest)
	}

	health := DLQHealth{PendingCount: s.PendingCount, DLQCount: s.DLQCount, OldestDLQAge: age}
	switch {
	case s.DLQCount >= w.config.DLQCriticalThreshold || age >= w.config.DLQStaleAfter:
		health.Severity = DLQCritical
	case s.DLQCount >= w.config.DLQWarningThreshold:
		health.Severity = DLQWarning
	default:
		health.Severity = DLQHealthy
	}

	if health.Severity != DLQHealthy {
		log.Printf("[%s] dlq health %s: pending=%d dlq=%d oldest_age=%s",
			w.workerID, health.Severity, health.PendingCount, health.DLQCount, health.OldestDLQAge)
	}
	return health
}

// ReplayDLQ moves up to limit dead jobs back onto the pending automation
// queue so ProcessAutomationQueue picks them up on its next pass.
func (w *Worker) ReplayDLQ(ctx context.Context, stats DLQStats, ids []uuid.UUID) (replayed, failed int, err error) {
	for _, id := range ids {
		if replayErr := stats.ReplayFromDLQ(ctx, id); replayErr != nil {
			w.captureError(fmt.Errorf("replay %s: %w", id, replayErr), "replay_dlq")
			failed++
			continue
		}
		replayed++
	}
	return replayed, failed, nil
}
