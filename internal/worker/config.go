package worker

import "time"

// Adaptive polling bounds, the same shape the reference worker used for its
// single queue: speed up while busy, back off exponentially while idle.
const (
	minPollInterval = 50 * time.Millisecond
	maxPollInterval = 2 * time.Second
	pollBackoffRate = 1.5
)

// Config controls one Worker's batch sizes, retry limits, and DLQ alert
// thresholds.
type Config struct {
	WorkerPrefix string

	// QueueBatchSize is the number of durable-queue items ProcessQueue
	// claims per pass.
	QueueBatchSize int
	// MaxAttempts caps ProcessQueue's pending-retry count before a
	// retryable failure is marked failed outright.
	MaxAttempts int
	// StuckItemTimeout reclaims items left "processing" past this long —
	// a worker that died mid-send.
	StuckItemTimeout time.Duration

	// DigestBatchSize is the number of due digest entries ProcessDigest
	// flushes per frequency per pass.
	DigestBatchSize int
	DigestInterval  time.Duration

	// AutomationBatchSize/AutomationConcurrency control
	// ProcessAutomationQueue's chunked draining: items are pulled in
	// groups of AutomationConcurrency, each group awaited before the next,
	// until AutomationBatchSize items have been drained, the queue is
	// empty, or another worker holds the next group's lock.
	AutomationBatchSize  int
	AutomationConcurrency int
	AutomationLockTTL     time.Duration

	// DLQ alert thresholds: Warning/Critical are queue-depth counts,
	// StaleAfter flags an oldest-entry age past which the backlog itself
	// (not just its size) is considered unhealthy.
	DLQWarningThreshold  int64
	DLQCriticalThreshold int64
	DLQStaleAfter        time.Duration

	// TranslationQueueBatchSize is the number of pending dynamic-content
	// translation requests ProcessTranslationQueue claims per pass.
	TranslationQueueBatchSize int
}

// DefaultConfig matches the thresholds named for the queue/digest/automation
// processors: MAX_ATTEMPTS=3, PROCESSING_TIMEOUT_MINUTES=10, DLQ
// warning=10/critical=50/stale=24h.
func DefaultConfig() Config {
	return Config{
		WorkerPrefix:          "notihub-worker",
		QueueBatchSize:        50,
		MaxAttempts:           3,
		StuckItemTimeout:      10 * time.Minute,
		DigestBatchSize:       100,
		DigestInterval:        time.Minute,
		AutomationBatchSize:   200,
		AutomationConcurrency: 10,
		AutomationLockTTL:     time.Minute,
		DLQWarningThreshold:   10,
		DLQCriticalThreshold:  50,
		DLQStaleAfter:         24 * time.Hour,
		TranslationQueueBatchSize: 50,
	}
}
