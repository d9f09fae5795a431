// Command worker drains the durable queue continuously and runs the
// digest, automation, dead-letter-queue, and translation-queue jobs on
// their own schedules.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/notihub/notihub/internal/config"
	"github.com/notihub/notihub/internal/domain"
	sentrypkg "github.com/notihub/notihub/internal/sentry"
	"github.com/notihub/notihub/internal/wiring"
	"github.com/notihub/notihub/internal/worker"
)

// digestFrequencies lists every frequency a single digest cron tick sweeps;
// worker.ProcessDigest filters to whichever entries are actually due, so
// checking all three on the same schedule is cheap and never over-sends.
var digestFrequencies = []domain.Frequency{
	domain.FrequencyHourly,
	domain.FrequencyDaily,
	domain.FrequencyWeekly,
}

const taskTypeAutomationDrain = "automation:drain"

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if err := sentrypkg.Init(cfg, "notihub-worker@1.0.0"); err != nil {
		logger.Printf("WARNING: Sentry initialization failed: %v", err)
	}
	defer sentrypkg.Flush(2 * time.Second)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bundle, err := wiring.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to build dependencies: %v", err)
	}
	defer bundle.Close()

	workerCfg := worker.DefaultConfig()
	workerCfg.QueueBatchSize = cfg.Worker.QueueBatchSize
	workerCfg.MaxAttempts = cfg.Worker.MaxAttempts
	workerCfg.StuckItemTimeout = cfg.Worker.StuckItemTimeout
	workerCfg.DigestBatchSize = cfg.Worker.DigestBatchSize
	workerCfg.AutomationBatchSize = cfg.Worker.AutomationBatchSize
	workerCfg.AutomationConcurrency = cfg.Worker.AutomationConcurrency
	workerCfg.AutomationLockTTL = cfg.Worker.AutomationLockTTL
	workerCfg.DLQWarningThreshold = cfg.Worker.DLQWarningThreshold
	workerCfg.DLQCriticalThreshold = cfg.Worker.DLQCriticalThreshold
	workerCfg.DLQStaleAfter = cfg.Worker.DLQStaleAfter
	workerCfg.TranslationQueueBatchSize = cfg.Worker.TranslationQueueBatchSize
	w := worker.New(bundle.Engine, bundle.Repo, bundle.DigestQueue, workerCfg).
		WithTranslation(bundle.Repo, bundle.Translator)

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to parse REDIS_URL for asynq: %v", err)
	}

	asynqClient := asynq.NewClient(redisOpt)
	defer func() { _ = asynqClient.Close() }()

	asynqServer := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: workerCfg.AutomationConcurrency,
		Queues:      map[string]int{"automation": 1},
		Logger:      asynqLogAdapter{logger},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(taskTypeAutomationDrain, func(ctx context.Context, _ *asynq.Task) error {
		dispatched, failed, err := w.ProcessAutomationQueue(ctx, bundle.AutomationQueue, bundle.Repo, workerCfg.AutomationBatchSize, workerCfg.AutomationConcurrency)
		if err != nil {
			return err
		}
		logger.Printf("automation drain: dispatched=%d failed=%d", dispatched, failed)
		return nil
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: asynqLogAdapter{logger}})
	if _, err := scheduler.Register(cfg.Worker.AutomationDrainSchedule, asynq.NewTask(taskTypeAutomationDrain, nil)); err != nil {
		log.Fatalf("failed to register automation drain schedule: %v", err)
	}

	digestAndDLQCron := cron.New()
	if _, err := digestAndDLQCron.AddFunc(cfg.Worker.DigestProcessSchedule, func() {
		runDigestSweep(ctx, w, workerCfg.DigestBatchSize, logger)
	}); err != nil {
		log.Fatalf("failed to register digest schedule: %v", err)
	}
	if _, err := digestAndDLQCron.AddFunc(cfg.Worker.DLQHealthSchedule, func() {
		health := w.CheckDLQHealth(ctx, bundle.AutomationQueue)
		if metrics := bundle.Monitoring.GetMetrics(); metrics != nil {
			metrics.RecordQueueDepth("automation", health.PendingCount)
			metrics.RecordDLQDepth(health.DLQCount)
		}
		if health.Severity != worker.DLQHealthy {
			logger.Printf("dlq health degraded: severity=%s pending=%d dlq=%d oldest_age=%s",
				health.Severity, health.PendingCount, health.DLQCount, health.OldestDLQAge)
		}
	}); err != nil {
		log.Fatalf("failed to register dlq health schedule: %v", err)
	}
	if _, err := digestAndDLQCron.AddFunc(cfg.Worker.TranslationQueueProcessSchedule, func() {
		completed, failed, err := w.ProcessTranslationQueue(ctx, workerCfg.TranslationQueueBatchSize)
		if err != nil {
			logger.Printf("translation queue drain error: %v", err)
			return
		}
		if completed > 0 || failed > 0 {
			logger.Printf("translation queue drain: completed=%d failed=%d", completed, failed)
		}
	}); err != nil {
		log.Fatalf("failed to register translation queue schedule: %v", err)
	}

	healthServer := startHealthServer(cfg.HealthPort, w)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Println("starting queue worker")
		return w.Start(groupCtx)
	})

	group.Go(func() error {
		logger.Println("starting digest/dlq cron")
		digestAndDLQCron.Start()
		<-groupCtx.Done()
		<-digestAndDLQCron.Stop().Done()
		return nil
	})

	group.Go(func() error {
		logger.Println("starting automation drain scheduler")
		errCh := make(chan error, 1)
		go func() { errCh <- scheduler.Run() }()
		select {
		case <-groupCtx.Done():
			scheduler.Shutdown()
			return nil
		case err := <-errCh:
			return err
		}
	})

	group.Go(func() error {
		logger.Println("starting automation drain task processor")
		errCh := make(chan error, 1)
		go func() { errCh <- asynqServer.Run(mux) }()
		select {
		case <-groupCtx.Done():
			asynqServer.Shutdown()
			return nil
		case err := <-errCh:
			return err
		}
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("health server shutdown error: %v", err)
		}
		logger.Println("graceful shutdown completed")
		return nil
	})

	if err := group.Wait(); err != nil && groupCtx.Err() == nil {
		logger.Printf("worker error: %v", err)
		os.Exit(1)
	}
}

// runDigestSweep processes every digest frequency's due batch in turn,
// logging failures without letting one frequency's error stop the others.
func runDigestSweep(ctx context.Context, w *worker.Worker, limit int, logger *log.Logger) {
	for _, freq := range digestFrequencies {
		flushed, failed, err := w.ProcessDigest(ctx, freq, limit, false)
		if err != nil {
			logger.Printf("digest sweep (%s) error: %v", freq, err)
			continue
		}
		if flushed > 0 || failed > 0 {
			logger.Printf("digest sweep (%s): flushed=%d failed=%d", freq, flushed, failed)
		}
	}
}

// asynqLogAdapter routes asynq's internal logging through the standard
// logger the rest of the worker uses.
type asynqLogAdapter struct{ logger *log.Logger }

func (a asynqLogAdapter) Debug(args ...interface{}) { a.logger.Print(args...) }
func (a asynqLogAdapter) Info(args ...interface{})  { a.logger.Print(args...) }
func (a asynqLogAdapter) Warn(args ...interface{})  { a.logger.Print(args...) }
func (a asynqLogAdapter) Error(args ...interface{}) { a.logger.Print(args...) }
func (a asynqLogAdapter) Fatal(args ...interface{}) { a.logger.Fatal(args...) }

// startHealthServer starts the worker's own health check HTTP endpoint,
// separate from the API's /health, so orchestrators can probe liveness
// without routing through the HTTP API.
func startHealthServer(port string, w *worker.Worker) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(resp http.ResponseWriter, _ *http.Request) {
		if w.IsRunning() {
			resp.WriteHeader(http.StatusOK)
			_, _ = resp.Write([]byte(`{"status":"healthy"}`))
		} else {
			resp.WriteHeader(http.StatusServiceUnavailable)
			_, _ = resp.Write([]byte(`{"status":"unhealthy"}`))
		}
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("health server listening on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("health server error: %v", err)
		}
	}()

	return server
}
