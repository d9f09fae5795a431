// Command api serves the notification platform's HTTP surface: send,
// preferences, digest/queue/webhook operations, and translation.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/notihub/notihub/internal/config"
	"github.com/notihub/notihub/internal/httpapi"
	"github.com/notihub/notihub/internal/monitoring"
	sentrypkg "github.com/notihub/notihub/internal/sentry"
	"github.com/notihub/notihub/internal/wiring"
	"github.com/notihub/notihub/internal/worker"
)

// buildTime/commitHash are overridden at build time via -ldflags; bare
// defaults keep `go build` usable without them.
var (
	buildTime  = "unknown"
	commitHash = "unknown"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if err := sentrypkg.Init(cfg, "notihub-api@1.0.0"); err != nil {
		logger.Printf("WARNING: Sentry initialization failed: %v", err)
	} else if cfg.EnableSentry {
		logger.Printf("Sentry initialized for environment: %s", cfg.SentryEnvironment)
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

	health := monitoring.NewHealthChecker("notihub-api", "1.0.0", buildTime, commitHash)
	health.RegisterDatabaseCheck("database", bundle.DB)
	health.RegisterRedisCheck("redis", bundle.Redis)

	verifier := &httpapi.SignatureVerifier{
		SendGridPublicKey: cfg.SendGrid.WebhookPublicKey,
		SESSharedSecret:   cfg.SES.WebhookSharedSecret,
	}

	server := httpapi.New(httpapi.Config{
		Engine:           bundle.Engine,
		Repo:             bundle.Repo,
		Digest:           w,
		Queue:            w,
		TranslationQueue:  w,
		Translator:        bundle.Translator,
		TranslationHealth: bundle.Translator,
		Webhooks:         verifier,
		Health:           health,
		Monitoring:       bundle.Monitoring,
		Stats:            bundle.Repo,
		Breakers:         bundle.Breakers,
		Quota:            bundle.Quota,
		JWTSecret:        cfg.JWTSecret,
		CronSecret:       cfg.CronSecret,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if groupCtx.Err() != nil {
				return nil
			}
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
		logger.Println("graceful shutdown completed")
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Printf("server error: %v", err)
		os.Exit(1)
	}
}
