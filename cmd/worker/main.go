package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mvolkov/firmscope/internal/bootstrap"
	"github.com/mvolkov/firmscope/internal/config"
	"github.com/mvolkov/firmscope/internal/infrastructure/queue/nats"
	"github.com/mvolkov/firmscope/internal/observability/logging"
)

const sourceIngestTimeout = 15 * time.Minute

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: app.WorkerMetrics.Handler(),
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if cfg.IngestOnStart {
		go func() {
			if _, err := app.BatchUC.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("initial_ingest_run_failed", "error", err)
			}
		}()
	}

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeSourceRefresh(ctx, func(handlerCtx context.Context, sourceID string) error {
		if sourceID == "" || sourceID == nats.RefreshAll {
			_, runErr := app.BatchUC.Run(handlerCtx)
			return runErr
		}

		ingestCtx, cancel := context.WithTimeout(handlerCtx, sourceIngestTimeout)
		defer cancel()
		_, ingestErr := app.IngestUC.IngestSource(ingestCtx, sourceID)
		return ingestErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
