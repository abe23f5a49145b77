package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/kpi-benchmark/internal/bootstrap"
	"github.com/kirillkom/kpi-benchmark/internal/config"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/queue/nats"
	"github.com/kirillkom/kpi-benchmark/internal/observability/logging"
	"github.com/kirillkom/kpi-benchmark/internal/observability/metrics"
)

const serviceName = "kpi-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewLogger(serviceName, cfg.LogLevel, cfg.LogFormat)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWorker(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Bus.Subscribe(ctx, func(handlerCtx context.Context, event nats.EvaluationEvent) error {
		recordCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()

		if !event.CreatedAt.IsZero() {
			workerMetrics.ObserveEventLag(serviceName, time.Since(event.CreatedAt))
		}
		workerMetrics.StartRecord()
		started := time.Now()
		err := app.Ledger.Record(recordCtx, event.Summary())
		workerMetrics.FinishRecord(serviceName, time.Since(started), err)
		if err == nil {
			logger.Info("evaluation_recorded", "evaluation_id", event.EvaluationID, "company", event.CompanyName)
		}
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
