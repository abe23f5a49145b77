package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/kpi-benchmark/internal/adapters/http"
	"github.com/kirillkom/kpi-benchmark/internal/bootstrap"
	"github.com/kirillkom/kpi-benchmark/internal/config"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/kpi-benchmark/internal/observability/logging"
	"github.com/kirillkom/kpi-benchmark/internal/observability/metrics"
)

const serviceName = "kpi-api"

func main() {
	cfg := config.Load()
	logger := logging.NewLogger(serviceName, cfg.LogLevel, cfg.LogFormat)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := localfs.NewStateFile(cfg.StatePath)
	address, err := state.Load()
	if err != nil {
		logger.Error("state_load_failed", "path", cfg.StatePath, "error", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:   logger,
		Address:  address,
		Persist:  state.Save,
		Observer: metrics.NewWorkflowMetrics(serviceName, httpMetrics.Registerer()),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Workflow.Start(ctx); err != nil {
		logger.Warn("session_start_failed", "error", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", httpMetrics.Handler())
	mux.Handle("/", httpadapter.NewRouter(app.Workflow, app.Sink, logger).Handler())

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      httpMetrics.Middleware(serviceName, mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.ScoringTimeoutSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
	waitCtx, cancelWait := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelWait()
	_ = app.Workflow.WaitUploads(waitCtx)
}
