package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/kpi-benchmark/internal/config"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/queue/nats"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/resilience"
)

// WorkerApp consumes evaluation events into the Postgres ledger.
type WorkerApp struct {
	Config config.Config
	Bus    *nats.EventBus
	Ledger *postgres.EvaluationLedger

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*WorkerApp, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ledger := postgres.NewEvaluationLedger(db)
	if err := ledger.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	bus, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(ResilienceConfig(cfg), logger),
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	return &WorkerApp{
		Config: cfg,
		Bus:    bus,
		Ledger: ledger,
		closeFn: func() {
			bus.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *WorkerApp) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
