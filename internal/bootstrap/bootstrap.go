package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/kpi-benchmark/internal/config"
	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
	"github.com/kirillkom/kpi-benchmark/internal/core/ports"
	"github.com/kirillkom/kpi-benchmark/internal/core/usecase"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/artifact/pdfcheck"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/queue/nats"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/reference"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/resilience"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/scoring"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/storage/s3"
)

// Options carries what differs between hosts of the workflow.
type Options struct {
	Logger *slog.Logger
	// Address is the host's current address; its evaluation_id parameter is
	// the durable reference.
	Address string
	Persist reference.PersistFunc
	// Observer receives workflow outcomes, typically metrics.
	Observer ports.WorkflowObserver
}

type App struct {
	Config config.Config
	Policy domain.Policy
	Logger *slog.Logger

	Workflow  *usecase.Workflow
	Store     *usecase.EvaluationStore
	Scoring   *scoring.Client
	Reference *reference.QueryReference
	Sink      ports.ArtifactSink

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	executor := resilience.NewExecutor(ResilienceConfig(cfg), logger)
	client := scoring.New(scoring.Config{
		BaseURL:   cfg.ScoringAPIURL,
		Token:     cfg.ScoringAPIToken,
		Timeout:   time.Duration(cfg.ScoringTimeoutSeconds) * time.Second,
		RateLimit: cfg.ScoringRateLimit,
		RateBurst: cfg.ScoringRateBurst,
	}, executor, logger)

	ref, err := reference.NewQueryReference(opts.Address, opts.Persist)
	if err != nil {
		return nil, fmt.Errorf("init session reference: %w", err)
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	ledger, closeLedger, err := openLedger(ctx, cfg, executor, logger)
	if err != nil {
		return nil, err
	}
	if closeLedger != nil {
		closers = append(closers, closeLedger)
	}

	sink, err := openSink(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, err
	}

	validator := usecase.NewTargetValidator(policy, time.Now)
	stage := usecase.NewDocumentStageManager(client,
		usecase.WithStatusChecker(client),
		usecase.WithStageObserver(opts.Observer),
		usecase.WithStageLogger(logger),
		usecase.WithPolling(time.Duration(policy.DocumentPollIntervalMS)*time.Millisecond, policy.DocumentPollMaxAttempts),
	)
	submitter := usecase.NewEvaluationSubmitter(validator, client, logger)
	store := usecase.NewEvaluationStore(client, ref, ledger, logger)

	exportOpts := []usecase.ExportOption{
		usecase.WithFallbackPolicy(policy.ExportFallback),
		usecase.WithExportObserver(opts.Observer),
		usecase.WithExportLogger(logger),
	}
	if policy.VerifyArtifacts {
		exportOpts = append(exportOpts, usecase.WithArtifactInspector(pdfcheck.New()))
	}
	exporter := usecase.NewExportCoordinator(client, submitter, exportOpts...)

	workflow := usecase.NewWorkflow(usecase.WorkflowDeps{
		Validator:    validator,
		Stage:        stage,
		Submitter:    submitter,
		Store:        store,
		Exporter:     exporter,
		Observer:     opts.Observer,
		Logger:       logger,
		HistoryLimit: policy.HistoryLimit,
	})

	return &App{
		Config: cfg,
		Policy: policy,
		Logger: logger,

		Workflow:  workflow,
		Store:     store,
		Scoring:   client,
		Reference: ref,
		Sink:      sink,

		closeFn: closeAll,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func ResilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:     time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,
		RetryMultiplier:     2,

		BreakerEnabled:      cfg.BreakerEnabled,
		BreakerMinRequests:  uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio: cfg.BreakerFailureRatio,
		BreakerOpenTimeout:  time.Duration(cfg.BreakerOpenTimeoutMS) * time.Millisecond,
	}
}

// openLedger returns a nil ledger when recording is disabled.
func openLedger(ctx context.Context, cfg config.Config, executor *resilience.Executor, logger *slog.Logger) (ports.EvaluationLedger, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LedgerMode)) {
	case "", "none":
		return nil, nil, nil
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		ledger := postgres.NewEvaluationLedger(db)
		if err := ledger.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return ledger, func() { _ = db.Close() }, nil
	case "nats":
		bus, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init event bus: %w", err)
		}
		return bus, bus.Close, nil
	default:
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "ledger mode", fmt.Errorf("unknown ledger mode %q", cfg.LedgerMode))
	}
}

func openSink(ctx context.Context, cfg config.Config) (ports.ArtifactSink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.ArtifactSink)) {
	case "none":
		return nil, nil
	case "s3":
		store, err := s3.New(s3.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("init artifact storage: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("init artifact storage: %w", err)
		}
		return store, nil
	default:
		store, err := localfs.New(cfg.ArtifactDir)
		if err != nil {
			return nil, fmt.Errorf("init artifact storage: %w", err)
		}
		return store, nil
	}
}
