package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/kpi-benchmark/internal/bootstrap"
	"github.com/kirillkom/kpi-benchmark/internal/config"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/kpi-benchmark/internal/observability/logging"
)

const defaultAddress = "kpibench://workflow"

var (
	statePath string
	logLevel  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "kpibench: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.Load()
	cmd := &cobra.Command{
		Use:   "kpibench",
		Short: "KPI benchmarking assessments from the command line",
		Long: `kpibench drives the KPI benchmarking workflow against the scoring service:
enter a decarbonisation target, attach evidence documents, run the assessment
and export the PDF report. The last durable evaluation is remembered between runs.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&statePath, "state", cfg.StatePath, "File that remembers the current evaluation")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.AddCommand(
		newEvaluateCmd(),
		newResumeCmd(),
		newHistoryCmd(),
		newExportCmd(),
		newResetCmd(),
	)
	return cmd
}

// openApp wires a workflow whose durable reference lives in the state file.
func openApp(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg := config.Load()
	logger := logging.NewLogger("kpibench", logLevel, "text")

	state := localfs.NewStateFile(statePath)
	address, err := state.Load()
	if err != nil {
		return nil, err
	}
	if address == "" {
		address = defaultAddress
	}

	app, err := bootstrap.New(cmd.Context(), cfg, bootstrap.Options{
		Logger:  logger,
		Address: address,
		Persist: state.Save,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}
