package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/kpi-benchmark/internal/bootstrap"
	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/storage/localfs"
)

type evaluateFlags struct {
	company      string
	industry     string
	country      string
	nace         string
	loanType     string
	scope        string
	baseline     float64
	target       float64
	baselineYear int
	endYear      int
	documents    []string
	export       bool
	outDir       string
	asJSON       bool
}

func newEvaluateCmd() *cobra.Command {
	var f evaluateFlags
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run a new assessment",
		Example: `  kpibench evaluate --company "Nordic Steel AB" --industry Manufacturing --country SE \
    --nace C24.1 --baseline 100000 --target 54000 --end-year 2030 \
    --doc sustainability_report=report.pdf --doc targets_document=sbti.pdf --export`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := parseDocumentFlags(f.documents)
			if err != nil {
				return err
			}
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			return runEvaluate(cmd, app, f, docs)
		},
	}
	cmd.Flags().StringVar(&f.company, "company", "", "Company name")
	cmd.Flags().StringVar(&f.industry, "industry", "", "Industry sector")
	cmd.Flags().StringVar(&f.country, "country", "", "Two-letter country code")
	cmd.Flags().StringVar(&f.nace, "nace", "", "NACE code")
	cmd.Flags().StringVar(&f.loanType, "loan-type", "", "Loan type")
	cmd.Flags().StringVar(&f.scope, "scope", string(domain.ScopeOneTwo), "Emissions scope")
	cmd.Flags().Float64Var(&f.baseline, "baseline", 0, "Baseline emissions value")
	cmd.Flags().Float64Var(&f.target, "target", 0, "Target emissions value")
	cmd.Flags().IntVar(&f.baselineYear, "baseline-year", 0, "Baseline year")
	cmd.Flags().IntVar(&f.endYear, "end-year", 0, "Target timeline end year")
	cmd.Flags().StringArrayVar(&f.documents, "doc", nil, "Evidence document as type=path; the first is primary")
	cmd.Flags().BoolVar(&f.export, "export", false, "Export the PDF report after the assessment")
	cmd.Flags().StringVar(&f.outDir, "out", "", "Directory for the exported report (defaults to the configured sink)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the full result as JSON")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("baseline")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func runEvaluate(cmd *cobra.Command, app *bootstrap.App, f evaluateFlags, docs []documentFlag) error {
	ctx := cmd.Context()
	wf := app.Workflow
	out := cmd.OutOrStdout()

	if err := wf.StartNew(); err != nil {
		return err
	}
	input := domain.TargetInput{
		CompanyName:     f.company,
		IndustrySector:  f.industry,
		CountryCode:     f.country,
		NACECode:        f.nace,
		LoanType:        f.loanType,
		BaselineValue:   domain.Float(f.baseline),
		TargetValue:     domain.Float(f.target),
		BaselineYear:    f.baselineYear,
		TimelineEndYear: f.endYear,
		EmissionsScope:  domain.EmissionsScope(f.scope),
	}
	if err := wf.SetInput(input); err != nil {
		return err
	}
	if s := wf.Snapshot(); s.ReductionPercent != nil {
		fmt.Fprintf(out, "Target reduction: %.1f%%\n", *s.ReductionPercent)
	}
	if err := wf.Advance(); err != nil {
		return errors.New(domain.UserMessage(err))
	}

	for _, doc := range docs {
		if err := stageFile(ctx, app, doc); err != nil {
			return err
		}
	}
	if err := wf.WaitUploads(ctx); err != nil {
		return err
	}
	for _, d := range wf.Snapshot().Documents {
		printDocument(out, d)
	}

	done, err := wf.Submit(ctx)
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}
	fmt.Fprintln(out, "Analyzing...")
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	session := wf.Snapshot()
	if session.Step != domain.StepResult {
		return errors.New(session.Error)
	}
	if err := printResult(out, session, f.asJSON); err != nil {
		return err
	}
	if f.export {
		return exportArtifact(cmd, app, f.outDir)
	}
	return nil
}

func stageFile(ctx context.Context, app *bootstrap.App, doc documentFlag) error {
	file, err := os.Open(doc.path)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer file.Close()
	if _, err := app.Workflow.StageDocument(ctx, filepath.Base(doc.path), doc.docType, file); err != nil {
		return errors.New(domain.UserMessage(err))
	}
	return nil
}

func newResumeCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Show the remembered evaluation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Workflow.Start(cmd.Context()); err != nil {
				return err
			}
			session := app.Workflow.Snapshot()
			if session.Error != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), session.Error)
			}
			if session.Step != domain.StepResult {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved evaluation.")
				return nil
			}
			return printResult(cmd.OutOrStdout(), session, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var xlsxPath string
	var openID int64
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past assessments, export them to a workbook or open one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			wf := app.Workflow

			items, err := wf.EnterHistory(cmd.Context())
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}

			if openID > 0 {
				if err := wf.OpenFromHistory(cmd.Context(), openID); err != nil {
					return errors.New(domain.UserMessage(err))
				}
				return printResult(cmd.OutOrStdout(), wf.Snapshot(), false)
			}

			if xlsxPath != "" {
				if err := writeWorkbook(xlsxPath, items); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d evaluations to %s\n", len(items), xlsxPath)
				return wf.LeaveHistory()
			}

			printHistory(cmd.OutOrStdout(), items)
			return wf.LeaveHistory()
		},
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write the history to an .xlsx workbook")
	cmd.Flags().Int64Var(&openID, "open", 0, "Open a past evaluation and remember it")
	return cmd
}

func writeWorkbook(path string, items []domain.EvaluationSummary) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	if err := xlsx.WriteHistory(file, items); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func newExportCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the remembered evaluation as a PDF report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Workflow.Start(cmd.Context()); err != nil {
				return err
			}
			if session := app.Workflow.Snapshot(); session.Step != domain.StepResult {
				if session.Error != "" {
					return errors.New(session.Error)
				}
				return errors.New("no saved evaluation to export; run evaluate or history --open first")
			}
			return exportArtifact(cmd, app, outDir)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Directory for the exported report (defaults to the configured sink)")
	return cmd
}

func exportArtifact(cmd *cobra.Command, app *bootstrap.App, outDir string) error {
	artifact, err := app.Workflow.Export(cmd.Context())
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}

	sink := app.Sink
	if strings.TrimSpace(outDir) != "" {
		local, err := localfs.New(outDir)
		if err != nil {
			return err
		}
		sink = local
	}
	if sink == nil {
		return errors.New("no artifact destination configured; pass --out")
	}
	location, err := sink.Save(cmd.Context(), artifact)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	source := "rendered from the stored evaluation"
	if !artifact.FromID {
		source = "rendered from the current inputs"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s (%s)\n", location, source)
	return nil
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the remembered evaluation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.Workflow.StartNew(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleared.")
			return nil
		},
	}
}
