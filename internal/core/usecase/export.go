package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
	"github.com/kirillkom/kpi-benchmark/internal/core/ports"
)

const (
	exportPathID       = "id"
	exportPathPayload  = "payload"
	exportPathResubmit = "resubmit"
)

// ExportRequest is the consistent snapshot export works from.
type ExportRequest struct {
	EvaluationID *int64
	CompanyName  string
	Input        domain.TargetInput
	Documents    []domain.StagedDocument
}

type ExportResult struct {
	Artifact domain.Artifact
	// Adopted is set when the resubmit policy obtained a durable id.
	Adopted *domain.SubmissionOutcome
}

// ExportCoordinator renders a completed assessment. With a durable id it
// only reads the persisted record; without one it falls back to a
// submission-equivalent render.
type ExportCoordinator struct {
	renderer  ports.ArtifactRenderer
	submitter *EvaluationSubmitter
	inspector ports.ArtifactInspector
	fallback  domain.ExportFallbackPolicy
	observer  ports.WorkflowObserver
	logger    *slog.Logger
	now       func() time.Time
}

type ExportOption func(*ExportCoordinator)

func WithArtifactInspector(inspector ports.ArtifactInspector) ExportOption {
	return func(c *ExportCoordinator) { c.inspector = inspector }
}

func WithFallbackPolicy(policy domain.ExportFallbackPolicy) ExportOption {
	return func(c *ExportCoordinator) {
		if policy.Valid() {
			c.fallback = policy
		}
	}
}

func WithExportObserver(observer ports.WorkflowObserver) ExportOption {
	return func(c *ExportCoordinator) {
		if observer != nil {
			c.observer = observer
		}
	}
}

func WithExportLogger(logger *slog.Logger) ExportOption {
	return func(c *ExportCoordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithExportClock(now func() time.Time) ExportOption {
	return func(c *ExportCoordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func NewExportCoordinator(renderer ports.ArtifactRenderer, submitter *EvaluationSubmitter, opts ...ExportOption) *ExportCoordinator {
	c := &ExportCoordinator{
		renderer:  renderer,
		submitter: submitter,
		fallback:  domain.FallbackRenderPayload,
		observer:  noopObserver{},
		logger:    discardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ExportCoordinator) Export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	result, path, err := c.export(ctx, req)
	c.observer.ExportFinished(path, err)
	if err != nil {
		return ExportResult{}, err
	}
	return result, nil
}

func (c *ExportCoordinator) export(ctx context.Context, req ExportRequest) (ExportResult, string, error) {
	company := strings.TrimSpace(req.CompanyName)
	if company == "" {
		company = req.Input.CompanyName
	}

	if req.EvaluationID != nil {
		artifact, err := c.renderByID(ctx, *req.EvaluationID, company)
		return ExportResult{Artifact: artifact}, exportPathID, err
	}

	payload, err := c.submitter.Prepare(req.Input, req.Documents)
	if err != nil {
		return ExportResult{}, exportPathPayload, err
	}

	if c.fallback == domain.FallbackResubmit {
		outcome, err := c.submitter.SubmitPrepared(ctx, payload)
		switch {
		case err != nil:
			c.logger.Warn("export_resubmit_failed", "company", payload.CompanyName, "error", err)
		case outcome.Durable():
			artifact, err := c.renderByID(ctx, *outcome.Record.ID, company)
			if err != nil {
				return ExportResult{}, exportPathResubmit, err
			}
			return ExportResult{Artifact: artifact, Adopted: &outcome}, exportPathResubmit, nil
		default:
			c.logger.Info("export_resubmit_not_persisted", "company", payload.CompanyName)
		}
	}

	data, err := c.renderer.RenderArtifactFromPayload(ctx, payload)
	if err != nil {
		return ExportResult{}, exportPathPayload, fmt.Errorf("render artifact from payload: %w", err)
	}
	artifact, err := c.finish(data, company, false)
	return ExportResult{Artifact: artifact}, exportPathPayload, err
}

func (c *ExportCoordinator) renderByID(ctx context.Context, id int64, company string) (domain.Artifact, error) {
	data, err := c.renderer.RenderArtifactFromID(ctx, id)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("render artifact for evaluation %d: %w", id, err)
	}
	return c.finish(data, company, true)
}

func (c *ExportCoordinator) finish(data []byte, company string, fromID bool) (domain.Artifact, error) {
	artifact := domain.Artifact{
		Filename:    ArtifactFilename(company, c.now()),
		ContentType: "application/pdf",
		Data:        data,
		FromID:      fromID,
	}
	if c.inspector != nil {
		pages, err := c.inspector.Inspect(data)
		if err != nil {
			return domain.Artifact{}, fmt.Errorf("verify rendered artifact: %w", err)
		}
		artifact.PageCount = pages
	}
	return artifact, nil
}

// ArtifactFilename names an export after the company and the current date.
func ArtifactFilename(company string, now time.Time) string {
	name := sanitizeFilename(company)
	if name == "" {
		name = "evaluation"
	}
	return fmt.Sprintf("%s_KPI_Assessment_%s.pdf", name, now.Format("2006-01-02"))
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return strings.Trim(name, "_.")
}
