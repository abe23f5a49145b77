package ports

import (
	"context"
	"io"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
)

// KPIWorkflow is the inbound contract of the KPI benchmarking workflow.
type KPIWorkflow interface {
	Start(ctx context.Context) error
	Snapshot() domain.WorkflowSession

	SetInput(input domain.TargetInput) error
	Advance() error
	Back() error

	StageDocument(ctx context.Context, filename string, docType domain.DocumentType, body io.Reader) (domain.StagedDocument, error)
	RetryDocument(ctx context.Context, localID string) (domain.StagedDocument, error)
	RemoveDocument(localID string) error
	SetPrimary(localID string) error
	WaitUploads(ctx context.Context) error

	Submit(ctx context.Context) (<-chan struct{}, error)
	Export(ctx context.Context) (domain.Artifact, error)
	StartNew() error

	EnterHistory(ctx context.Context) ([]domain.EvaluationSummary, error)
	LeaveHistory() error
	OpenFromHistory(ctx context.Context, id int64) error
}
