package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
)

// DocumentUploader sends an evidence file to the scoring service.
type DocumentUploader interface {
	UploadDocument(ctx context.Context, filename string, docType domain.DocumentType, body io.Reader) (domain.UploadedDocument, error)
}

// DocumentStatusChecker reports server-side extraction progress of an uploaded document.
type DocumentStatusChecker interface {
	DocumentStatus(ctx context.Context, documentID int64) (domain.UploadedDocument, error)
}

// EvaluationService runs the scored assessment.
type EvaluationService interface {
	SubmitEvaluation(ctx context.Context, payload domain.EvaluationSubmission) (domain.SubmitResponse, error)
}

// EvaluationReader reads persisted assessments.
type EvaluationReader interface {
	FetchEvaluationByID(ctx context.Context, id int64) (domain.EvaluationRecord, error)
	FetchEvaluationHistory(ctx context.Context, limit int) ([]domain.EvaluationSummary, error)
}

// ArtifactRenderer renders an assessment into a downloadable artifact.
type ArtifactRenderer interface {
	RenderArtifactFromID(ctx context.Context, id int64) ([]byte, error)
	RenderArtifactFromPayload(ctx context.Context, payload domain.EvaluationSubmission) ([]byte, error)
}

// SessionReference is the externally visible durable handle of a session.
// Get reports ok=false when nothing is set and an error when something is set
// that is not a valid id. Clear must be a no-op when nothing is set.
type SessionReference interface {
	Get() (id int64, ok bool, err error)
	Set(id int64) error
	Clear() error
}

// EvaluationLedger remembers recorded evaluation ids.
type EvaluationLedger interface {
	Record(ctx context.Context, summary domain.EvaluationSummary) error
}

// EvaluationLedgerReader is implemented by ledgers that can list what they
// recorded, newest first.
type EvaluationLedgerReader interface {
	List(ctx context.Context, limit int) ([]domain.EvaluationSummary, error)
}

// ArtifactInspector checks a rendered artifact and returns its page count.
type ArtifactInspector interface {
	Inspect(data []byte) (int, error)
}

// ArtifactSink saves exported artifacts and returns where they went.
type ArtifactSink interface {
	Save(ctx context.Context, artifact domain.Artifact) (string, error)
}

// WorkflowObserver receives workflow outcomes for metrics.
type WorkflowObserver interface {
	UploadFinished(status domain.StagedStatus)
	SubmissionFinished(outcome string, duration time.Duration)
	SubmissionSuperseded()
	ExportFinished(path string, err error)
	Reconstructed(outcome string)
}
