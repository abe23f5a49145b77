package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
	"github.com/kirillkom/kpi-benchmark/internal/core/ports"
)

// Workflow sequences the KPI benchmarking steps Input -> Documents -> Result,
// with History as a separate mode. It owns the session and the staged set;
// every async completion is applied under mu and checked against the
// submission generation it was started with.
type Workflow struct {
	validator *TargetValidator
	stage     *DocumentStageManager
	submitter *EvaluationSubmitter
	store     *EvaluationStore
	exporter  *ExportCoordinator
	observer  ports.WorkflowObserver
	logger    *slog.Logger

	historyLimit int

	mu         sync.Mutex
	session    domain.WorkflowSession
	generation uint64
	analyzing  uint64
}

type WorkflowDeps struct {
	Validator *TargetValidator
	Stage     *DocumentStageManager
	Submitter *EvaluationSubmitter
	Store     *EvaluationStore
	Exporter  *ExportCoordinator
	Observer  ports.WorkflowObserver
	Logger    *slog.Logger

	HistoryLimit int
}

func NewWorkflow(deps WorkflowDeps) *Workflow {
	observer := deps.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = discardLogger()
	}
	limit := deps.HistoryLimit
	if limit <= 0 {
		limit = domain.DefaultPolicy().HistoryLimit
	}
	return &Workflow{
		validator:    deps.Validator,
		stage:        deps.Stage,
		submitter:    deps.Submitter,
		store:        deps.Store,
		exporter:     deps.Exporter,
		observer:     observer,
		logger:       logger,
		historyLimit: limit,
		session:      freshSession(),
	}
}

func freshSession() domain.WorkflowSession {
	return domain.WorkflowSession{
		Step: domain.StepInput,
		Mode: domain.ModeActive,
	}
}

// Start reconstructs the session from the durable reference when one exists.
// A failed reconstruction, or a reference that is not a valid id, lands on a
// blank input step and clears the reference so the next start does not
// repeat it.
func (w *Workflow) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.session.Loading {
		w.mu.Unlock()
		return domain.ErrBusy
	}
	id, ok, err := w.store.Reference()
	if err != nil {
		defer w.mu.Unlock()
		w.logger.Warn("reconstruct_failed", "error", err)
		w.failRestoreLocked("Could not restore the saved evaluation: the link is not valid.")
		return nil
	}
	if !ok {
		w.mu.Unlock()
		return nil
	}
	w.session.Loading = true
	w.mu.Unlock()

	record, err := w.store.Lookup(ctx, id)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.session.Loading = false

	if err != nil {
		w.logger.Warn("reconstruct_failed", "evaluation_id", id, "error", err)
		w.failRestoreLocked(fmt.Sprintf("Could not restore evaluation %d: %s", id, domain.UserMessage(err)))
		return nil
	}

	w.resetLocked()
	w.enterResult(record, "")
	w.observer.Reconstructed("restored")
	w.logger.Info("session_restored", "evaluation_id", id)
	return nil
}

// resetLocked drops the session and staged set and supersedes any submission
// still in flight.
func (w *Workflow) resetLocked() {
	w.generation++
	w.analyzing = 0
	w.stage.Clear()
	w.session = freshSession()
}

func (w *Workflow) failRestoreLocked(message string) {
	w.resetLocked()
	w.session.Error = message
	if err := w.store.Forget(); err != nil {
		w.logger.Warn("reference_clear_failed", "error", err)
	}
	w.observer.Reconstructed("failed")
}

// Snapshot returns a copy of the session including staged documents.
func (w *Workflow) Snapshot() domain.WorkflowSession {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := w.session
	out.EvaluationID = cloneInt64(w.session.EvaluationID)
	out.Analyzing = w.analyzing != 0
	out.Documents = w.stage.Documents()
	if pct, ok := ReductionPercent(out.Input.BaselineValue, out.Input.TargetValue); ok {
		out.ReductionPercent = &pct
	}
	if w.session.Record != nil {
		record := *w.session.Record
		record.ID = cloneInt64(record.ID)
		out.Record = &record
	}
	if w.session.History != nil {
		out.History = append([]domain.EvaluationSummary(nil), w.session.History...)
	}
	return out
}

// SetInput replaces the live target input.
func (w *Workflow) SetInput(input domain.TargetInput) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.interactiveLocked(); err != nil {
		return err
	}
	w.session.Input = input
	w.session.Error = ""
	return nil
}

// Advance moves Input -> Documents when the gating predicate holds.
func (w *Workflow) Advance() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.interactiveLocked(); err != nil {
		return err
	}
	if w.session.Step != domain.StepInput {
		return domain.WrapError(domain.ErrInvalidTransition, "advance", fmt.Errorf("cannot advance from %s", w.session.Step))
	}
	if err := w.validator.Validate(w.session.Input); err != nil {
		w.session.Error = domain.UserMessage(err)
		return err
	}
	w.session.Step = domain.StepDocuments
	w.session.Error = ""
	return nil
}

// Back returns from Documents to Input keeping the staged documents.
func (w *Workflow) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.interactiveLocked(); err != nil {
		return err
	}
	if w.session.Step != domain.StepDocuments {
		return domain.WrapError(domain.ErrInvalidTransition, "back", fmt.Errorf("cannot go back from %s", w.session.Step))
	}
	w.session.Step = domain.StepInput
	w.session.Error = ""
	return nil
}

// StageDocument reads the body first and then checks the step and stages the
// document in one critical section, so a concurrent StartNew cannot leave it
// in a fresh session.
func (w *Workflow) StageDocument(ctx context.Context, filename string, docType domain.DocumentType, body io.Reader) (domain.StagedDocument, error) {
	var raw []byte
	if body != nil {
		var err error
		if raw, err = io.ReadAll(body); err != nil {
			return domain.StagedDocument{}, fmt.Errorf("read document body: %w", err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.stagingLocked("stage document"); err != nil {
		return domain.StagedDocument{}, err
	}
	if body == nil {
		return w.stage.Stage(ctx, filename, docType, nil)
	}
	return w.stage.Stage(ctx, filename, docType, bytes.NewReader(raw))
}

func (w *Workflow) RetryDocument(ctx context.Context, localID string) (domain.StagedDocument, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.stagingLocked("retry document"); err != nil {
		return domain.StagedDocument{}, err
	}
	return w.stage.Retry(ctx, localID)
}

func (w *Workflow) RemoveDocument(localID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.interactiveLocked(); err != nil {
		return err
	}
	return w.stage.Remove(localID)
}

func (w *Workflow) SetPrimary(localID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.interactiveLocked(); err != nil {
		return err
	}
	return w.stage.SetPrimary(localID)
}

func (w *Workflow) WaitUploads(ctx context.Context) error {
	return w.stage.Wait(ctx)
}

func (w *Workflow) stagingLocked(operation string) error {
	if err := w.interactiveLocked(); err != nil {
		return err
	}
	if w.session.Step == domain.StepResult {
		return domain.WrapError(domain.ErrInvalidTransition, operation, fmt.Errorf("documents cannot change in %s step", w.session.Step))
	}
	return nil
}

// Submit validates synchronously and then runs the evaluation in the
// background. The returned channel closes once that submission has been
// applied or discarded. A newer submission supersedes an older one still in
// flight.
func (w *Workflow) Submit(ctx context.Context) (<-chan struct{}, error) {
	w.mu.Lock()
	if err := w.interactiveLocked(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.session.Step != domain.StepDocuments {
		step := w.session.Step
		w.mu.Unlock()
		return nil, domain.WrapError(domain.ErrInvalidTransition, "submit", fmt.Errorf("cannot submit from %s step", step))
	}
	input := w.session.Input
	payload, err := w.submitter.Prepare(input, w.stage.Documents())
	if err != nil {
		w.session.Error = domain.UserMessage(err)
		w.mu.Unlock()
		return nil, err
	}
	w.generation++
	token := w.generation
	w.analyzing = token
	w.session.Error = ""
	w.mu.Unlock()

	w.logger.Info("submission_started", "token", token, "company", payload.CompanyName, "documents", len(payload.Documents))

	done := make(chan struct{})
	go func() {
		defer close(done)
		started := time.Now()
		outcome, err := w.submitter.SubmitPrepared(context.WithoutCancel(ctx), payload)
		w.applySubmission(context.WithoutCancel(ctx), token, outcome, err, time.Since(started))
	}()
	return done, nil
}

func (w *Workflow) applySubmission(ctx context.Context, token uint64, outcome domain.SubmissionOutcome, err error, elapsed time.Duration) {
	w.mu.Lock()
	if token != w.generation {
		w.mu.Unlock()
		w.observer.SubmissionSuperseded()
		w.logger.Info("submission_superseded", "token", token)
		return
	}
	w.analyzing = 0

	if err != nil {
		w.session.Error = domain.UserMessage(err)
		w.mu.Unlock()
		w.observer.SubmissionFinished("error", elapsed)
		w.logger.Warn("submission_failed", "token", token, "error", err)
		return
	}

	w.enterResult(outcome.Record, outcome.PersistenceWarning)
	w.mu.Unlock()

	status := "success"
	if !outcome.Durable() {
		status = "persistence_warning"
	}
	w.observer.SubmissionFinished(status, elapsed)
	w.store.Record(ctx, outcome.Record)
}

// enterResult must be called with mu held. Staged documents are discarded for
// durable records; without a durable id they stay for the export fallback.
func (w *Workflow) enterResult(record domain.EvaluationRecord, warning string) {
	stored := record
	stored.ID = cloneInt64(record.ID)
	w.session.Step = domain.StepResult
	w.session.Record = &stored
	w.session.EvaluationID = cloneInt64(record.ID)
	w.session.PersistenceWarning = warning
	w.session.Error = ""
	if record.ID != nil && *record.ID > 0 {
		w.stage.Clear()
	}
	if err := w.store.Point(record.ID); err != nil {
		w.logger.Warn("reference_update_failed", "error", err)
	}
}

// Export renders the current assessment. The evaluation id is read once at
// call time.
func (w *Workflow) Export(ctx context.Context) (domain.Artifact, error) {
	w.mu.Lock()
	if w.session.Loading {
		w.mu.Unlock()
		return domain.Artifact{}, domain.ErrBusy
	}
	if w.session.Record == nil {
		w.mu.Unlock()
		return domain.Artifact{}, domain.WrapError(domain.ErrInvalidTransition, "export", fmt.Errorf("no completed assessment"))
	}
	req := ExportRequest{
		EvaluationID: cloneInt64(w.session.EvaluationID),
		CompanyName:  w.session.Record.Metadata.CompanyName,
		Input:        w.session.Input,
		Documents:    w.stage.Documents(),
	}
	generation := w.generation
	w.mu.Unlock()

	result, err := w.exporter.Export(ctx, req)

	w.mu.Lock()
	if generation != w.generation {
		// A newer action replaced the session; the artifact is still valid for
		// the caller but must not touch the session.
		w.mu.Unlock()
		if err != nil {
			return domain.Artifact{}, err
		}
		return result.Artifact, nil
	}
	if err != nil {
		w.session.Error = domain.UserMessage(err)
		w.mu.Unlock()
		return domain.Artifact{}, err
	}
	w.session.Error = ""
	adopted := result.Adopted != nil && w.session.EvaluationID == nil
	if adopted {
		w.enterResult(result.Adopted.Record, "")
	}
	w.mu.Unlock()

	if adopted {
		w.store.Record(context.WithoutCancel(ctx), result.Adopted.Record)
	}
	return result.Artifact, nil
}

// StartNew discards the current assessment and returns to a blank input step.
func (w *Workflow) StartNew() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session.Loading {
		return domain.ErrBusy
	}
	w.resetLocked()
	if err := w.store.Forget(); err != nil {
		w.logger.Warn("reference_clear_failed", "error", err)
	}
	return nil
}

// EnterHistory suspends the active session and lists past assessments. An
// in-flight submission keeps running.
func (w *Workflow) EnterHistory(ctx context.Context) ([]domain.EvaluationSummary, error) {
	w.mu.Lock()
	if w.session.Loading {
		w.mu.Unlock()
		return nil, domain.ErrBusy
	}
	w.session.Mode = domain.ModeHistory
	w.session.Error = ""
	w.mu.Unlock()

	items, err := w.store.History(ctx, w.historyLimit)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.session.Error = domain.UserMessage(err)
		return nil, err
	}
	w.session.History = items
	return append([]domain.EvaluationSummary(nil), items...), nil
}

func (w *Workflow) LeaveHistory() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session.Loading {
		return domain.ErrBusy
	}
	w.session.Mode = domain.ModeActive
	w.session.Error = ""
	return nil
}

// OpenFromHistory loads a past record straight into the result step. It
// supersedes any submission still in flight.
func (w *Workflow) OpenFromHistory(ctx context.Context, id int64) error {
	w.mu.Lock()
	if w.session.Loading {
		w.mu.Unlock()
		return domain.ErrBusy
	}
	w.session.Loading = true
	w.mu.Unlock()

	record, err := w.store.Lookup(ctx, id)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.session.Loading = false
	if err != nil {
		w.session.Error = domain.UserMessage(err)
		return err
	}

	history := w.session.History
	w.resetLocked()
	w.session.History = history
	w.enterResult(record, "")
	return nil
}

func (w *Workflow) interactiveLocked() error {
	if w.session.Loading {
		return domain.ErrBusy
	}
	if w.session.Mode != domain.ModeActive {
		return domain.WrapError(domain.ErrInvalidTransition, "workflow", fmt.Errorf("session is suspended in %s mode", w.session.Mode))
	}
	return nil
}

var _ ports.KPIWorkflow = (*Workflow)(nil)
