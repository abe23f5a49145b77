package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
)

var fixedNow = time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func validInput() domain.TargetInput {
	return domain.TargetInput{
		CompanyName:     "Nordic Steel AB",
		IndustrySector:  "Manufacturing",
		CountryCode:     "se",
		NACECode:        "C24.1",
		LoanType:        "term_loan",
		BaselineValue:   domain.Float(100000),
		TargetValue:     domain.Float(54000),
		BaselineYear:    2022,
		TimelineEndYear: 2030,
		EmissionsScope:  domain.ScopeOneTwo,
	}
}

type uploadResult struct {
	doc domain.UploadedDocument
	err error
}

// uploaderFake resolves uploads by filename. A filename with a gate blocks
// until the gate is closed.
type uploaderFake struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	results map[string]uploadResult
	nextID  int64
	calls   int
}

func newUploaderFake() *uploaderFake {
	return &uploaderFake{
		gates:   map[string]chan struct{}{},
		results: map[string]uploadResult{},
		nextID:  100,
	}
}

func (f *uploaderFake) gate(filename string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[filename] = ch
	return ch
}

func (f *uploaderFake) fail(filename string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[filename] = uploadResult{err: err}
}

func (f *uploaderFake) respond(filename string, doc domain.UploadedDocument) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[filename] = uploadResult{doc: doc}
}

func (f *uploaderFake) UploadDocument(ctx context.Context, filename string, _ domain.DocumentType, body io.Reader) (domain.UploadedDocument, error) {
	if _, err := io.ReadAll(body); err != nil {
		return domain.UploadedDocument{}, err
	}
	f.mu.Lock()
	f.calls++
	gate := f.gates[filename]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.UploadedDocument{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if res, ok := f.results[filename]; ok {
		delete(f.results, filename)
		return res.doc, res.err
	}
	f.nextID++
	return domain.UploadedDocument{ID: f.nextID, Status: "ready"}, nil
}

type statusCheckerFake struct {
	mu       sync.Mutex
	statuses []string
	calls    int
}

func (f *statusCheckerFake) DocumentStatus(_ context.Context, id int64) (domain.UploadedDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	status := "ready"
	if len(f.statuses) > 0 {
		status = f.statuses[0]
		f.statuses = f.statuses[1:]
	}
	return domain.UploadedDocument{ID: id, Status: status}, nil
}

type evaluationServiceFake struct {
	calls  atomic.Int32
	submit func(ctx context.Context, payload domain.EvaluationSubmission) (domain.SubmitResponse, error)

	mu       sync.Mutex
	payloads []domain.EvaluationSubmission
}

func (f *evaluationServiceFake) SubmitEvaluation(ctx context.Context, payload domain.EvaluationSubmission) (domain.SubmitResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()
	if f.submit != nil {
		return f.submit(ctx, payload)
	}
	id := int64(42)
	return domain.SubmitResponse{
		Result:       domain.EvaluationResult(`{"grade":"B","decision":"approve"}`),
		EvaluationID: &id,
	}, nil
}

func (f *evaluationServiceFake) lastPayload() domain.EvaluationSubmission {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return domain.EvaluationSubmission{}
	}
	return f.payloads[len(f.payloads)-1]
}

type readerFake struct {
	mu      sync.Mutex
	records map[int64]domain.EvaluationRecord
	history []domain.EvaluationSummary
	err     error
	gate    chan struct{}
	entered chan struct{}
	calls   int
}

func (f *readerFake) FetchEvaluationByID(ctx context.Context, id int64) (domain.EvaluationRecord, error) {
	f.mu.Lock()
	f.calls++
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.EvaluationRecord{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.EvaluationRecord{}, f.err
	}
	record, ok := f.records[id]
	if !ok {
		return domain.EvaluationRecord{}, domain.WrapError(domain.ErrEvaluationNotFound, "fetch evaluation", errors.New("no such record"))
	}
	return record, nil
}

func (f *readerFake) FetchEvaluationHistory(_ context.Context, limit int) ([]domain.EvaluationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.history) > limit {
		return f.history[:limit], nil
	}
	return f.history, nil
}

type rendererFake struct {
	byID      atomic.Int32
	byPayload atomic.Int32
	lastID    atomic.Int64
	err       error
}

func (f *rendererFake) RenderArtifactFromID(_ context.Context, id int64) ([]byte, error) {
	f.byID.Add(1)
	f.lastID.Store(id)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-by-id"), nil
}

func (f *rendererFake) RenderArtifactFromPayload(context.Context, domain.EvaluationSubmission) ([]byte, error) {
	f.byPayload.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-by-payload"), nil
}

type referenceFake struct {
	mu        sync.Mutex
	id        int64
	set       bool
	malformed bool
	clears    int
}

func (f *referenceFake) Get() (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.malformed {
		return 0, false, errors.New("evaluation_id is not a valid id")
	}
	return f.id, f.set, nil
}

func (f *referenceFake) Set(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.id, f.set, f.malformed = id, true, false
	return nil
}

func (f *referenceFake) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.id, f.set, f.malformed = 0, false, false
	f.clears++
	return nil
}

type ledgerFake struct {
	mu      sync.Mutex
	records []domain.EvaluationSummary
}

// listingLedgerFake also serves recorded summaries back.
type listingLedgerFake struct {
	ledgerFake
	listErr error
}

func (f *listingLedgerFake) List(_ context.Context, limit int) ([]domain.EvaluationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := append([]domain.EvaluationSummary(nil), f.records...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *ledgerFake) Record(_ context.Context, summary domain.EvaluationSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, summary)
	return nil
}

func (f *ledgerFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type observerFake struct {
	superseded   atomic.Int32
	submissions  atomic.Int32
	reconstructs sync.Map
}

func (o *observerFake) UploadFinished(domain.StagedStatus) {}
func (o *observerFake) SubmissionFinished(string, time.Duration) {
	o.submissions.Add(1)
}
func (o *observerFake) SubmissionSuperseded()        { o.superseded.Add(1) }
func (o *observerFake) ExportFinished(string, error) {}
func (o *observerFake) Reconstructed(outcome string) { o.reconstructs.Store(outcome, true) }
