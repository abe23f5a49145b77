package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
)

type workflowFake struct {
	session   domain.WorkflowSession
	err       error
	artifact  domain.Artifact
	staged    []string
	stagedTyp domain.DocumentType
	opened    int64
	done      chan struct{}
}

func newWorkflowFake() *workflowFake {
	done := make(chan struct{})
	close(done)
	return &workflowFake{
		session: domain.WorkflowSession{Step: domain.StepInput, Mode: domain.ModeActive},
		done:    done,
	}
}

func (f *workflowFake) Start(context.Context) error       { return f.err }
func (f *workflowFake) Snapshot() domain.WorkflowSession  { return f.session }
func (f *workflowFake) Advance() error                    { return f.err }
func (f *workflowFake) Back() error                       { return f.err }
func (f *workflowFake) RemoveDocument(string) error       { return f.err }
func (f *workflowFake) SetPrimary(string) error           { return f.err }
func (f *workflowFake) WaitUploads(context.Context) error { return f.err }
func (f *workflowFake) StartNew() error                   { return f.err }
func (f *workflowFake) LeaveHistory() error               { return f.err }
func (f *workflowFake) Export(context.Context) (domain.Artifact, error) {
	return f.artifact, f.err
}

func (f *workflowFake) SetInput(input domain.TargetInput) error {
	if f.err != nil {
		return f.err
	}
	f.session.Input = input
	return nil
}

func (f *workflowFake) StageDocument(_ context.Context, filename string, docType domain.DocumentType, body io.Reader) (domain.StagedDocument, error) {
	if f.err != nil {
		return domain.StagedDocument{}, f.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return domain.StagedDocument{}, err
	}
	f.staged = append(f.staged, filename)
	f.stagedTyp = docType
	return domain.StagedDocument{LocalID: "local-1", Filename: filename, DocumentType: docType, Status: domain.StagedUploading}, nil
}

func (f *workflowFake) RetryDocument(_ context.Context, localID string) (domain.StagedDocument, error) {
	return domain.StagedDocument{LocalID: localID, Status: domain.StagedUploading}, f.err
}

func (f *workflowFake) Submit(context.Context) (<-chan struct{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.session.Analyzing = true
	return f.done, nil
}

func (f *workflowFake) EnterHistory(context.Context) ([]domain.EvaluationSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.EvaluationSummary{{ID: 3, CompanyName: "Old Co"}}, nil
}

func (f *workflowFake) OpenFromHistory(_ context.Context, id int64) error {
	f.opened = id
	return f.err
}

type sinkFake struct {
	saved []string
}

func (s *sinkFake) Save(_ context.Context, artifact domain.Artifact) (string, error) {
	s.saved = append(s.saved, artifact.Filename)
	return "/artifacts/" + artifact.Filename, nil
}

func newTestRouter(wf *workflowFake, sink *sinkFake) http.Handler {
	var r *Router
	if sink != nil {
		r = NewRouter(wf, sink, slog.New(slog.DiscardHandler))
	} else {
		r = NewRouter(wf, nil, slog.New(slog.DiscardHandler))
	}
	return r.Handler()
}

func serve(handler http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthzSetsRequestID(t *testing.T) {
	res := serve(newTestRouter(newWorkflowFake(), nil), http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestSetInputReturnsSession(t *testing.T) {
	wf := newWorkflowFake()
	payload := `{"company_name":"Acme","baseline_value":100,"target_value":60}`
	res := serve(newTestRouter(wf, nil), http.MethodPut, "/v1/workflow/input", bytes.NewBufferString(payload))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var session domain.WorkflowSession
	if err := json.Unmarshal(res.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Input.CompanyName != "Acme" || session.Input.TargetValue == nil || *session.Input.TargetValue != 60 {
		t.Fatalf("unexpected input %+v", session.Input)
	}
}

func TestAdvanceValidationFailureMapsTo400(t *testing.T) {
	wf := newWorkflowFake()
	wf.err = &domain.ValidationError{Fields: map[string]string{"nace_code": "is required"}}
	wf.session.Error = wf.err.Error()

	res := serve(newTestRouter(wf, nil), http.MethodPost, "/v1/workflow/advance", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	var body struct {
		Error   string                 `json:"error"`
		Session domain.WorkflowSession `json:"session"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error == "" || body.Session.Step != domain.StepInput {
		t.Fatalf("expected error with session, got %+v", body)
	}
}

func TestStageDocumentMultipart(t *testing.T) {
	wf := newWorkflowFake()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("document_type", "targets_document")
	part, _ := writer.CreateFormFile("file", "targets.pdf")
	_, _ = part.Write([]byte("%PDF"))
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/workflow/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	newTestRouter(wf, nil).ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(wf.staged) != 1 || wf.staged[0] != "targets.pdf" || wf.stagedTyp != domain.DocumentTargets {
		t.Fatalf("unexpected staged %v %s", wf.staged, wf.stagedTyp)
	}
}

func TestStageDocumentRequiresFile(t *testing.T) {
	res := serve(newTestRouter(newWorkflowFake(), nil), http.MethodPost, "/v1/workflow/documents", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSubmitErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.WrapError(domain.ErrMissingRequirements, "submit", errors.New("no ready document")), http.StatusUnprocessableEntity},
		{domain.ErrBusy, http.StatusConflict},
		{domain.WrapError(domain.ErrInvalidTransition, "submit", errors.New("wrong step")), http.StatusConflict},
		{domain.WrapError(domain.ErrTemporary, "submit", errors.New("down")), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		wf := newWorkflowFake()
		wf.err = tc.err
		res := serve(newTestRouter(wf, nil), http.MethodPost, "/v1/workflow/submit", nil)
		if res.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, res.Code)
		}
	}
}

func TestSubmitWaitReturnsAppliedSession(t *testing.T) {
	wf := newWorkflowFake()
	res := serve(newTestRouter(wf, nil), http.MethodPost, "/v1/workflow/submit?wait=true", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	res = serve(newTestRouter(wf, nil), http.MethodPost, "/v1/workflow/submit", nil)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202 without wait, got %d", res.Code)
	}
}

func TestExportStreamsPDFAndSaves(t *testing.T) {
	wf := newWorkflowFake()
	wf.artifact = domain.Artifact{Filename: "Acme_KPI_Assessment_2026-03-14.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.7")}
	sink := &sinkFake{}

	res := serve(newTestRouter(wf, sink), http.MethodPost, "/v1/workflow/export?save=true", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Disposition"); got != `attachment; filename="Acme_KPI_Assessment_2026-03-14.pdf"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if res.Body.String() != "%PDF-1.7" {
		t.Fatalf("unexpected body %q", res.Body.String())
	}
	if len(sink.saved) != 1 || res.Header().Get("X-Artifact-Location") == "" {
		t.Fatalf("expected artifact saved, got %v", sink.saved)
	}
}

func TestOpenFromHistory(t *testing.T) {
	wf := newWorkflowFake()
	handler := newTestRouter(wf, nil)

	res := serve(handler, http.MethodPost, "/v1/workflow/history/17", nil)
	if res.Code != http.StatusOK || wf.opened != 17 {
		t.Fatalf("expected open of 17, got %d / %d", res.Code, wf.opened)
	}

	res = serve(handler, http.MethodPost, "/v1/workflow/history/abc", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", res.Code)
	}

	wf.err = domain.WrapError(domain.ErrEvaluationNotFound, "lookup", errors.New("gone"))
	res = serve(handler, http.MethodPost, "/v1/workflow/history/18", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestEnterHistoryListsEvaluations(t *testing.T) {
	res := serve(newTestRouter(newWorkflowFake(), nil), http.MethodGet, "/v1/workflow/history", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		Evaluations []domain.EvaluationSummary `json:"evaluations"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Evaluations) != 1 || body.Evaluations[0].ID != 3 {
		t.Fatalf("unexpected history %+v", body.Evaluations)
	}
}
