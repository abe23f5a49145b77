package scoring

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
	"github.com/kirillkom/kpi-benchmark/internal/core/ports"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
}

// Client talks to the remote scoring and benchmarking service. It implements
// every collaborator port the workflow needs.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	logger     *slog.Logger

	maxArtifact int64
}

func New(cfg Config, executor *resilience.Executor, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig(), logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		executor:   executor,
		logger:     logger,

		maxArtifact: maxArtifactBytes,
	}
}

type documentResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (c *Client) UploadDocument(ctx context.Context, filename string, docType domain.DocumentType, body io.Reader) (domain.UploadedDocument, error) {
	content, err := io.ReadAll(body)
	if err != nil {
		return domain.UploadedDocument{}, fmt.Errorf("read upload body: %w", err)
	}

	var resp documentResponse
	err = c.executor.Execute(ctx, "upload_document", func(ctx context.Context) error {
		payload, contentType, err := multipartDocument(filename, docType, content)
		if err != nil {
			return err
		}
		return c.send(ctx, http.MethodPost, "/api/v1/documents", payload, contentType, &resp, "upload document")
	}, classifyScoringError)
	if err != nil {
		return domain.UploadedDocument{}, toDomainError("upload document", err)
	}
	return domain.UploadedDocument{ID: resp.ID, Status: resp.Status}, nil
}

func (c *Client) DocumentStatus(ctx context.Context, id int64) (domain.UploadedDocument, error) {
	var resp documentResponse
	err := c.executor.Execute(ctx, "document_status", func(ctx context.Context) error {
		return c.send(ctx, http.MethodGet, "/api/v1/documents/"+strconv.FormatInt(id, 10), nil, "", &resp, "document status")
	}, classifyScoringError)
	if err != nil {
		return domain.UploadedDocument{}, toDomainError("document status", err)
	}
	if resp.ID == 0 {
		resp.ID = id
	}
	return domain.UploadedDocument{ID: resp.ID, Status: resp.Status}, nil
}

// SubmitEvaluation never repeats the call: a retried submission could create
// a second stored evaluation for the same request.
func (c *Client) SubmitEvaluation(ctx context.Context, payload domain.EvaluationSubmission) (domain.SubmitResponse, error) {
	body, err := jsonBody(payload)
	if err != nil {
		return domain.SubmitResponse{}, fmt.Errorf("marshal evaluate request: %w", err)
	}

	var resp domain.SubmitResponse
	err = c.executor.Execute(ctx, "submit_evaluation", func(ctx context.Context) error {
		return c.send(ctx, http.MethodPost, "/api/v1/kpi/evaluate", bytes.NewReader(body), "application/json", &resp, "evaluate")
	}, resilience.NoRetry(classifyScoringError))
	if err != nil {
		return domain.SubmitResponse{}, toDomainError("evaluate", err)
	}
	return resp, nil
}

type evaluationResponse struct {
	Result   domain.EvaluationResult  `json:"result"`
	Metadata domain.EvaluationSummary `json:"metadata"`
}

func (c *Client) FetchEvaluationByID(ctx context.Context, id int64) (domain.EvaluationRecord, error) {
	var resp evaluationResponse
	err := c.executor.Execute(ctx, "fetch_evaluation", func(ctx context.Context) error {
		return c.send(ctx, http.MethodGet, "/api/v1/kpi/evaluations/"+strconv.FormatInt(id, 10), nil, "", &resp, "fetch evaluation")
	}, classifyScoringError)
	if err != nil {
		return domain.EvaluationRecord{}, toDomainError("fetch evaluation", err)
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return domain.EvaluationRecord{}, domain.WrapError(domain.ErrEvaluationNotFound, "fetch evaluation", fmt.Errorf("evaluation %d has no result", id))
	}
	return domain.EvaluationRecord{Result: resp.Result, Metadata: resp.Metadata}, nil
}

func (c *Client) FetchEvaluationHistory(ctx context.Context, limit int) ([]domain.EvaluationSummary, error) {
	path := "/api/v1/kpi/evaluations"
	if limit > 0 {
		path += "?" + url.Values{"limit": []string{strconv.Itoa(limit)}}.Encode()
	}
	var resp struct {
		Evaluations []domain.EvaluationSummary `json:"evaluations"`
	}
	err := c.executor.Execute(ctx, "fetch_history", func(ctx context.Context) error {
		return c.send(ctx, http.MethodGet, path, nil, "", &resp, "fetch history")
	}, classifyScoringError)
	if err != nil {
		return nil, toDomainError("fetch history", err)
	}
	if resp.Evaluations == nil {
		resp.Evaluations = []domain.EvaluationSummary{}
	}
	return resp.Evaluations, nil
}

func (c *Client) RenderArtifactFromID(ctx context.Context, id int64) ([]byte, error) {
	path := "/api/v1/kpi/evaluations/" + strconv.FormatInt(id, 10) + "/pdf"
	out, err := resilience.Call(ctx, c.executor, "render_pdf", func(ctx context.Context) ([]byte, error) {
		return c.download(ctx, http.MethodGet, path, nil, "render pdf")
	}, classifyScoringError)
	if err != nil {
		return nil, toDomainError("render pdf", err)
	}
	return out, nil
}

// RenderArtifactFromPayload renders from the payload without storing an
// evaluation, so it is safe to retry.
func (c *Client) RenderArtifactFromPayload(ctx context.Context, payload domain.EvaluationSubmission) ([]byte, error) {
	body, err := jsonBody(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal report request: %w", err)
	}
	out, err := resilience.Call(ctx, c.executor, "render_pdf_payload", func(ctx context.Context) ([]byte, error) {
		return c.download(ctx, http.MethodPost, "/api/v1/kpi/report/pdf", bytes.NewReader(body), "render report")
	}, classifyScoringError)
	if err != nil {
		return nil, toDomainError("render report", err)
	}
	return out, nil
}

var (
	_ ports.DocumentUploader      = (*Client)(nil)
	_ ports.DocumentStatusChecker = (*Client)(nil)
	_ ports.EvaluationService     = (*Client)(nil)
	_ ports.EvaluationReader      = (*Client)(nil)
	_ ports.ArtifactRenderer      = (*Client)(nil)
)
