package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
	"github.com/kirillkom/kpi-benchmark/internal/core/ports"
)

type stagedEntry struct {
	doc  domain.StagedDocument
	body []byte
}

// DocumentStageManager tracks evidence documents from selection to upload
// completion. Every upload resolves into its entry by local id, so a late
// completion for a removed entry is dropped instead of resurrecting it.
type DocumentStageManager struct {
	uploader ports.DocumentUploader
	checker  ports.DocumentStatusChecker
	observer ports.WorkflowObserver
	logger   *slog.Logger

	pollInterval time.Duration
	pollAttempts int
	now          func() time.Time

	mu      sync.Mutex
	entries []*stagedEntry
	wg      sync.WaitGroup
}

type StageOption func(*DocumentStageManager)

func WithStatusChecker(checker ports.DocumentStatusChecker) StageOption {
	return func(m *DocumentStageManager) { m.checker = checker }
}

func WithStageObserver(observer ports.WorkflowObserver) StageOption {
	return func(m *DocumentStageManager) {
		if observer != nil {
			m.observer = observer
		}
	}
}

func WithStageLogger(logger *slog.Logger) StageOption {
	return func(m *DocumentStageManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithPolling(interval time.Duration, attempts int) StageOption {
	return func(m *DocumentStageManager) {
		if interval > 0 {
			m.pollInterval = interval
		}
		if attempts > 0 {
			m.pollAttempts = attempts
		}
	}
}

func NewDocumentStageManager(uploader ports.DocumentUploader, opts ...StageOption) *DocumentStageManager {
	m := &DocumentStageManager{
		uploader:     uploader,
		observer:     noopObserver{},
		logger:       discardLogger(),
		pollInterval: 2 * time.Second,
		pollAttempts: 30,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stage adds a document in the uploading state and starts its upload in the
// background. The body is read before Stage returns.
func (m *DocumentStageManager) Stage(ctx context.Context, filename string, docType domain.DocumentType, body io.Reader) (domain.StagedDocument, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return domain.StagedDocument{}, domain.WrapError(domain.ErrInvalidInput, "stage document", errors.New("filename is required"))
	}
	if !docType.Valid() {
		return domain.StagedDocument{}, domain.WrapError(domain.ErrInvalidInput, "stage document", fmt.Errorf("unknown document type %q", docType))
	}
	if body == nil {
		return domain.StagedDocument{}, domain.WrapError(domain.ErrInvalidInput, "stage document", errors.New("document body is required"))
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return domain.StagedDocument{}, fmt.Errorf("read document body: %w", err)
	}

	m.mu.Lock()
	entry := &stagedEntry{
		doc: domain.StagedDocument{
			LocalID:      uuid.NewString(),
			Filename:     filename,
			DocumentType: docType,
			IsPrimary:    len(m.entries) == 0,
			Status:       domain.StagedUploading,
			StagedAt:     m.now().UTC(),
		},
		body: raw,
	}
	m.entries = append(m.entries, entry)
	doc := entry.doc
	m.wg.Add(1)
	m.mu.Unlock()

	go m.upload(context.WithoutCancel(ctx), doc.LocalID, filename, docType, raw)
	return doc, nil
}

// Retry re-uploads a document that ended in the error state.
func (m *DocumentStageManager) Retry(ctx context.Context, localID string) (domain.StagedDocument, error) {
	m.mu.Lock()
	entry := m.find(localID)
	if entry == nil {
		m.mu.Unlock()
		return domain.StagedDocument{}, domain.WrapError(domain.ErrDocumentNotFound, "retry upload", errors.New(localID))
	}
	if entry.doc.Status != domain.StagedError {
		m.mu.Unlock()
		return domain.StagedDocument{}, domain.WrapError(domain.ErrInvalidInput, "retry upload", fmt.Errorf("document is %s", entry.doc.Status))
	}
	entry.doc.Status = domain.StagedUploading
	entry.doc.Error = ""
	doc := entry.doc
	body := entry.body
	m.wg.Add(1)
	m.mu.Unlock()

	go m.upload(context.WithoutCancel(ctx), doc.LocalID, doc.Filename, doc.DocumentType, body)
	return doc, nil
}

// Remove deletes an entry whatever its state. An outstanding upload keeps
// running but its result is discarded.
func (m *DocumentStageManager) Remove(localID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, entry := range m.entries {
		if entry.doc.LocalID != localID {
			continue
		}
		m.entries = append(m.entries[:i], m.entries[i+1:]...)
		if entry.doc.IsPrimary && len(m.entries) > 0 && !m.hasPrimary() {
			m.entries[0].doc.IsPrimary = true
		}
		return nil
	}
	return domain.WrapError(domain.ErrDocumentNotFound, "remove document", errors.New(localID))
}

// SetPrimary makes localID the only primary document.
func (m *DocumentStageManager) SetPrimary(localID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.find(localID) == nil {
		return domain.WrapError(domain.ErrDocumentNotFound, "set primary document", errors.New(localID))
	}
	for _, entry := range m.entries {
		entry.doc.IsPrimary = entry.doc.LocalID == localID
	}
	return nil
}

// Documents returns a copy of the staged set in staging order.
func (m *DocumentStageManager) Documents() []domain.StagedDocument {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.StagedDocument, 0, len(m.entries))
	for _, entry := range m.entries {
		doc := entry.doc
		doc.ServerID = cloneInt64(entry.doc.ServerID)
		out = append(out, doc)
	}
	return out
}

// Clear drops every entry. Uploads still in flight are discarded on completion.
func (m *DocumentStageManager) Clear() {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
}

// Wait blocks until every upload started so far has resolved.
func (m *DocumentStageManager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *DocumentStageManager) upload(ctx context.Context, localID, filename string, docType domain.DocumentType, body []byte) {
	defer m.wg.Done()

	uploaded, err := m.uploader.UploadDocument(ctx, filename, docType, bytes.NewReader(body))
	if err != nil {
		m.logger.Warn("upload_failed", "local_id", localID, "filename", filename, "error", err)
		m.resolve(localID, nil, domain.StagedError, domain.UserMessage(err))
		return
	}

	status := mapUploadStatus(uploaded.Status)
	if status == domain.StagedProcessing && m.checker == nil {
		status = domain.StagedReady
	}
	id := uploaded.ID
	if !m.resolve(localID, &id, status, errorForStatus(status)) {
		return
	}
	if status == domain.StagedProcessing {
		m.poll(ctx, localID, id)
	}
}

func (m *DocumentStageManager) poll(ctx context.Context, localID string, documentID int64) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= m.pollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			m.resolve(localID, &documentID, domain.StagedError, "document processing was interrupted")
			return
		case <-ticker.C:
		}

		current, err := m.checker.DocumentStatus(ctx, documentID)
		if err != nil {
			m.logger.Warn("document_status_failed", "local_id", localID, "document_id", documentID, "attempt", attempt, "error", err)
			continue
		}
		status := mapUploadStatus(current.Status)
		if status == domain.StagedProcessing {
			continue
		}
		m.resolve(localID, &documentID, status, errorForStatus(status))
		return
	}
	m.resolve(localID, &documentID, domain.StagedError, "document processing did not finish in time")
}

// resolve applies an upload outcome by local id. It reports false when the
// entry no longer exists.
func (m *DocumentStageManager) resolve(localID string, serverID *int64, status domain.StagedStatus, message string) bool {
	m.mu.Lock()
	entry := m.find(localID)
	if entry == nil {
		m.mu.Unlock()
		m.logger.Debug("upload_result_discarded", "local_id", localID, "status", status)
		return false
	}
	entry.doc.Status = status
	entry.doc.Error = message
	if serverID != nil {
		entry.doc.ServerID = cloneInt64(serverID)
	}
	m.mu.Unlock()

	if status != domain.StagedProcessing {
		m.observer.UploadFinished(status)
	}
	return true
}

func (m *DocumentStageManager) find(localID string) *stagedEntry {
	for _, entry := range m.entries {
		if entry.doc.LocalID == localID {
			return entry
		}
	}
	return nil
}

func (m *DocumentStageManager) hasPrimary() bool {
	for _, entry := range m.entries {
		if entry.doc.IsPrimary {
			return true
		}
	}
	return false
}

func mapUploadStatus(status string) domain.StagedStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "failed", "error":
		return domain.StagedError
	case "processing", "pending", "queued":
		return domain.StagedProcessing
	default:
		return domain.StagedReady
	}
}

func errorForStatus(status domain.StagedStatus) string {
	if status == domain.StagedError {
		return "document processing failed"
	}
	return ""
}
