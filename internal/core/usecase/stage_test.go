package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
)

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func docByID(docs []domain.StagedDocument, localID string) (domain.StagedDocument, bool) {
	for _, d := range docs {
		if d.LocalID == localID {
			return d, true
		}
	}
	return domain.StagedDocument{}, false
}

func TestStageMarksOnlyFirstDocumentPrimary(t *testing.T) {
	mgr := NewDocumentStageManager(newUploaderFake())
	first, err := mgr.Stage(context.Background(), "report.pdf", domain.DocumentSustainabilityReport, strings.NewReader("a"))
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	second, err := mgr.Stage(context.Background(), "spo.pdf", domain.DocumentSecondPartyOpinion, strings.NewReader("b"))
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if first.Status != domain.StagedUploading {
		t.Fatalf("expected uploading status, got %s", first.Status)
	}
	if !first.IsPrimary || second.IsPrimary {
		t.Fatalf("expected only first document primary, got %v/%v", first.IsPrimary, second.IsPrimary)
	}
	if err := mgr.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	for _, d := range mgr.Documents() {
		if d.Status != domain.StagedReady || d.ServerID == nil {
			t.Fatalf("expected ready document with server id, got %+v", d)
		}
	}
}

func TestStageRejectsUnknownDocumentType(t *testing.T) {
	mgr := NewDocumentStageManager(newUploaderFake())
	_, err := mgr.Stage(context.Background(), "x.pdf", domain.DocumentType("memo"), strings.NewReader("a"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(mgr.Documents()) != 0 {
		t.Fatalf("expected nothing staged")
	}
}

func TestStageResolvesOutOfOrderCompletionsByLocalID(t *testing.T) {
	uploader := newUploaderFake()
	gateA := uploader.gate("a.pdf")
	gateB := uploader.gate("b.pdf")
	uploader.respond("a.pdf", domain.UploadedDocument{ID: 1, Status: "ready"})
	uploader.respond("b.pdf", domain.UploadedDocument{ID: 2, Status: "ready"})

	mgr := NewDocumentStageManager(uploader)
	a, _ := mgr.Stage(context.Background(), "a.pdf", domain.DocumentSustainabilityReport, strings.NewReader("a"))
	b, _ := mgr.Stage(context.Background(), "b.pdf", domain.DocumentTargets, strings.NewReader("b"))

	close(gateB)
	waitUntil(t, "b ready", func() bool {
		d, _ := docByID(mgr.Documents(), b.LocalID)
		return d.Status == domain.StagedReady
	})
	if d, _ := docByID(mgr.Documents(), a.LocalID); d.Status != domain.StagedUploading {
		t.Fatalf("expected a still uploading, got %s", d.Status)
	}

	close(gateA)
	if err := mgr.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	docs := mgr.Documents()
	da, _ := docByID(docs, a.LocalID)
	db, _ := docByID(docs, b.LocalID)
	if *da.ServerID != 1 || *db.ServerID != 2 {
		t.Fatalf("server ids crossed: a=%d b=%d", *da.ServerID, *db.ServerID)
	}
}

func TestRemoveDuringUploadDiscardsLateCompletion(t *testing.T) {
	uploader := newUploaderFake()
	gate := uploader.gate("slow.pdf")
	mgr := NewDocumentStageManager(uploader)

	doc, _ := mgr.Stage(context.Background(), "slow.pdf", domain.DocumentTransitionPlan, strings.NewReader("x"))
	if err := mgr.Remove(doc.LocalID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	close(gate)
	if err := mgr.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(mgr.Documents()) != 0 {
		t.Fatalf("expected removed document to stay removed, got %+v", mgr.Documents())
	}
}

func TestUploadFailureIsRetainedAndRetryable(t *testing.T) {
	uploader := newUploaderFake()
	uploader.fail("bad.pdf", errors.New("file too large"))
	mgr := NewDocumentStageManager(uploader)

	doc, _ := mgr.Stage(context.Background(), "bad.pdf", domain.DocumentSustainabilityReport, strings.NewReader("x"))
	if err := mgr.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	failed, ok := docByID(mgr.Documents(), doc.LocalID)
	if !ok || failed.Status != domain.StagedError {
		t.Fatalf("expected retained error entry, got %+v", failed)
	}
	if !strings.Contains(failed.Error, "file too large") {
		t.Fatalf("expected upload error message, got %q", failed.Error)
	}

	if _, err := mgr.Retry(context.Background(), doc.LocalID); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if err := mgr.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	retried, _ := docByID(mgr.Documents(), doc.LocalID)
	if !retried.Submittable() {
		t.Fatalf("expected retried document ready, got %+v", retried)
	}
}

func TestRetryRejectsDocumentNotInError(t *testing.T) {
	mgr := NewDocumentStageManager(newUploaderFake())
	doc, _ := mgr.Stage(context.Background(), "ok.pdf", domain.DocumentOther, strings.NewReader("x"))
	_ = mgr.Wait(context.Background())
	if _, err := mgr.Retry(context.Background(), doc.LocalID); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := mgr.Retry(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestProcessingDocumentPollsUntilReady(t *testing.T) {
	uploader := newUploaderFake()
	uploader.respond("scan.pdf", domain.UploadedDocument{ID: 9, Status: "processing"})
	checker := &statusCheckerFake{statuses: []string{"processing", "ready"}}
	mgr := NewDocumentStageManager(uploader, WithStatusChecker(checker), WithPolling(time.Millisecond, 10))

	doc, _ := mgr.Stage(context.Background(), "scan.pdf", domain.DocumentVerificationReport, strings.NewReader("x"))
	if err := mgr.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	got, _ := docByID(mgr.Documents(), doc.LocalID)
	if got.Status != domain.StagedReady || got.ServerID == nil || *got.ServerID != 9 {
		t.Fatalf("expected ready doc 9, got %+v", got)
	}
	if checker.calls != 2 {
		t.Fatalf("expected 2 status checks, got %d", checker.calls)
	}
}

func TestProcessingWithoutCheckerCountsAsReady(t *testing.T) {
	uploader := newUploaderFake()
	uploader.respond("scan.pdf", domain.UploadedDocument{ID: 3, Status: "processing"})
	mgr := NewDocumentStageManager(uploader)

	doc, _ := mgr.Stage(context.Background(), "scan.pdf", domain.DocumentOther, strings.NewReader("x"))
	_ = mgr.Wait(context.Background())
	got, _ := docByID(mgr.Documents(), doc.LocalID)
	if !got.Submittable() {
		t.Fatalf("expected ready doc, got %+v", got)
	}
}

func TestPollingGivesUpAfterMaxAttempts(t *testing.T) {
	uploader := newUploaderFake()
	uploader.respond("scan.pdf", domain.UploadedDocument{ID: 4, Status: "processing"})
	checker := &statusCheckerFake{statuses: []string{"processing", "processing", "processing"}}
	mgr := NewDocumentStageManager(uploader, WithStatusChecker(checker), WithPolling(time.Millisecond, 2))

	doc, _ := mgr.Stage(context.Background(), "scan.pdf", domain.DocumentOther, strings.NewReader("x"))
	_ = mgr.Wait(context.Background())
	got, _ := docByID(mgr.Documents(), doc.LocalID)
	if got.Status != domain.StagedError {
		t.Fatalf("expected error after polling limit, got %+v", got)
	}
}

func TestSetPrimaryAndPromotionOnRemove(t *testing.T) {
	mgr := NewDocumentStageManager(newUploaderFake())
	a, _ := mgr.Stage(context.Background(), "a.pdf", domain.DocumentSustainabilityReport, strings.NewReader("a"))
	b, _ := mgr.Stage(context.Background(), "b.pdf", domain.DocumentTargets, strings.NewReader("b"))
	c, _ := mgr.Stage(context.Background(), "c.pdf", domain.DocumentOther, strings.NewReader("c"))
	_ = mgr.Wait(context.Background())

	if err := mgr.SetPrimary(c.LocalID); err != nil {
		t.Fatalf("SetPrimary() error = %v", err)
	}
	for _, d := range mgr.Documents() {
		if d.IsPrimary != (d.LocalID == c.LocalID) {
			t.Fatalf("unexpected primary flag on %s", d.Filename)
		}
	}

	if err := mgr.Remove(c.LocalID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	docs := mgr.Documents()
	da, _ := docByID(docs, a.LocalID)
	db, _ := docByID(docs, b.LocalID)
	if !da.IsPrimary || db.IsPrimary {
		t.Fatalf("expected earliest remaining document promoted, got a=%v b=%v", da.IsPrimary, db.IsPrimary)
	}
	if err := mgr.SetPrimary("missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
