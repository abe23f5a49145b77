package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
)

func TestEventCodec(t *testing.T) {
	created := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	data, err := encodeEvent(domain.EvaluationSummary{ID: 42, CompanyName: "Nordic Steel AB", Grade: "B", CreatedAt: created}, created.Add(time.Minute))
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}
	event, err := decodeEvent(data)
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	summary := event.Summary()
	if summary.ID != 42 || summary.Grade != "B" || !summary.CreatedAt.Equal(created) {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if event.PublishedAt.Sub(created) != time.Minute {
		t.Fatalf("unexpected publish time %v", event.PublishedAt)
	}
}

func TestEventCodecRejectsMissingID(t *testing.T) {
	if _, err := encodeEvent(domain.EvaluationSummary{CompanyName: "Acme"}, time.Now()); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := decodeEvent([]byte(`{"company_name":"Acme"}`)); err == nil {
		t.Fatalf("expected decode error for missing id")
	}
	if _, err := decodeEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error for bad payload")
	}
}

func TestPublishFailureKinds(t *testing.T) {
	err := publishFailure(fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}

	plain := errors.New("bad subject")
	if got := publishFailure(plain); got != plain {
		t.Fatalf("expected permanent error unchanged, got %v", got)
	}

	if class := classifyPublishError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("canceled publish must not retry or trip the breaker")
	}
}
