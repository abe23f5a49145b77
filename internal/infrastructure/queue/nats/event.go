package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
)

type EvaluationEvent struct {
	EvaluationID int64     `json:"evaluation_id"`
	CompanyName  string    `json:"company_name"`
	Grade        string    `json:"grade,omitempty"`
	Decision     string    `json:"decision,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	PublishedAt  time.Time `json:"published_at"`
}

func (e EvaluationEvent) Summary() domain.EvaluationSummary {
	return domain.EvaluationSummary{
		ID:          e.EvaluationID,
		CompanyName: e.CompanyName,
		Grade:       e.Grade,
		Decision:    e.Decision,
		CreatedAt:   e.CreatedAt,
	}
}

func encodeEvent(summary domain.EvaluationSummary, now time.Time) ([]byte, error) {
	if summary.ID <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode event", fmt.Errorf("invalid evaluation id %d", summary.ID))
	}
	data, err := json.Marshal(EvaluationEvent{
		EvaluationID: summary.ID,
		CompanyName:  summary.CompanyName,
		Grade:        summary.Grade,
		Decision:     summary.Decision,
		CreatedAt:    summary.CreatedAt,
		PublishedAt:  now.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal evaluation event: %w", err)
	}
	return data, nil
}

func decodeEvent(data []byte) (EvaluationEvent, error) {
	var event EvaluationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return EvaluationEvent{}, fmt.Errorf("unmarshal evaluation event: %w", err)
	}
	if event.EvaluationID <= 0 {
		return EvaluationEvent{}, fmt.Errorf("evaluation event without id")
	}
	return event, nil
}
