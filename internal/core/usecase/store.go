package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
	"github.com/kirillkom/kpi-benchmark/internal/core/ports"
)

// EvaluationStore looks up persisted assessments and keeps the durable
// session reference in step with the session.
type EvaluationStore struct {
	reader    ports.EvaluationReader
	reference ports.SessionReference
	ledger    ports.EvaluationLedger
	logger    *slog.Logger
}

func NewEvaluationStore(reader ports.EvaluationReader, reference ports.SessionReference, ledger ports.EvaluationLedger, logger *slog.Logger) *EvaluationStore {
	if logger == nil {
		logger = discardLogger()
	}
	return &EvaluationStore{
		reader:    reader,
		reference: reference,
		ledger:    ledger,
		logger:    logger,
	}
}

func (s *EvaluationStore) Lookup(ctx context.Context, id int64) (domain.EvaluationRecord, error) {
	if id <= 0 {
		return domain.EvaluationRecord{}, domain.WrapError(domain.ErrEvaluationNotFound, "lookup evaluation", fmt.Errorf("invalid id %d", id))
	}
	record, err := s.reader.FetchEvaluationByID(ctx, id)
	if err != nil {
		return domain.EvaluationRecord{}, fmt.Errorf("lookup evaluation %d: %w", id, err)
	}
	record.ID = &id
	record.Metadata.ID = id
	return record, nil
}

// History lists past assessments from the scoring service. When that fails
// and the ledger can list, the ledger's copy is served instead.
func (s *EvaluationStore) History(ctx context.Context, limit int) ([]domain.EvaluationSummary, error) {
	items, err := s.reader.FetchEvaluationHistory(ctx, limit)
	if err == nil {
		return items, nil
	}
	err = fmt.Errorf("fetch evaluation history: %w", err)

	lister, ok := s.ledger.(ports.EvaluationLedgerReader)
	if !ok {
		return nil, err
	}
	items, listErr := lister.List(ctx, limit)
	if listErr != nil {
		s.logger.Warn("ledger_history_failed", "error", listErr)
		return nil, err
	}
	s.logger.Warn("history_served_from_ledger", "error", err, "count", len(items))
	return items, nil
}

// Reference returns the durable id visible to the hosting application. An
// error means a reference is present but unusable.
func (s *EvaluationStore) Reference() (int64, bool, error) {
	return s.reference.Get()
}

// Point mirrors id into the durable reference, or removes it when id is nil.
func (s *EvaluationStore) Point(id *int64) error {
	if id == nil {
		return s.reference.Clear()
	}
	return s.reference.Set(*id)
}

func (s *EvaluationStore) Forget() error {
	return s.reference.Clear()
}

// Record writes a durable record to the ledger. Ledger failures are logged and
// do not affect the session.
func (s *EvaluationStore) Record(ctx context.Context, record domain.EvaluationRecord) {
	if s.ledger == nil || record.ID == nil || *record.ID <= 0 {
		return
	}
	summary := record.Metadata
	summary.ID = *record.ID
	if err := s.ledger.Record(ctx, summary); err != nil {
		s.logger.Warn("ledger_record_failed", "evaluation_id", summary.ID, "error", err)
	}
}
