package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
	"github.com/kirillkom/kpi-benchmark/internal/core/ports"
)

const defaultPersistenceWarning = "The assessment could not be saved. Export will recompute it from the current inputs."

// EvaluationSubmitter turns a validated TargetInput plus ready documents into
// one evaluation request. It never retries on its own.
type EvaluationSubmitter struct {
	validator *TargetValidator
	service   ports.EvaluationService
	logger    *slog.Logger
	now       func() time.Time
}

func NewEvaluationSubmitter(validator *TargetValidator, service ports.EvaluationService, logger *slog.Logger) *EvaluationSubmitter {
	if logger == nil {
		logger = discardLogger()
	}
	return &EvaluationSubmitter{
		validator: validator,
		service:   service,
		logger:    logger,
		now:       time.Now,
	}
}

// Prepare checks the submission preconditions and builds the payload. It
// fails with ErrMissingRequirements without contacting any collaborator.
func (s *EvaluationSubmitter) Prepare(input domain.TargetInput, docs []domain.StagedDocument) (domain.EvaluationSubmission, error) {
	if err := s.validator.Validate(input); err != nil {
		return domain.EvaluationSubmission{}, domain.WrapError(domain.ErrMissingRequirements, "prepare evaluation", err)
	}
	ready := domain.ReadyDocuments(docs)
	if len(ready) == 0 {
		return domain.EvaluationSubmission{}, domain.WrapError(domain.ErrMissingRequirements, "prepare evaluation", errors.New("no ready document"))
	}
	reduction, ok := ReductionPercent(input.BaselineValue, input.TargetValue)
	if !ok {
		return domain.EvaluationSubmission{}, domain.WrapError(domain.ErrMissingRequirements, "prepare evaluation", errors.New("target reduction is undefined"))
	}

	documents := make([]domain.SubmittedDocument, 0, len(ready))
	for _, doc := range ready {
		documents = append(documents, domain.SubmittedDocument{
			DocumentID:   *doc.ServerID,
			DocumentType: doc.DocumentType,
			IsPrimary:    doc.IsPrimary,
		})
	}

	return domain.EvaluationSubmission{
		CompanyName:      strings.TrimSpace(input.CompanyName),
		IndustrySector:   strings.TrimSpace(input.IndustrySector),
		CountryCode:      strings.ToUpper(strings.TrimSpace(input.CountryCode)),
		NACECode:         strings.TrimSpace(input.NACECode),
		LoanType:         strings.TrimSpace(input.LoanType),
		EmissionsScope:   input.EmissionsScope,
		BaselineValue:    *input.BaselineValue,
		TargetValue:      *input.TargetValue,
		BaselineYear:     input.BaselineYear,
		TimelineEndYear:  input.TimelineEndYear,
		ReductionPercent: reduction,
		Documents:        documents,
	}, nil
}

func (s *EvaluationSubmitter) Submit(ctx context.Context, input domain.TargetInput, docs []domain.StagedDocument) (domain.SubmissionOutcome, error) {
	payload, err := s.Prepare(input, docs)
	if err != nil {
		return domain.SubmissionOutcome{}, err
	}
	return s.SubmitPrepared(ctx, payload)
}

// SubmitPrepared sends an already validated payload. A response without an
// evaluation id still succeeds, flagged with a persistence warning.
func (s *EvaluationSubmitter) SubmitPrepared(ctx context.Context, payload domain.EvaluationSubmission) (domain.SubmissionOutcome, error) {
	resp, err := s.service.SubmitEvaluation(ctx, payload)
	if err != nil {
		return domain.SubmissionOutcome{}, domain.WrapError(domain.ErrSubmissionFailed, "submit evaluation", err)
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return domain.SubmissionOutcome{}, domain.WrapError(domain.ErrSubmissionFailed, "submit evaluation", errors.New("scoring service returned an empty result"))
	}

	summary := summarizeResult(resp.Result)
	summary.CompanyName = payload.CompanyName
	summary.CreatedAt = s.now().UTC()

	outcome := domain.SubmissionOutcome{
		Record: domain.EvaluationRecord{
			Result:   resp.Result,
			Metadata: summary,
		},
	}
	// Stores hand out positive ids only; anything else is an unpersisted result.
	if resp.EvaluationID != nil && *resp.EvaluationID > 0 {
		outcome.Record.ID = cloneInt64(resp.EvaluationID)
		outcome.Record.Metadata.ID = *resp.EvaluationID
		return outcome, nil
	}

	outcome.PersistenceWarning = strings.TrimSpace(resp.PersistenceWarning)
	if outcome.PersistenceWarning == "" {
		outcome.PersistenceWarning = defaultPersistenceWarning
	}
	s.logger.Warn("evaluation_not_persisted",
		"company", payload.CompanyName,
		"warning", outcome.PersistenceWarning,
	)
	return outcome, nil
}

// summarizeResult reads the two top-level summary fields used for history
// listings. Everything else in the result stays opaque.
func summarizeResult(result domain.EvaluationResult) domain.EvaluationSummary {
	var top struct {
		Grade    any `json:"grade"`
		Decision any `json:"decision"`
	}
	if err := json.Unmarshal(result, &top); err != nil {
		return domain.EvaluationSummary{}
	}
	return domain.EvaluationSummary{
		Grade:    scalarString(top.Grade),
		Decision: scalarString(top.Decision),
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return ""
	}
}
