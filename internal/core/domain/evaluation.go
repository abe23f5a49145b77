package domain

import (
	"encoding/json"
	"time"
)

// SubmittedDocument is the projection of a ready StagedDocument sent to the
// scoring service.
type SubmittedDocument struct {
	DocumentID   int64        `json:"document_id"`
	DocumentType DocumentType `json:"document_type"`
	IsPrimary    bool         `json:"is_primary"`
}

// EvaluationSubmission is built at submit time from a TargetInput snapshot
// and the ready documents.
type EvaluationSubmission struct {
	CompanyName      string              `json:"company_name"`
	IndustrySector   string              `json:"industry_sector"`
	CountryCode      string              `json:"country_code"`
	NACECode         string              `json:"nace_code"`
	LoanType         string              `json:"loan_type,omitempty"`
	EmissionsScope   EmissionsScope      `json:"emissions_scope,omitempty"`
	BaselineValue    float64             `json:"baseline_value"`
	TargetValue      float64             `json:"target_value"`
	BaselineYear     int                 `json:"baseline_year,omitempty"`
	TimelineEndYear  int                 `json:"timeline_end_year"`
	ReductionPercent float64             `json:"target_reduction_percent"`
	Documents        []SubmittedDocument `json:"documents"`
}

// EvaluationResult is the scored assessment. Its internals belong to the view
// layer; the workflow only moves it around.
type EvaluationResult json.RawMessage

func (r EvaluationResult) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return []byte(r), nil
}

func (r *EvaluationResult) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

// SubmitResponse is what the scoring service answers to an evaluation.
type SubmitResponse struct {
	Result             EvaluationResult `json:"result"`
	EvaluationID       *int64           `json:"evaluation_id,omitempty"`
	PersistenceWarning string           `json:"persistence_warning,omitempty"`
}

// EvaluationSummary is the read-only projection used for history listing.
type EvaluationSummary struct {
	ID          int64     `json:"id"`
	CompanyName string    `json:"company_name"`
	Grade       string    `json:"grade,omitempty"`
	Decision    string    `json:"decision,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// EvaluationRecord is a computed assessment as held by the client. ID is nil
// when the store could not persist it.
type EvaluationRecord struct {
	ID       *int64            `json:"id,omitempty"`
	Result   EvaluationResult  `json:"result"`
	Metadata EvaluationSummary `json:"metadata"`
}

// SubmissionOutcome is the result of a successful submission.
type SubmissionOutcome struct {
	Record             EvaluationRecord `json:"record"`
	PersistenceWarning string           `json:"persistence_warning,omitempty"`
}

// Durable reports whether the outcome carries a persisted identifier.
func (o SubmissionOutcome) Durable() bool {
	return o.Record.ID != nil && *o.Record.ID > 0
}

// Artifact is a rendered export ready to be saved by the user.
type Artifact struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
	FromID      bool   `json:"from_id"`
	PageCount   int    `json:"page_count,omitempty"`
}
