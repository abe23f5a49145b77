package domain

type Step string

const (
	StepInput     Step = "input"
	StepDocuments Step = "documents"
	StepResult    Step = "result"
)

type Mode string

const (
	ModeActive  Mode = "active"
	ModeHistory Mode = "history"
)

// WorkflowSession is a point-in-time copy of the workflow state.
type WorkflowSession struct {
	Step               Step                `json:"step"`
	Mode               Mode                `json:"mode"`
	Loading            bool                `json:"loading"`
	Analyzing          bool                `json:"analyzing"`
	EvaluationID       *int64              `json:"evaluation_id,omitempty"`
	Error              string              `json:"error,omitempty"`
	PersistenceWarning string              `json:"persistence_warning,omitempty"`
	Input              TargetInput         `json:"input"`
	ReductionPercent   *float64            `json:"reduction_percent,omitempty"`
	Documents          []StagedDocument    `json:"documents"`
	Record             *EvaluationRecord   `json:"record,omitempty"`
	History            []EvaluationSummary `json:"history,omitempty"`
}

// ExportFallbackPolicy decides what export does when no durable id exists.
type ExportFallbackPolicy string

const (
	// FallbackRenderPayload renders straight from the live payload.
	FallbackRenderPayload ExportFallbackPolicy = "render_payload"
	// FallbackResubmit re-submits once hoping to obtain a durable id before
	// rendering.
	FallbackResubmit ExportFallbackPolicy = "resubmit"
)

func (p ExportFallbackPolicy) Valid() bool {
	return p == FallbackRenderPayload || p == FallbackResubmit
}

// Policy holds the tunable workflow rules.
type Policy struct {
	MinTimelineYearOffset   int
	HistoryLimit            int
	ExportFallback          ExportFallbackPolicy
	VerifyArtifacts         bool
	DocumentPollIntervalMS  int
	DocumentPollMaxAttempts int
}

func DefaultPolicy() Policy {
	return Policy{
		MinTimelineYearOffset:   1,
		HistoryLimit:            20,
		ExportFallback:          FallbackRenderPayload,
		DocumentPollIntervalMS:  2000,
		DocumentPollMaxAttempts: 30,
	}
}
