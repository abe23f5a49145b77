package domain

import "time"

type DocumentType string

const (
	DocumentSustainabilityReport DocumentType = "sustainability_report"
	DocumentTargets              DocumentType = "targets_document"
	DocumentSecondPartyOpinion   DocumentType = "second_party_opinion"
	DocumentTransitionPlan       DocumentType = "transition_plan"
	DocumentVerificationReport   DocumentType = "verification_report"
	DocumentOther                DocumentType = "other"
)

var documentTypes = []DocumentType{
	DocumentSustainabilityReport,
	DocumentTargets,
	DocumentSecondPartyOpinion,
	DocumentTransitionPlan,
	DocumentVerificationReport,
	DocumentOther,
}

func DocumentTypes() []DocumentType {
	out := make([]DocumentType, len(documentTypes))
	copy(out, documentTypes)
	return out
}

func (t DocumentType) Valid() bool {
	for _, known := range documentTypes {
		if t == known {
			return true
		}
	}
	return false
}

type StagedStatus string

const (
	StagedUploading  StagedStatus = "uploading"
	StagedProcessing StagedStatus = "processing"
	StagedReady      StagedStatus = "ready"
	StagedError      StagedStatus = "error"
)

// StagedDocument is an evidence file in the session's working set. LocalID is
// assigned before the server knows about the file; ServerID only after the
// upload completes.
type StagedDocument struct {
	LocalID      string       `json:"local_id"`
	Filename     string       `json:"filename"`
	DocumentType DocumentType `json:"document_type"`
	IsPrimary    bool         `json:"is_primary"`
	ServerID     *int64       `json:"server_id,omitempty"`
	Status       StagedStatus `json:"status"`
	Error        string       `json:"error,omitempty"`
	StagedAt     time.Time    `json:"staged_at"`
}

// Submittable reports whether the document may be part of an evaluation.
func (d StagedDocument) Submittable() bool {
	return d.Status == StagedReady && d.ServerID != nil
}

// UploadedDocument is what the upload collaborator returns.
type UploadedDocument struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// ReadyDocuments filters docs down to the ones an evaluation may include,
// keeping their staging order.
func ReadyDocuments(docs []StagedDocument) []StagedDocument {
	out := make([]StagedDocument, 0, len(docs))
	for _, d := range docs {
		if d.Submittable() {
			out = append(out, d)
		}
	}
	return out
}
