package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/labreports/constants"
	"github.com/joseph-ayodele/labreports/internal/labs"
)

// LabReport is one processed document for data transfer between layers.
type LabReport struct {
	ID            uuid.UUID           `json:"id"`
	SourceName    string              `json:"source_name"`
	SourceType    string              `json:"source_type"`
	ContentHash   string              `json:"content_hash,omitempty"`
	Pages         int                 `json:"pages"`
	Method        string              `json:"method,omitempty"`
	Confidence    float32             `json:"confidence"`
	NeedsReview   bool                `json:"needs_review"`
	Status        constants.JobStatus `json:"status"`
	ErrorMessage  string              `json:"error_message,omitempty"`
	OCRText       string              `json:"ocr_text,omitempty"`
	Records       []labs.Record       `json:"records"`
	RecordCount   int                 `json:"record_count"`
	AbnormalCount int                 `json:"abnormal_count"`
	CreatedAt     time.Time           `json:"created_at"`
	FinishedAt    *time.Time          `json:"finished_at,omitempty"`
}

// Summary tallies the report's records by status.
func (r *LabReport) Summary() labs.Summary {
	return labs.Summarize(r.Records)
}
