package server

import (
	"encoding/json"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/labreports/internal/entity"
	"github.com/joseph-ayodele/labreports/internal/labs"
)

// reportView is the JSON shape of a report on both transports.
type reportView struct {
	ID            string        `json:"id"`
	SourceName    string        `json:"source_name"`
	SourceType    string        `json:"source_type"`
	Status        string        `json:"status"`
	Error         string        `json:"error,omitempty"`
	Pages         int           `json:"pages"`
	Method        string        `json:"method,omitempty"`
	Confidence    float32       `json:"confidence"`
	NeedsReview   bool          `json:"needs_review"`
	RecordCount   int           `json:"record_count"`
	AbnormalCount int           `json:"abnormal_count"`
	CreatedAt     string        `json:"created_at"`
	FinishedAt    string        `json:"finished_at,omitempty"`
	Summary       *labs.Summary `json:"summary,omitempty"`
	Records       []labs.Record `json:"records,omitempty"`
	OCRText       string        `json:"ocr_text,omitempty"`
}

// toView renders rep; detail adds records, summary and OCR text.
func toView(rep *entity.LabReport, detail bool) reportView {
	v := reportView{
		ID:            rep.ID.String(),
		SourceName:    rep.SourceName,
		SourceType:    rep.SourceType,
		Status:        string(rep.Status),
		Error:         rep.ErrorMessage,
		Pages:         rep.Pages,
		Method:        rep.Method,
		Confidence:    rep.Confidence,
		NeedsReview:   rep.NeedsReview,
		RecordCount:   rep.RecordCount,
		AbnormalCount: rep.AbnormalCount,
		CreatedAt:     rep.CreatedAt.Format(time.RFC3339Nano),
	}
	if rep.FinishedAt != nil {
		v.FinishedAt = rep.FinishedAt.Format(time.RFC3339Nano)
	}
	if detail {
		sum := rep.Summary()
		v.Summary = &sum
		v.Records = rep.Records
		v.OCRText = rep.OCRText
	}
	return v
}

// toStruct converts any JSON-encodable object into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromStruct decodes a protobuf Struct into v through its JSON form.
func FromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
