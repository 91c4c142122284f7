package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/labreports/constants"
	"github.com/joseph-ayodele/labreports/internal/common"
	"github.com/joseph-ayodele/labreports/internal/entity"
	"github.com/joseph-ayodele/labreports/internal/labs"
	processor "github.com/joseph-ayodele/labreports/internal/pipeline"
)

// stubProcessor parses text with the default table and treats document
// bytes as already-extracted text.
type stubProcessor struct {
	ex       *labs.Extractor
	lastName string
	err      error
}

func newStubProcessor() *stubProcessor {
	return &stubProcessor{ex: labs.NewExtractor(labs.DefaultTable())}
}

func (s *stubProcessor) ProcessDocument(_ context.Context, name string, content []byte) (processor.Result, error) {
	s.lastName = name
	if s.err != nil {
		return processor.Result{}, s.err
	}
	if constants.MapExtToFormat(filepath.Ext(name)) == "" {
		return processor.Result{}, common.NewAppError("UNSUPPORTED", common.MsgUnsupportedFile, common.ErrUnsupported)
	}
	return processor.Result{ReportID: uuid.New(), Records: s.ex.Extract(string(content))}, nil
}

func (s *stubProcessor) ProcessText(_ context.Context, _ string, text string) (processor.Result, error) {
	if s.err != nil {
		return processor.Result{}, s.err
	}
	if text == "" {
		return processor.Result{}, common.NewAppError("NO_TEXT", common.MsgNoText, common.ErrNoText)
	}
	return processor.Result{ReportID: uuid.New(), Records: s.ex.Extract(text)}, nil
}

type memReports struct {
	byID map[uuid.UUID]*entity.LabReport
	err  error
}

func newMemReports(reps ...*entity.LabReport) *memReports {
	m := &memReports{byID: map[uuid.UUID]*entity.LabReport{}}
	for _, r := range reps {
		m.byID[r.ID] = r
	}
	return m
}

func (m *memReports) GetByID(_ context.Context, id uuid.UUID) (*entity.LabReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	if r, ok := m.byID[id]; ok {
		return r, nil
	}
	return nil, common.NewAppError("NOT_FOUND", "report not found", common.ErrNotFound)
}

func (m *memReports) List(_ context.Context, limit int) ([]*entity.LabReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*entity.LabReport, 0, len(m.byID))
	for _, r := range m.byID {
		if len(out) == limit {
			break
		}
		out = append(out, r)
	}
	return out, nil
}

type stubExporter struct{}

func (stubExporter) ExportReportXLSX(_ context.Context, id uuid.UUID) ([]byte, error) {
	if id == uuid.Nil {
		return nil, errors.New("nil id")
	}
	return []byte("PK-report"), nil
}

func (stubExporter) ExportReportsXLSX(context.Context, int) ([]byte, error) {
	return []byte("PK-list"), nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func sampleReport() *entity.LabReport {
	records := labs.NewExtractor(labs.DefaultTable()).Extract("HDL: 35 mg/dL\nTriglycerides 120 mg/dL")
	done := time.Date(2025, 2, 1, 10, 0, 1, 0, time.UTC)
	return &entity.LabReport{
		ID:            uuid.New(),
		SourceName:    "lipid.pdf",
		SourceType:    constants.PDF,
		Status:        constants.JobStatusParsed,
		Pages:         1,
		Method:        "pdf-ocr",
		OCRText:       "HDL: 35 mg/dL\nTriglycerides 120 mg/dL",
		Records:       records,
		RecordCount:   2,
		AbnormalCount: 1,
		CreatedAt:     time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt:    &done,
	}
}
