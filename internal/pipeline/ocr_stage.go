package processor

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/labreports/constants"
	"github.com/joseph-ayodele/labreports/internal/common"
	"github.com/joseph-ayodele/labreports/internal/entity"
	"github.com/joseph-ayodele/labreports/internal/ocr"
	"github.com/joseph-ayodele/labreports/internal/repository"
)

// TextExtractor turns a document on disk into page-marked text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

// Source describes a document handed to the pipeline.
type Source struct {
	Name string // display name, usually the uploaded file name
	Path string // file on disk that OCR reads
	Hash string // hex SHA-256 of the content
}

type OCRStage struct {
	ReportsRepo   repository.ReportRepository
	TextExtractor TextExtractor
	Logger        *slog.Logger
}

func NewOCRStage(reports repository.ReportRepository, tx TextExtractor, logger *slog.Logger) *OCRStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRStage{ReportsRepo: reports, TextExtractor: tx, Logger: logger}
}

// Run starts a report row, runs OCR, and persists the OCR text.
// The row is marked FAILED when OCR errors or yields no text.
func (s *OCRStage) Run(ctx context.Context, src Source) (*entity.LabReport, ocr.ExtractionResult, error) {
	format := constants.MapExtToFormat(filepath.Ext(src.Name))
	if format == "" {
		return nil, ocr.ExtractionResult{}, common.NewAppError("UNSUPPORTED", common.MsgUnsupportedFile, common.ErrUnsupported)
	}

	rep, err := s.ReportsRepo.Start(ctx, src.Name, format, src.Hash)
	if err != nil {
		return nil, ocr.ExtractionResult{}, err
	}

	res, err := s.TextExtractor.Extract(ctx, src.Path)
	if err != nil {
		s.fail(ctx, rep, err.Error())
		return rep, res, common.NewAppError("OCR_FAILED", err.Error(), err)
	}
	if ocr.IsBlank(res.Text) {
		s.fail(ctx, rep, common.MsgNoText)
		return rep, res, common.NewAppError("NO_TEXT", common.MsgNoText, common.ErrNoText)
	}

	// Only image OCR carries a meaningful confidence.
	needsReview := false
	if format == constants.IMAGE && res.Confidence > 0 && res.Confidence < ocr.ImageConfidenceThreshold {
		s.Logger.Warn("image ocr confidence low; needs review", "report_id", rep.ID, "conf", res.Confidence)
		needsReview = true
	}

	out := repository.OCROutcome{
		OCRText:     res.Text,
		Pages:       res.Pages,
		Method:      res.Method,
		Confidence:  res.Confidence,
		NeedsReview: needsReview,
	}
	if err := s.ReportsRepo.FinishOCR(ctx, rep.ID, out); err != nil {
		return rep, res, err
	}
	rep.Status = constants.JobStatusOCROK
	rep.OCRText = res.Text
	rep.Pages = res.Pages
	rep.Method = res.Method
	rep.Confidence = res.Confidence
	rep.NeedsReview = needsReview
	return rep, res, nil
}

func (s *OCRStage) fail(ctx context.Context, rep *entity.LabReport, msg string) {
	if err := s.ReportsRepo.Fail(ctx, rep.ID, msg); err != nil {
		s.Logger.Error("processor.ocr.mark_failed", "report_id", rep.ID, "err", err)
	}
	rep.Status = constants.JobStatusFailed
	rep.ErrorMessage = msg
}
