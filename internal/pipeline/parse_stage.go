package processor

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/labreports/internal/common"
	"github.com/joseph-ayodele/labreports/internal/labs"
	"github.com/joseph-ayodele/labreports/internal/repository"
)

// Config holds behavior flags for the parse stage.
type Config struct {
	// FailOnEmpty marks documents with no recognized lines as FAILED.
	FailOnEmpty bool
}

type ParseStage struct {
	Logger      *slog.Logger
	Cfg         Config
	ReportsRepo repository.ReportRepository
	Extractor   *labs.Extractor
}

func NewParseStage(logger *slog.Logger, cfg Config, reports repository.ReportRepository, ex *labs.Extractor) *ParseStage {
	if logger == nil {
		logger = slog.Default()
	}
	if ex == nil {
		ex = labs.NewExtractor(labs.DefaultTable())
	}
	return &ParseStage{Logger: logger, Cfg: cfg, ReportsRepo: reports, Extractor: ex}
}

// Run extracts records from text and stores them on the report.
func (s *ParseStage) Run(ctx context.Context, reportID uuid.UUID, text string) ([]labs.Record, error) {
	records, err := s.Evaluate(text)
	if err != nil {
		if ferr := s.ReportsRepo.Fail(ctx, reportID, common.MsgNoRecords); ferr != nil {
			s.Logger.Error("processor.parse.mark_failed", "report_id", reportID, "err", ferr)
		}
		return records, err
	}
	if err := s.ReportsRepo.FinishParse(ctx, reportID, records); err != nil {
		return records, err
	}
	return records, nil
}

// Evaluate extracts records with the current table and applies the empty-result
// policy. Nothing is persisted.
func (s *ParseStage) Evaluate(text string) ([]labs.Record, error) {
	records := s.Extractor.Extract(text)
	if len(records) == 0 && s.Cfg.FailOnEmpty {
		return records, common.NewAppError("NO_RECORDS", common.MsgNoRecords, common.ErrNoRecords)
	}
	return records, nil
}
