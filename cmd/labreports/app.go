package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/labreports/internal/common"
	"github.com/joseph-ayodele/labreports/internal/export"
	"github.com/joseph-ayodele/labreports/internal/labs"
	"github.com/joseph-ayodele/labreports/internal/ocr"
	processor "github.com/joseph-ayodele/labreports/internal/pipeline"
	"github.com/joseph-ayodele/labreports/internal/repository"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg       *common.Config
	logger    *slog.Logger
	db        *repository.DB
	reports   repository.ReportRepository
	processor *processor.Processor
	exporter  *export.Service
}

// openApp connects the database (migrating when configured) and wires the pipeline.
func openApp(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*app, error) {
	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	table := labs.DefaultTable()
	if cfg.Extract.ReferenceTable != "" {
		table, err = labs.LoadTable(cfg.Extract.ReferenceTable)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("load reference table: %w", err)
		}
		logger.Info("loaded reference table", "path", cfg.Extract.ReferenceTable, "parameters", table.Len())
	}

	ocrCfg := ocrConfig(cfg.OCR)
	if missing := ocr.MissingTools(ocrCfg); len(missing) > 0 {
		logger.Warn("ocr tools not found on PATH; document extraction will fail", "missing", missing)
	}

	reports := repository.NewReportRepository(db, logger)
	extractor := ocr.NewExtractor(ocrCfg, logger)
	proc := processor.NewProcessor(logger,
		processor.NewOCRStage(reports, extractor, logger),
		processor.NewParseStage(logger, processor.Config{FailOnEmpty: cfg.Extract.FailOnEmpty}, reports, labs.NewExtractor(table)),
		reports,
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		reports:   reports,
		processor: proc,
		exporter:  export.NewService(reports, logger),
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}

func ocrConfig(c common.OCRConfig) ocr.Config {
	return ocr.Config{
		Pdftotext:     "pdftotext",
		Pdftoppm:      "pdftoppm",
		Tesseract:     "tesseract",
		TesseractLang: c.Language,
		DPI:           c.DPI,
		MaxPages:      c.MaxPages,
		TessdataDir:   c.TessdataDir,
		PDFTextFirst:  c.PDFTextFirst,
		PSM:           c.PSM,
		Engine:        c.Engine,
	}
}
