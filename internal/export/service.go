package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/labreports/internal/entity"
	"github.com/joseph-ayodele/labreports/internal/labs"
	"github.com/joseph-ayodele/labreports/internal/repository"
)

const (
	resultsSheet = "Results"
	reportSheet  = "Report"
	reportsSheet = "Reports"
)

// ReportReader is the read side of the report store used for exports.
type ReportReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.LabReport, error)
	List(ctx context.Context, limit int) ([]*entity.LabReport, error)
}

var _ ReportReader = repository.ReportRepository(nil)

// Service produces XLSX bytes for exports.
type Service struct {
	reports ReportReader
	logger  *slog.Logger
}

func NewService(reports ReportReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reports: reports, logger: logger}
}

// ExportReportXLSX returns a workbook with one row per record of the report,
// plus a sheet describing the source document.
func (s *Service) ExportReportXLSX(ctx context.Context, id uuid.UUID) ([]byte, error) {
	start := time.Now()
	rep, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, err
	}

	headers := []string{"Parameter", "Value", "Unit", "Reference Range", "Status"}
	if err := writeHeader(f, resultsSheet, headers); err != nil {
		return nil, err
	}
	flag, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "9C0006"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFC7CE"}},
	})
	if err != nil {
		return nil, err
	}

	for i, r := range rep.Records {
		row := i + 2
		writeRow(f, resultsSheet, row, r.Parameter, r.Value, r.Unit, r.Range, string(r.Status))
		if r.Status == labs.StatusNeedsAttention {
			from, _ := excelize.CoordinatesToCellName(1, row)
			to, _ := excelize.CoordinatesToCellName(len(headers), row)
			_ = f.SetCellStyle(resultsSheet, from, to, flag)
		}
	}
	_ = f.SetColWidth(resultsSheet, "A", "A", 22)
	_ = f.SetColWidth(resultsSheet, "B", "C", 14)
	_ = f.SetColWidth(resultsSheet, "D", "D", 28)
	_ = f.SetColWidth(resultsSheet, "E", "E", 18)

	if _, err := f.NewSheet(reportSheet); err != nil {
		return nil, err
	}
	sum := rep.Summary()
	meta := [][2]any{
		{"Report ID", rep.ID.String()},
		{"Source", rep.SourceName},
		{"Source Type", rep.SourceType},
		{"Status", string(rep.Status)},
		{"Pages", rep.Pages},
		{"OCR Method", rep.Method},
		{"OCR Confidence", rep.Confidence},
		{"Needs Review", rep.NeedsReview},
		{"Created", rep.CreatedAt.Format(time.RFC3339)},
		{"Records", sum.Total},
		{"Normal", sum.Normal},
		{"Needs Attention", sum.NeedsAttention},
		{"Unknown", sum.Unknown},
	}
	for i, kv := range meta {
		writeRow(f, reportSheet, i+1, kv[0], kv[1])
	}
	_ = f.SetColWidth(reportSheet, "A", "A", 18)
	_ = f.SetColWidth(reportSheet, "B", "B", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"report_id", rep.ID.String(),
		"rows", len(rep.Records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ExportReportsXLSX returns a workbook listing the most recent reports.
func (s *Service) ExportReportsXLSX(ctx context.Context, limit int) ([]byte, error) {
	reps, err := s.reports.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", reportsSheet); err != nil {
		return nil, err
	}
	headers := []string{"Report ID", "Created", "Source", "Type", "Status", "Records", "Needs Attention", "Error"}
	if err := writeHeader(f, reportsSheet, headers); err != nil {
		return nil, err
	}
	for i, r := range reps {
		writeRow(f, reportsSheet, i+2,
			r.ID.String(), r.CreatedAt.Format("2006-01-02 15:04:05"), r.SourceName, r.SourceType,
			string(r.Status), r.RecordCount, r.AbnormalCount, truncate(r.ErrorMessage, 140))
	}
	_ = f.SetColWidth(reportsSheet, "A", "A", 38)
	_ = f.SetColWidth(reportsSheet, "B", "C", 22)
	_ = f.SetColWidth(reportsSheet, "H", "H", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok", "reports", len(reps))
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	return f.SetCellStyle(sheet, "A1", last, bold)
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
