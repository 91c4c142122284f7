package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/labreports/constants"
	"github.com/joseph-ayodele/labreports/internal/common"
	"github.com/joseph-ayodele/labreports/internal/labs"
	"github.com/joseph-ayodele/labreports/internal/repository"
)

// Processor coordinates OCR (text extract) then record parsing.
type Processor struct {
	Logger  *slog.Logger
	OCR     *OCRStage
	Parse   *ParseStage
	Reports repository.ReportRepository
	// TempDir holds uploaded bytes while OCR runs; "" uses os.TempDir.
	TempDir string
}

// Result is the outcome of one processed document.
type Result struct {
	ReportID     uuid.UUID
	Records      []labs.Record
	Deduplicated bool // served from a previously parsed report with the same content
}

func NewProcessor(logger *slog.Logger, ocr *OCRStage, parse *ParseStage, reports repository.ReportRepository) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, OCR: ocr, Parse: parse, Reports: reports}
}

// ProcessDocument runs the pipeline over uploaded bytes. name supplies the
// extension that selects PDF or image handling.
func (p *Processor) ProcessDocument(ctx context.Context, name string, content []byte) (Result, error) {
	if constants.MapExtToFormat(filepath.Ext(name)) == "" {
		return Result{}, common.NewAppError("UNSUPPORTED", common.MsgUnsupportedFile, common.ErrUnsupported)
	}
	hash := contentHash(content)
	if res, found, err := p.lookupParsed(ctx, hash); found {
		return res, err
	}

	f, err := os.CreateTemp(p.TempDir, "upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return Result{}, common.WrapError(err, "create temp file")
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(content); err != nil {
		f.Close()
		return Result{}, common.WrapError(err, "write temp file")
	}
	if err := f.Close(); err != nil {
		return Result{}, common.WrapError(err, "close temp file")
	}

	return p.run(ctx, Source{Name: filepath.Base(name), Path: f.Name(), Hash: hash})
}

// ProcessFile runs the pipeline over a document already on disk.
func (p *Processor) ProcessFile(ctx context.Context, path string) (Result, error) {
	if constants.MapExtToFormat(filepath.Ext(path)) == "" {
		return Result{}, common.NewAppError("UNSUPPORTED", common.MsgUnsupportedFile, common.ErrUnsupported)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, common.WrapError(err, "read file")
	}
	hash := contentHash(content)
	if res, found, err := p.lookupParsed(ctx, hash); found {
		return res, err
	}
	return p.run(ctx, Source{Name: filepath.Base(path), Path: path, Hash: hash})
}

// ProcessText parses already-extracted text and records it as a TEXT report.
func (p *Processor) ProcessText(ctx context.Context, name, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, common.NewAppError("NO_TEXT", common.MsgNoText, common.ErrNoText)
	}
	if name == "" {
		name = "text"
	}
	rep, err := p.Reports.Start(ctx, name, constants.TEXT, contentHash([]byte(text)))
	if err != nil {
		return Result{}, err
	}
	out := repository.OCROutcome{OCRText: text, Pages: 1, Method: "text", Confidence: 1}
	if err := p.Reports.FinishOCR(ctx, rep.ID, out); err != nil {
		p.Logger.Error("processor.text.store_failed", "report_id", rep.ID, "err", err)
		if ferr := p.Reports.Fail(ctx, rep.ID, err.Error()); ferr != nil {
			p.Logger.Error("processor.text.mark_failed", "report_id", rep.ID, "err", ferr)
		}
		return Result{ReportID: rep.ID}, err
	}
	records, err := p.Parse.Run(ctx, rep.ID, text)
	if err != nil {
		p.Logger.Error("processor.parse.failed", "report_id", rep.ID, "err", err)
		return Result{ReportID: rep.ID, Records: records}, err
	}
	p.Logger.Info("processor.parse.ok", "report_id", rep.ID, "records", len(records))
	return Result{ReportID: rep.ID, Records: records}, nil
}

func (p *Processor) run(ctx context.Context, src Source) (Result, error) {
	// 1) OCR stage → creates report row + stores ocr_text + confidence
	rep, ocrRes, err := p.OCR.Run(ctx, src)
	if err != nil {
		p.Logger.Error("processor.ocr.failed", "source", src.Name, "err", err)
		if rep != nil {
			return Result{ReportID: rep.ID}, err
		}
		return Result{}, err
	}
	p.Logger.Info("processor.ocr.ok",
		"source", src.Name,
		"report_id", rep.ID,
		"method", ocrRes.Method,
		"pages", ocrRes.Pages,
		"confidence", ocrRes.Confidence,
		"duration", ocrRes.Duration,
	)

	// 2) Parse stage → matches lines against the reference table and stores the records.
	records, err := p.Parse.Run(ctx, rep.ID, ocrRes.Text)
	if err != nil {
		p.Logger.Error("processor.parse.failed", "report_id", rep.ID, "err", err)
		return Result{ReportID: rep.ID, Records: records}, err
	}
	p.Logger.Info("processor.parse.ok", "report_id", rep.ID, "records", len(records))
	return Result{ReportID: rep.ID, Records: records}, nil
}

// lookupParsed finds a parsed report for the same content and re-parses its
// stored OCR text, so OCR is skipped but the current reference table and
// empty-result policy still apply.
func (p *Processor) lookupParsed(ctx context.Context, hash string) (Result, bool, error) {
	rep, err := p.Reports.GetByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			p.Logger.Warn("processor.dedup.lookup_failed", "hash", hash, "err", err)
		}
		return Result{}, false, nil
	}
	records, err := p.Parse.Evaluate(rep.OCRText)
	p.Logger.Info("processor.dedup.hit", "report_id", rep.ID, "hash", hash, "records", len(records), "stored_records", rep.RecordCount)
	return Result{ReportID: rep.ID, Records: records, Deduplicated: true}, true, err
}

func contentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Envelope is the response shape shared by the HTTP and CLI surfaces.
type Envelope struct {
	Success  bool          `json:"success"`
	Data     []labs.Record `json:"data"`
	Error    string        `json:"error,omitempty"`
	ReportID string        `json:"report_id,omitempty"`
}

// NewEnvelope renders a processing outcome. A failure carries no data.
func NewEnvelope(res Result, err error) Envelope {
	env := Envelope{}
	if res.ReportID != uuid.Nil {
		env.ReportID = res.ReportID.String()
	}
	if err != nil {
		env.Error = common.UserMessage(err)
		return env
	}
	env.Success = true
	env.Data = res.Records
	if env.Data == nil {
		env.Data = []labs.Record{}
	}
	return env
}

// MarshalJSON drops the data field from failed envelopes.
func (e Envelope) MarshalJSON() ([]byte, error) {
	type plain Envelope
	if e.Success {
		return json.Marshal(plain(e))
	}
	return json.Marshal(struct {
		plain
		Data []labs.Record `json:"data,omitempty"`
	}{plain: plain(e)})
}

// String is a short human summary used in CLI output.
func (e Envelope) String() string {
	if !e.Success {
		return fmt.Sprintf("failed: %s", e.Error)
	}
	s := labs.Summarize(e.Data)
	return fmt.Sprintf("%d records (%d normal, %d needs attention, %d unknown)", s.Total, s.Normal, s.NeedsAttention, s.Unknown)
}
