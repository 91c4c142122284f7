package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/labreports/constants"
)

// ErrUnsupportedFormat is returned for files that are neither PDF nor a supported image.
var ErrUnsupportedFormat = errors.New("unsupported file type")

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir string
	// PDFTextFirst tries the embedded text layer before rasterizing.
	PDFTextFirst bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	// Engine selects the recognizer: "tesseract" (CLI, default) or "gosseract"
	// when the binary is built with the gosseract tag.
	Engine string
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

type Extractor struct {
	cfg    Config
	runner Runner
	engine Engine
	logger *slog.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithRunner replaces the command runner (tests stub external binaries with it).
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithEngine replaces the image recognizer.
func WithEngine(en Engine) Option {
	return func(e *Extractor) {
		if en != nil {
			e.engine = en
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Engine == "" {
		cfg.Engine = EngineTesseract
	}
	e := &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	if e.engine == nil {
		en, err := newEngine(cfg, e.runner, logger)
		if err != nil {
			logger.Warn("ocr engine unavailable, falling back to tesseract cli", "engine", cfg.Engine, "error", err)
			en = &cliEngine{cfg: cfg, runner: e.runner, logger: logger}
		}
		e.engine = en
	}
	return e
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "path", path, "engine", e.engine.Name(), "ext", ext)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err := e.extractPDF(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	case constants.IMAGE:
		res, err := e.extractImage(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	default:
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// pageMarker separates pages in the concatenated text blob.
func pageMarker(n int) string {
	return fmt.Sprintf("\n--- Page %d ---\n", n)
}

var rePageMarker = regexp.MustCompile(`(?m)^--- Page \d+ ---$`)

// IsBlank reports whether text holds nothing but whitespace and page markers.
func IsBlank(text string) bool {
	return strings.TrimSpace(rePageMarker.ReplaceAllString(text, "")) == ""
}
