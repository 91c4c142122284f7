package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/labreports/constants"
)

func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.PDF, Language: e.cfg.TesseractLang}

	pages, err := pdfPageCount(path)
	if err != nil {
		e.logger.Warn("pdf page count failed", "path", path, "error", err)
		res.Warnings = append(res.Warnings, err.Error())
	}

	if e.cfg.PDFTextFirst {
		txt, n, warns, err := e.pdfToText(ctx, path)
		res.Warnings = append(res.Warnings, warns...)
		if err == nil && strings.TrimSpace(txt) != "" {
			res.Text, res.Pages, res.Method = txt, n, "pdf-text"
			res.Confidence = heuristicConfidence(txt)
			return res, nil
		}
		e.logger.Debug("pdf text layer empty, rasterizing", "path", path)
	}

	txt, n, warns, err := e.pdfToOCR(ctx, path, pages)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, err
	}
	res.Text, res.Pages, res.Method = txt, n, "pdf-ocr"
	res.Confidence = heuristicConfidence(txt)
	return res, nil
}

func pdfPageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()
	n, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return n, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, _, err := e.runner.Run(ctx, e.cfg.Pdftotext, e.logger, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{err.Error()}, err
	}
	if strings.TrimSpace(string(out)) == "" {
		return "", 0, nil, nil
	}
	// pdftotext separates pages with \f; rewrite to the page markers used for OCR output
	parts := strings.Split(strings.TrimRight(string(out), "\f"), "\f")
	var b strings.Builder
	for i, p := range parts {
		b.WriteString(pageMarker(i + 1))
		b.WriteString(p)
	}
	return b.String(), len(parts), nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string, knownPages int) (text string, pages int, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "lr-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", dir, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png [-l N] <in.pdf> <tmp/page>
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 && (knownPages == 0 || knownPages > e.cfg.MaxPages) {
		args = append(args, "-f", "1", "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	args = append(args, path, prefix)
	if _, _, err := e.runner.Run(ctx, e.cfg.Pdftoppm, e.logger, args...); err != nil {
		return "", 0, []string{err.Error()}, fmt.Errorf("pdftoppm: %w", err)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sortPageImages(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	for i, img := range matches {
		if err := ctx.Err(); err != nil {
			return "", 0, warns, err
		}
		txt, err := e.engine.Recognize(ctx, img)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", i+1, err))
			continue
		}
		b.WriteString(pageMarker(i + 1))
		b.WriteString(txt)
	}
	if len(warns) == len(matches) {
		return "", len(matches), warns, fmt.Errorf("ocr failed on every page")
	}
	return b.String(), len(matches), warns, nil
}

// sortPageImages orders page-N.png files by page number.
func sortPageImages(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		i := strings.LastIndex(base, "-")
		n, err := strconv.Atoi(base[i+1:])
		if err != nil {
			return 0
		}
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}
