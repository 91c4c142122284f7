package ocr

import (
	"context"

	"github.com/joseph-ayodele/labreports/constants"
)

// ImageConfidenceThreshold below which image OCR results are flagged for review.
const ImageConfidenceThreshold = 0.6

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.IMAGE, Language: e.cfg.TesseractLang}
	txt, err := e.engine.Recognize(ctx, path)
	if err != nil {
		res.Warnings = append(res.Warnings, err.Error())
		return res, err
	}
	res.Text = pageMarker(1) + txt
	res.Pages = 1
	res.Method = "image-ocr"
	res.Confidence = heuristicConfidence(txt)
	return res, nil
}
