package ocr

import (
	"regexp"
	"strings"
)

var (
	reUnit    = regexp.MustCompile(`(?i)\b(g/dl|mg/dl|mmol/l|cells/mcl|/mcl|iu/l|u/l|%)`)
	reNumeric = regexp.MustCompile(`\b\d+(\.\d+)?\b`)
	reLabWord = regexp.MustCompile(`(?i)\b(hemoglobin|glucose|cholesterol|platelet|creatinine|wbc|rbc|hdl|ldl|triglycerides|reference|range|result)\b`)
)

// heuristicConfidence scores how much decoded text looks like a lab report, 0..1.
func heuristicConfidence(txt string) float32 {
	score := float32(0.2) // base
	if reUnit.MatchString(txt) {
		score += 0.25
	}
	if len(reNumeric.FindAllStringIndex(txt, 3)) >= 3 {
		score += 0.15
	}
	if reLabWord.MatchString(txt) {
		score += 0.25
	}
	if len(strings.TrimSpace(txt)) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
