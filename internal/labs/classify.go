package labs

import (
	"strconv"
	"strings"
	"unicode"
)

// Status is the classification of one record against its reference range.
type Status string

const (
	StatusNormal         Status = "Normal"
	StatusNeedsAttention Status = "Needs Attention"
	StatusUnknown        Status = "Unknown"
)

// NoRange is the range placeholder for records without a reference parameter.
const NoRange = "-"

// Classify computes status and rendered range for a raw value.
// resolved == false means no reference parameter matched the label.
func Classify(param ReferenceParameter, resolved bool, value string) (Status, string) {
	if !resolved {
		return StatusUnknown, NoRange
	}
	rng := param.RangeString()
	v, ok := parseValue(value)
	if !ok {
		return StatusUnknown, rng
	}
	if param.Contains(v) {
		return StatusNormal, rng
	}
	return StatusNeedsAttention, rng
}

// parseValue accepts plain decimal numbers only ("12", "12.5", ".5", "5.").
// Digits from any Unicode script are read by their decimal value.
// OCR noise such as "1.2.3" or "." is reported as not ok.
func parseValue(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	var b strings.Builder
	digits := false
	for _, r := range s {
		if r == '.' {
			b.WriteByte('.')
			continue
		}
		d, ok := digitValue(r)
		if !ok {
			return 0, false
		}
		digits = true
		b.WriteByte('0' + d)
	}
	if !digits {
		return 0, false
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// digitValue returns the decimal value of a Unicode Nd rune. Every Nd range
// runs in complete blocks of ten starting at that script's zero.
func digitValue(r rune) (byte, bool) {
	if r >= '0' && r <= '9' {
		return byte(r - '0'), true
	}
	for _, rg := range unicode.Nd.R16 {
		if lo, hi := rune(rg.Lo), rune(rg.Hi); r >= lo && r <= hi && rg.Stride == 1 {
			return byte((r - lo) % 10), true
		}
	}
	for _, rg := range unicode.Nd.R32 {
		if lo, hi := rune(rg.Lo), rune(rg.Hi); r >= lo && r <= hi && rg.Stride == 1 {
			return byte((r - lo) % 10), true
		}
	}
	return 0, false
}
