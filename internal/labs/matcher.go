package labs

import (
	"regexp"
	"strings"
	"unicode"
)

// label, separator, number, optional space, unit. Anchored at the start only.
// Whitespace covers the Unicode separators OCR engines emit (U+00A0 and friends)
// and numbers may use any Unicode decimal digits.
var reLine = regexp.MustCompile(`^([A-Za-z /()-]+)[:\s\p{Z}\x1c-\x1f\x{85}]+([\p{Nd}.]+)[\s\p{Z}\x1c-\x1f\x{85}]*([a-zA-Z/%μµ]+)`)

// ASCII and Unicode line terminators, including vertical tab, form feed and the
// file/group/record separators.
var reLineBreak = regexp.MustCompile(`\r\n|[\n\r\v\f\x1c\x1d\x1e\x{85}\x{2028}\x{2029}]`)

// LineMatch holds the raw substrings captured from one OCR line.
type LineMatch struct {
	Label string
	Value string
	Unit  string
}

// MatchLine applies the line pattern to a single line. Lines that do not have
// the "label: number unit" shape yield ok == false.
func MatchLine(line string) (LineMatch, bool) {
	m := reLine.FindStringSubmatch(strings.TrimFunc(line, isSpace))
	if m == nil {
		return LineMatch{}, false
	}
	return LineMatch{
		Label: strings.TrimFunc(m[1], isSpace),
		Value: m[2],
		Unit:  m[3],
	}, true
}

// isSpace extends unicode.IsSpace with the information separators U+001C..U+001F.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// SplitLines splits text on every line terminator, dropping a single trailing
// empty segment.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := reLineBreak.Split(text, -1)
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
