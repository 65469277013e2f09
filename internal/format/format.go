// Package format turns free-text model answers into display lines.
package format

import (
	"regexp"
	"strings"
)

// whitespaceRun matches two or more consecutive whitespace characters,
// including vertical tab, NEL and the Unicode space separators.
var whitespaceRun = regexp.MustCompile(`[\s\v\x{85}\p{Z}]{2,}`)

// Clean applies the cleanup pipeline to a raw model answer. The steps are
// order dependent:
//
//  1. every "\n\n" becomes "\n" in a single non-overlapping pass, so a run of
//     N newlines shrinks to ceil(N/2) newlines
//  2. every run of two or more whitespace characters becomes one space,
//     except runs made only of newlines, which keep the line structure
//  3. every '+' is removed
//  4. every '*' is removed
func Clean(raw string) string {
	s := CollapseBlankLines(raw)
	s = CollapseWhitespace(s)
	s = strings.ReplaceAll(s, "+", "")
	s = strings.ReplaceAll(s, "*", "")
	return s
}

// CollapseBlankLines replaces each pair of consecutive newlines with a single
// newline. It does not recurse: four newlines become two.
func CollapseBlankLines(s string) string {
	return strings.ReplaceAll(s, "\n\n", "\n")
}

// CollapseWhitespace replaces runs of two or more whitespace characters with a
// single space. A run consisting solely of newlines is left alone; a newline
// adjacent to any other whitespace is folded into the space.
//
// The newline-only exemption is deliberate. Folding those runs would turn the
// blank line left by CollapseBlankLines ("a\n\n\n\nb" -> "a\n\nb") into
// "a b" and merge separate answer lines.
func CollapseWhitespace(s string) string {
	return whitespaceRun.ReplaceAllStringFunc(s, func(run string) string {
		if strings.Trim(run, "\n") == "" {
			return run
		}
		return " "
	})
}

// SplitPoints splits cleaned text on newlines, trims each piece and drops the
// empty ones. Order is preserved. The result is never nil.
func SplitPoints(cleaned string) []string {
	points := []string{}
	for _, piece := range strings.Split(cleaned, "\n") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		points = append(points, piece)
	}
	return points
}

// Format is SplitPoints(Clean(raw)). It is a pure function of raw.
func Format(raw string) []string {
	return SplitPoints(Clean(raw))
}
