package parser

import (
	"regexp"
)

// candidatePattern matches anything shaped roughly like an owner code followed by a
// serial number. It is deliberately loose: OCR output from labels and table grids
// glues IDs to border characters (|MSCU1234567|), splits them with a space, or
// separates the check digit with a hyphen. No word boundaries are required.
//
// The trailing group requires a hyphen before the final digit. Without one a match
// stops at 12 alphanumerics, so a stray digit after a spaced ID ("MSCU 12345669") or a
// following word is never swallowed into the match.
var candidatePattern = regexp.MustCompile(`(?i)[A-Z0-9]{4,5}\s?[A-Z0-9]{5,7}(?:-[0-9])?`)

// ExtractCandidates returns every container-ID shaped substring of text in order of
// appearance. Duplicates are kept; deduplication happens after repair because two
// different raw matches may normalize to the same ID.
func ExtractCandidates(text string) []string {
	// Initialize with empty slice, not nil
	matches := []string{}
	if text == "" {
		return matches
	}

	matches = append(matches, candidatePattern.FindAllString(text, -1)...)
	return matches
}
