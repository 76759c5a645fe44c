package parser

import (
	"strings"
	"unicode"
)

const (
	// ContainerIDLength is the length of a normalized ISO 6346 container ID.
	ContainerIDLength = 11

	prefixLength = 4
	suffixLength = ContainerIDLength - prefixLength
)

// prefixRepairs maps digits that OCR commonly produces in place of letters. Only
// applied to the owner/category field.
var prefixRepairs = map[rune]rune{
	'0': 'O',
	'1': 'I',
	'5': 'S',
	'8': 'B',
	'2': 'Z',
}

// suffixRepairs maps letters that OCR commonly produces in place of digits. Only
// applied to the serial/check-digit field.
var suffixRepairs = map[rune]rune{
	'O': '0',
	'I': '1',
	'S': '5',
	'B': '8',
	'Z': '2',
	'G': '6',
}

// RepairCandidate normalizes a raw fuzzy match into an 11-character container ID.
//
// Everything that is not a letter or digit is stripped and the rest uppercased. When
// the result is not exactly 11 characters it is returned unchanged and the caller is
// expected to drop it. Otherwise the first 4 characters are treated as letters and the
// last 7 as digits, and look-alike characters are remapped within each field only.
// Characters that do not conform after repair are left for checksum validation to
// reject.
func RepairCandidate(raw string) string {
	cleaned := normalizeRaw(raw)
	if len(cleaned) != ContainerIDLength {
		return cleaned
	}

	var b strings.Builder
	b.Grow(ContainerIDLength)
	for i, r := range cleaned {
		if i < prefixLength {
			b.WriteRune(remap(r, prefixRepairs))
		} else {
			b.WriteRune(remap(r, suffixRepairs))
		}
	}
	return b.String()
}

// normalizeRaw keeps ASCII letters and digits only, uppercased.
func normalizeRaw(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r > unicode.MaxASCII {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

func remap(r rune, table map[rune]rune) rune {
	if repl, ok := table[r]; ok {
		return repl
	}
	return r
}
