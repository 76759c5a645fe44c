package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCandidates(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []string
	}{
		{
			name:     "Empty text",
			content:  "",
			expected: []string{},
		},
		{
			name:     "No container shaped text",
			content:  "INVOICE 42 PAID",
			expected: []string{},
		},
		{
			name:     "Plain container ID",
			content:  "MSCU1234566",
			expected: []string{"MSCU1234566"},
		},
		{
			name:     "Glued to table borders",
			content:  "|MSCU 123456-7|",
			expected: []string{"MSCU 123456-7"},
		},
		{
			name:     "Grid with two IDs",
			content:  "|CSQU3054383|TGHU1234567|",
			expected: []string{"CSQU3054383", "TGHU1234567"},
		},
		{
			name:     "Following word is not swallowed",
			content:  "MSCU1234567 SOME OTHER TEXT",
			expected: []string{"MSCU1234567", "SOME OTHER"},
		},
		{
			name:     "Stray digit after spaced ID is left out",
			content:  "MSCU 12345669",
			expected: []string{"MSCU 1234566"},
		},
		{
			name:     "Hyphen tail needs the hyphen",
			content:  "TGHU 1234567 8",
			expected: []string{"TGHU 1234567"},
		},
		{
			name:     "Lowercase is matched",
			content:  "ref: mscu1234566",
			expected: []string{"mscu1234566"},
		},
		{
			name:     "Duplicates are kept",
			content:  "CSQU3054383\nCSQU3054383",
			expected: []string{"CSQU3054383", "CSQU3054383"},
		},
		{
			name:     "OCR confusions inside the match",
			content:  "CONT: TGHU I2345G-7",
			expected: []string{"TGHU I2345G-7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractCandidates(tt.content))
		})
	}
}

func TestExtractCandidates_RecallAfterRepair(t *testing.T) {
	candidates := ExtractCandidates("|MSCU 123456-7|")

	assert.Len(t, candidates, 1)
	assert.Equal(t, "MSCU1234567", RepairCandidate(candidates[0]))
}
