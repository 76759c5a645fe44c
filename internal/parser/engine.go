package parser

import (
	"errors"
)

var (
	// ErrNoCandidates means the text held nothing shaped like a container ID.
	ErrNoCandidates = errors.New("no candidates found")
	// ErrNoValidCandidates means candidates were found but every one failed its check digit.
	ErrNoValidCandidates = errors.New("candidates found but none passed checksum validation")
)

// ProcessResult aggregates everything recovered from one document.
type ProcessResult struct {
	Success           bool               `json:"success"`
	RawText           string             `json:"raw_text"`
	ContainerIDsFound []string           `json:"container_ids_found"`
	ValidatedIDs      []ValidationResult `json:"validated_ids"`
	BestMatch         *ValidationResult  `json:"best_match"`
	Error             string             `json:"error,omitempty"`
}

// Err returns the document-level failure as one of the package sentinels, or nil when a
// valid container ID was found.
func (r *ProcessResult) Err() error {
	switch r.Error {
	case "":
		return nil
	case ErrNoCandidates.Error():
		return ErrNoCandidates
	case ErrNoValidCandidates.Error():
		return ErrNoValidCandidates
	default:
		return errors.New(r.Error)
	}
}

// Engine runs the container ID recovery pipeline. It holds no state and is safe for
// concurrent use.
type Engine struct{}

// NewEngine creates a new recovery engine
func NewEngine() *Engine {
	return &Engine{}
}

// Process extracts, repairs, deduplicates and validates container IDs in text and
// selects the first valid one as the best match.
func (e *Engine) Process(text string) *ProcessResult {
	result := &ProcessResult{
		RawText:           text,
		ContainerIDsFound: NormalizedCandidates(text),
		ValidatedIDs:      []ValidationResult{},
	}

	if len(result.ContainerIDsFound) == 0 {
		result.Error = ErrNoCandidates.Error()
		return result
	}

	for _, id := range result.ContainerIDsFound {
		validation := ValidateContainerID(id)
		result.ValidatedIDs = append(result.ValidatedIDs, validation)

		if validation.Valid && result.BestMatch == nil {
			best := validation
			result.BestMatch = &best
		}
	}

	if result.BestMatch == nil {
		result.Error = ErrNoValidCandidates.Error()
		return result
	}

	result.Success = true
	return result
}

// Process runs the pipeline with a zero-value Engine.
func Process(text string) *ProcessResult {
	return (&Engine{}).Process(text)
}

// NormalizedCandidates returns the repaired 11-character candidates found in text,
// deduplicated with the first occurrence kept.
func NormalizedCandidates(text string) []string {
	ids := []string{}
	seen := make(map[string]bool) // To avoid duplicates

	for _, raw := range ExtractCandidates(text) {
		id := RepairCandidate(raw)
		if len(id) != ContainerIDLength {
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	return ids
}
