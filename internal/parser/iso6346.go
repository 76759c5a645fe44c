package parser

import (
	"fmt"
)

// EquipmentCategory is the fourth character of a container ID.
type EquipmentCategory string

const (
	CategoryFreight    EquipmentCategory = "freight"
	CategoryDetachable EquipmentCategory = "detachable"
	CategoryTrailer    EquipmentCategory = "trailer"
	CategoryReefer     EquipmentCategory = "reefer"
	CategoryUnknown    EquipmentCategory = "unknown"
)

// letterValues holds the ISO 6346 numeric equivalent of each letter. Values start at
// 10 for A and increase by one, skipping every multiple of 11, which ends at Z=38.
var letterValues = buildLetterValues()

func buildLetterValues() map[byte]int {
	values := make(map[byte]int, 26)
	v := 10
	for c := byte('A'); c <= 'Z'; c++ {
		if v%11 == 0 {
			v++
		}
		values[c] = v
		v++
	}
	return values
}

// ValidationResult is the outcome of checking one normalized candidate.
type ValidationResult struct {
	ContainerID string            `json:"container_id"`
	Valid       bool              `json:"valid"`
	CheckDigit  string            `json:"check_digit,omitempty"`
	Category    EquipmentCategory `json:"category,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// CharValue returns the ISO 6346 value of an uppercase letter or digit.
func CharValue(c byte) (int, bool) {
	if c >= '0' && c <= '9' {
		return int(c - '0'), true
	}
	v, ok := letterValues[c]
	return v, ok
}

// CheckDigit computes the ISO 6346 check digit for the first 10 characters of a
// container ID (owner code, category and serial number).
func CheckDigit(first10 string) (int, error) {
	if len(first10) != ContainerIDLength-1 {
		return 0, fmt.Errorf("invalid length: expected %d characters, got %d", ContainerIDLength-1, len(first10))
	}

	sum := 0
	for i := 0; i < len(first10); i++ {
		v, ok := CharValue(first10[i])
		if !ok {
			return 0, fmt.Errorf("invalid character %q at position %d", first10[i], i+1)
		}
		sum += v << i
	}

	// A remainder of 10 is written as 0
	return sum % 11 % 10, nil
}

// ValidateContainerID checks a normalized 11-character container ID against its
// embedded check digit. It never panics: malformed input is reported through the
// Error field of the result.
func ValidateContainerID(id string) ValidationResult {
	result := ValidationResult{ContainerID: id}

	if len(id) != ContainerIDLength {
		result.Error = fmt.Sprintf("invalid length: expected %d characters, got %d", ContainerIDLength, len(id))
		return result
	}

	result.Category = categoryOf(id[prefixLength-1])

	expected, err := CheckDigit(id[:ContainerIDLength-1])
	if err != nil {
		result.Error = err.Error()
		return result
	}

	last := id[ContainerIDLength-1]
	if last < '0' || last > '9' {
		result.Error = fmt.Sprintf("invalid check digit %q: must be a digit", last)
		return result
	}

	if int(last-'0') != expected {
		result.Error = fmt.Sprintf("check digit mismatch: expected %d, got %c", expected, last)
		return result
	}

	result.Valid = true
	result.CheckDigit = string(last)
	return result
}

func categoryOf(c byte) EquipmentCategory {
	switch c {
	case 'U':
		return CategoryFreight
	case 'J':
		return CategoryDetachable
	case 'Z':
		return CategoryTrailer
	case 'R':
		return CategoryReefer
	default:
		return CategoryUnknown
	}
}
