package ocr

import (
	"context"
	"errors"
)

// Error codes reported by the OCR collaborator
const (
	CodeOCRFailed         = "OCR_FAILED"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeImageDecodeFailed = "IMAGE_DECODE_FAILED"
)

// DefaultWhitelist restricts recognition to the characters a container ID can contain
const DefaultWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// TextExtractor turns an image into raw text. Implementations may be slow and must
// honour ctx cancellation.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// Options controls how an engine runs recognition
type Options struct {
	Languages   []string `json:"languages"`
	PageSegMode int      `json:"page_seg_mode"`
	Whitelist   string   `json:"whitelist"`
	Preprocess  bool     `json:"preprocess"`
}

// DefaultOptions treats the image as a single uniform block of uppercase text
func DefaultOptions() Options {
	return Options{
		Languages:   []string{"eng"},
		PageSegMode: 6,
		Whitelist:   DefaultWhitelist,
		Preprocess:  true,
	}
}

// ScanError represents a failure in the image to text stage
type ScanError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *ScanError) Error() string {
	if e.Cause != nil {
		return e.Code + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

// NewScanError creates a ScanError wrapping cause
func NewScanError(code, message string, cause error) *ScanError {
	return &ScanError{Code: code, Message: message, Cause: cause}
}

// ErrorCode returns the ScanError code carried by err, or "" when err is not one
func ErrorCode(err error) string {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Code
	}
	return ""
}
