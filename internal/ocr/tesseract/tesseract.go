// Package tesseract implements ocr.TextExtractor with the Tesseract engine through
// gosseract. It requires libtesseract at build time and is kept out of the ocr package so
// the rest of the tree builds without cgo.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"smartscan/internal/ocr"
)

// Engine runs Tesseract on uploaded images
type Engine struct {
	options       ocr.Options
	clientFactory func() *gosseract.Client
}

// NewEngine constructs a Tesseract-backed text extractor
func NewEngine(options ocr.Options) *Engine {
	return &Engine{options: options, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Version reports the linked libtesseract version
func (e *Engine) Version() string { return gosseract.Version() }

// ExtractText preprocesses the image (when enabled) and returns the recognized text
func (e *Engine) ExtractText(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data := image
	if e.options.Preprocess {
		processed, err := ocr.Preprocess(image)
		if err != nil {
			return "", err
		}
		data = processed
	}

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)

	// libtesseract cannot be interrupted; the result is dropped if ctx ends first
	go func() {
		text, err := e.recognize(data)
		done <- outcome{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", ocr.NewScanError(ocr.CodeOCRFailed, "text recognition failed", res.err)
		}
		return res.text, nil
	}
}

func (e *Engine) recognize(data []byte) (string, error) {
	client := e.clientFactory()
	defer client.Close()

	if len(e.options.Languages) > 0 {
		if err := client.SetLanguage(e.options.Languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(e.options.PageSegMode)); err != nil {
		return "", fmt.Errorf("set page segmentation mode: %w", err)
	}
	if e.options.Whitelist != "" {
		if err := client.SetWhitelist(e.options.Whitelist); err != nil {
			return "", fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
