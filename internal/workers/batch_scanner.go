package workers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"smartscan/internal/ocr"
	"smartscan/internal/parser"
)

// BatchResult is the outcome for one input document
type BatchResult struct {
	Path     string                `json:"path"`
	Result   *parser.ProcessResult `json:"result,omitempty"`
	Error    string                `json:"error,omitempty"`
	Duration time.Duration         `json:"duration"`
}

// BatchScanner runs container ID recovery over many local documents concurrently
type BatchScanner struct {
	engine    *parser.Engine
	extractor ocr.TextExtractor
	workers   int
	logger    *slog.Logger
}

// NewBatchScanner creates a batch scanner. extractor may be nil, in which case image
// inputs are reported as unsupported. workers <= 0 uses GOMAXPROCS.
func NewBatchScanner(extractor ocr.TextExtractor, workers int, logger *slog.Logger) *BatchScanner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchScanner{
		engine:    parser.NewEngine(),
		extractor: extractor,
		workers:   workers,
		logger:    logger,
	}
}

// ScanFiles processes every path and returns results in input order. Per-file failures
// are reported in BatchResult.Error; the returned error is only set when ctx ends first.
func (s *BatchScanner) ScanFiles(ctx context.Context, paths []string) ([]BatchResult, error) {
	results := make([]BatchResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = s.scanFile(ctx, path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// ScanTexts processes already-recognized texts and returns results in input order
func (s *BatchScanner) ScanTexts(ctx context.Context, texts []string) ([]*parser.ProcessResult, error) {
	results := make([]*parser.ProcessResult, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, text := range texts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = s.engine.Process(text)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (s *BatchScanner) scanFile(ctx context.Context, path string) BatchResult {
	start := time.Now()
	result := BatchResult{Path: path}

	text, err := s.readText(ctx, path)
	if err != nil {
		s.logger.Debug("Failed to read document", "path", path, "error", err)
		result.Error = err.Error()
	} else {
		result.Result = s.engine.Process(text)
	}

	result.Duration = time.Since(start)
	return result
}

// readText returns the text of a plain-text document, or runs the extractor on an image
func (s *BatchScanner) readText(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	if isTextDocument(path, data) {
		return string(data), nil
	}

	if !ocr.IsSupportedImage(ocr.DetectImageType(data)) {
		return "", ocr.NewScanError(ocr.CodeUnsupportedFormat, "not a text or image file", nil)
	}
	if s.extractor == nil {
		return "", ocr.NewScanError(ocr.CodeUnsupportedFormat, "no OCR engine available for images", nil)
	}

	return s.extractor.ExtractText(ctx, data)
}

func isTextDocument(path string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text", ".log":
		return true
	}
	return strings.HasPrefix(http.DetectContentType(data), "text/plain")
}
