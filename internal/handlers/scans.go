package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"smartscan/internal/cache"
	"smartscan/internal/database"
	"smartscan/internal/metrics"
	"smartscan/internal/ocr"
	"smartscan/internal/parser"
)

// TimestampLayout formats the scan timestamp stored with each record
const TimestampLayout = "20060102_150405"

// maxTextBytes bounds POST /api/scan/text bodies
const maxTextBytes = 1 << 20

// multipartOverhead is allowed on top of the file limit for form boundaries and headers
const multipartOverhead = 64 << 10

// Config interface for scan handler configuration
type Config interface {
	GetUploadDir() string
	GetMaxUploadBytes() int64
	GetKeepDebugCopy() bool
	GetHistoryDefaultLimit() int
	GetHistoryMaxLimit() int
}

// ScanHandler handles upload, recovery and history requests
type ScanHandler struct {
	db        *database.DB
	engine    *parser.Engine
	extractor ocr.TextExtractor
	cache     *cache.Manager
	metrics   *metrics.Metrics
	config    Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewScanHandler creates a new scan handler. metrics may be nil.
func NewScanHandler(db *database.DB, extractor ocr.TextExtractor, cacheManager *cache.Manager, m *metrics.Metrics, config Config, logger *slog.Logger) *ScanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanHandler{
		db:        db,
		engine:    parser.NewEngine(),
		extractor: extractor,
		cache:     cacheManager,
		metrics:   m,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// OCRSummary is the recovery part of an upload response
type OCRSummary struct {
	ContainerID       *string                   `json:"container_id"`
	ValidationStatus  *string                   `json:"validation_status"`
	ContainerIDsFound []string                  `json:"container_ids_found"`
	ValidatedIDs      []parser.ValidationResult `json:"validated_ids"`
	RawTextPreview    *string                   `json:"raw_text_preview"`
	Error             *string                   `json:"error"`
}

// UploadResponse is returned by POST /api/scan
type UploadResponse struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	ScanID    int        `json:"scan_id"`
	Filename  string     `json:"filename"`
	SizeBytes int64      `json:"size_bytes"`
	SizeKB    float64    `json:"size_kb"`
	Timestamp string     `json:"timestamp"`
	OCRResult OCRSummary `json:"ocr_result"`
	Cached    bool       `json:"cached"`
}

// TextRequest is the JSON body accepted by POST /api/scan/text
type TextRequest struct {
	Text string `json:"text"`
}

// ValidateRequest is the JSON body accepted by POST /api/validate
type ValidateRequest struct {
	ContainerID string `json:"container_id"`
}

// ValidateResponse reports the repaired form of the input alongside its validation
type ValidateResponse struct {
	Input string `json:"input"`
	parser.ValidationResult
}

// ScanListResponse is returned by GET /api/scans
type ScanListResponse struct {
	Count int             `json:"count"`
	Scans []database.Scan `json:"scans"`
}

// StatsResponse is returned by GET /api/stats
type StatsResponse struct {
	Scans *database.ScanStats `json:"scans"`
	Cache cache.CacheStats    `json:"cache"`
}

// UploadScan handles POST /api/scan
func (h *ScanHandler) UploadScan(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.config.GetMaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds maximum upload size of %d bytes", maxBytes))
			return
		}
		h.logger.Warn("Upload without file field", "error", err)
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	if !ocr.IsSupportedImage(header.Header.Get("Content-Type")) {
		writeError(w, http.StatusBadRequest, "File must be an image")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		h.logger.Error("Failed to read upload", "error", err)
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	if int64(len(data)) > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds maximum upload size of %d bytes", maxBytes))
		return
	}

	timestamp := h.now().Format(TimestampLayout)
	savedName, err := h.saveUpload(header.Filename, timestamp, data)
	if err != nil {
		h.logger.Error("Failed to save upload", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}

	sizeBytes := int64(len(data))
	h.logger.Info("Received image",
		"original", header.Filename,
		"saved_as", savedName,
		"size_bytes", sizeBytes)

	digest := cache.Digest(data)
	result, cached, err := h.resolve(r.Context(), digest, data)
	if err != nil {
		h.metrics.RecordOCRFailure()
		h.logger.Error("Failed to process image", "filename", savedName, "error", err)

		message := err.Error()
		scan := &database.Scan{
			Filename:      savedName,
			SizeBytes:     sizeBytes,
			Timestamp:     timestamp,
			Error:         &message,
			ContentDigest: digest,
		}
		if dbErr := h.db.Scans.Create(scan); dbErr != nil {
			h.logger.Error("Failed to record failed scan", "error", dbErr)
		}

		writeError(w, statusForScanError(err), "Failed to process image: "+message)
		return
	}

	scan := scanFromResult(savedName, sizeBytes, timestamp, digest, result)
	if err := h.db.Scans.Create(scan); err != nil {
		h.logger.Error("Failed to save scan", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save scan")
		return
	}

	if scan.ContainerID != nil {
		h.logger.Info("Container ID found", "container_id", *scan.ContainerID, "scan_id", scan.ID)
	} else {
		h.logger.Warn("No valid container ID found", "scan_id", scan.ID, "error", result.Error)
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Success:   true,
		Message:   "Image processed successfully",
		ScanID:    scan.ID,
		Filename:  savedName,
		SizeBytes: sizeBytes,
		SizeKB:    math.Round(float64(sizeBytes)/1024*100) / 100,
		Timestamp: timestamp,
		OCRResult: OCRSummary{
			ContainerID:       scan.ContainerID,
			ValidationStatus:  scan.ValidationStatus,
			ContainerIDsFound: result.ContainerIDsFound,
			ValidatedIDs:      result.ValidatedIDs,
			RawTextPreview:    scan.RawTextPreview,
			Error:             scan.Error,
		},
		Cached: cached,
	})
}

// resolve returns the recovery result for an image, from cache when the same bytes were
// seen before
func (h *ScanHandler) resolve(ctx context.Context, digest string, data []byte) (*parser.ProcessResult, bool, error) {
	if cached, err := h.cache.Get(digest); err != nil {
		h.logger.Warn("Cache lookup failed", "digest", digest, "error", err)
	} else if cached != nil {
		h.metrics.RecordCacheHit()
		h.logger.Debug("Serving scan from cache", "digest", digest)
		return cached, true, nil
	}

	if h.extractor == nil {
		return nil, false, ocr.NewScanError(ocr.CodeOCRFailed, "no OCR engine configured", nil)
	}

	start := time.Now()
	text, err := h.extractor.ExtractText(ctx, data)
	h.metrics.ObserveOCR(time.Since(start))
	if err != nil {
		return nil, false, err
	}

	result := h.process(text)

	if err := h.cache.Set(digest, result); err != nil {
		h.logger.Warn("Failed to cache scan result", "digest", digest, "error", err)
	}

	return result, false, nil
}

func (h *ScanHandler) process(text string) *parser.ProcessResult {
	start := time.Now()
	result := h.engine.Process(text)
	h.metrics.RecordResult(result, time.Since(start))
	return result
}

// saveUpload writes the image under a unique name and returns that name
func (h *ScanHandler) saveUpload(original, timestamp string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if ext == "" || ext == "." {
		ext = ".jpg"
	}
	savedName := fmt.Sprintf("scan_%s_%s%s", timestamp, uuid.NewString()[:8], ext)

	dir := h.config.GetUploadDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, savedName), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", savedName, err)
	}

	if h.config.GetKeepDebugCopy() {
		if err := os.WriteFile(filepath.Join(dir, "debug_received"+ext), data, 0644); err != nil {
			h.logger.Warn("Failed to write debug copy", "error", err)
		}
	}

	return savedName, nil
}

// scanFromResult builds the persisted record for a recovery result. validation_status is
// "valid" with a best match, "invalid" when candidates were all rejected, and unset when
// nothing shaped like a container ID was read.
func scanFromResult(filename string, sizeBytes int64, timestamp, digest string, result *parser.ProcessResult) *database.Scan {
	scan := &database.Scan{
		Filename:       filename,
		SizeBytes:      sizeBytes,
		Timestamp:      timestamp,
		RawTextPreview: database.Preview(result.RawText),
		ContentDigest:  digest,
		Candidates:     result.ContainerIDsFound,
	}

	switch {
	case result.BestMatch != nil:
		id := result.BestMatch.ContainerID
		status := database.StatusValid
		scan.ContainerID = &id
		scan.ValidationStatus = &status
	case len(result.ContainerIDsFound) > 0:
		status := database.StatusInvalid
		scan.ValidationStatus = &status
	}

	if result.Error != "" {
		message := result.Error
		scan.Error = &message
	}

	return scan
}

// statusForScanError maps OCR collaborator failures to HTTP status codes
func statusForScanError(err error) int {
	switch ocr.ErrorCode(err) {
	case ocr.CodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case ocr.CodeImageDecodeFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ScanText handles POST /api/scan/text. It accepts {"text": "..."} or a text/plain body
// and runs recovery only.
func (h *ScanHandler) ScanText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTextBytes)

	var text string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req TextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		text = req.Text
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "Text body too large")
			return
		}
		text = string(body)
	}

	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	writeJSON(w, http.StatusOK, h.process(text))
}

// Validate handles POST /api/validate
func (h *ScanHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTextBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.ContainerID) == "" {
		writeError(w, http.StatusBadRequest, "container_id is required")
		return
	}

	repaired := parser.RepairCandidate(req.ContainerID)
	writeJSON(w, http.StatusOK, ValidateResponse{
		Input:            req.ContainerID,
		ValidationResult: parser.ValidateContainerID(repaired),
	})
}

// ListScans handles GET /api/scans
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	limit := h.config.GetHistoryDefaultLimit()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}
	if maxLimit := h.config.GetHistoryMaxLimit(); limit > maxLimit {
		limit = maxLimit
	}

	scans, err := h.db.Scans.List(limit)
	if err != nil {
		h.logger.Error("Failed to list scans", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list scans")
		return
	}

	writeJSON(w, http.StatusOK, ScanListResponse{Count: len(scans), Scans: scans})
}

// GetScan handles GET /api/scans/{id}
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scan ID")
		return
	}

	scan, err := h.db.Scans.GetByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Scan %d not found", id))
			return
		}
		h.logger.Error("Failed to get scan", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get scan")
		return
	}

	writeJSON(w, http.StatusOK, scan)
}

// GetStats handles GET /api/stats
func (h *ScanHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	scanStats, err := h.db.Scans.Stats()
	if err != nil {
		h.logger.Error("Failed to get scan stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get stats")
		return
	}

	cacheStats, err := h.cache.GetStats()
	if err != nil {
		h.logger.Warn("Failed to get cache stats", "error", err)
	}

	writeJSON(w, http.StatusOK, StatsResponse{Scans: scanStats, Cache: cacheStats})
}
