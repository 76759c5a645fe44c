package workers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"smartscan/internal/cache"
	"smartscan/internal/config"
	"smartscan/internal/ratelimit"
)

// clientIdleTimeout is how long a rate-limited client is remembered without requests
const clientIdleTimeout = 15 * time.Minute

// uploadPrefixes are the file names the scan handler writes into the upload directory
var uploadPrefixes = []string{"scan_", "debug_received"}

// JanitorReport summarizes one cleanup pass
type JanitorReport struct {
	FilesRemoved     int           `json:"files_removed"`
	BytesFreed       int64         `json:"bytes_freed"`
	CacheRowsRemoved int64         `json:"cache_rows_removed"`
	ClientsPruned    int           `json:"clients_pruned"`
	Duration         time.Duration `json:"duration"`
}

// UploadJanitor periodically removes old uploaded images, expired cache entries and
// idle rate limiter state
type UploadJanitor struct {
	ctx     context.Context
	cancel  context.CancelFunc
	config  *config.Config
	cache   *cache.Manager
	limiter *ratelimit.ClientLimiter
	paused  atomic.Bool
	started atomic.Bool
	logger  *slog.Logger
	now     func() time.Time
}

// NewUploadJanitor creates a new janitor. cacheManager and limiter may be nil.
func NewUploadJanitor(cfg *config.Config, cacheManager *cache.Manager, limiter *ratelimit.ClientLimiter, logger *slog.Logger) *UploadJanitor {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &UploadJanitor{
		ctx:     ctx,
		cancel:  cancel,
		config:  cfg,
		cache:   cacheManager,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

// Start begins the background cleanup loop
func (j *UploadJanitor) Start() {
	if !j.started.CompareAndSwap(false, true) {
		return
	}

	j.logger.Info("Starting upload janitor",
		"interval", j.config.CleanupInterval,
		"retention", j.config.UploadRetention,
		"upload_dir", j.config.UploadDir)

	go j.cleanupLoop()
}

// Stop gracefully stops the background cleanup loop
func (j *UploadJanitor) Stop() {
	j.logger.Info("Stopping upload janitor")
	j.cancel()
}

// Pause temporarily skips cleanup passes
func (j *UploadJanitor) Pause() {
	j.paused.Store(true)
	j.logger.Info("Upload janitor paused")
}

// Resume resumes cleanup passes
func (j *UploadJanitor) Resume() {
	j.paused.Store(false)
	j.logger.Info("Upload janitor resumed")
}

// IsPaused returns true if the janitor is currently paused
func (j *UploadJanitor) IsPaused() bool {
	return j.paused.Load()
}

// IsRunning returns true if the janitor was started and has not been stopped
func (j *UploadJanitor) IsRunning() bool {
	if !j.started.Load() {
		return false
	}
	select {
	case <-j.ctx.Done():
		return false
	default:
		return true
	}
}

func (j *UploadJanitor) cleanupLoop() {
	ticker := time.NewTicker(j.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			j.logger.Info("Upload janitor stopped")
			return

		case <-ticker.C:
			if j.paused.Load() {
				j.logger.Debug("Janitor paused, skipping cleanup pass")
				continue
			}
			if _, err := j.RunOnce(); err != nil {
				j.logger.Error("Cleanup pass failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single cleanup pass regardless of the pause state
func (j *UploadJanitor) RunOnce() (JanitorReport, error) {
	start := j.now()
	var report JanitorReport

	if j.config.UploadRetention > 0 {
		files, freed, err := j.purgeUploads(start.Add(-j.config.UploadRetention))
		report.FilesRemoved = files
		report.BytesFreed = freed
		if err != nil {
			return report, err
		}
	}

	if j.cache != nil {
		report.CacheRowsRemoved = j.cache.Cleanup()
	}
	if j.limiter != nil {
		report.ClientsPruned = j.limiter.Prune(clientIdleTimeout)
	}

	report.Duration = j.now().Sub(start)
	if report.FilesRemoved > 0 || report.CacheRowsRemoved > 0 || report.ClientsPruned > 0 {
		j.logger.Info("Completed cleanup pass",
			"files_removed", report.FilesRemoved,
			"bytes_freed", report.BytesFreed,
			"cache_rows_removed", report.CacheRowsRemoved,
			"clients_pruned", report.ClientsPruned)
	}

	return report, nil
}

// purgeUploads removes uploads last modified before cutoff
func (j *UploadJanitor) purgeUploads(cutoff time.Time) (int, int64, error) {
	entries, err := os.ReadDir(j.config.UploadDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("failed to read upload directory: %w", err)
	}

	removed := 0
	var freed int64
	for _, entry := range entries {
		if entry.IsDir() || !isUpload(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			j.logger.Warn("Failed to stat upload", "file", entry.Name(), "error", err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(j.config.UploadDir, entry.Name())); err != nil {
			j.logger.Warn("Failed to remove upload", "file", entry.Name(), "error", err)
			continue
		}
		removed++
		freed += info.Size()
	}

	return removed, freed, nil
}

func isUpload(name string) bool {
	for _, prefix := range uploadPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
