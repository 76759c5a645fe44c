package workers

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartscan/internal/cache"
	"smartscan/internal/config"
	"smartscan/internal/database"
	"smartscan/internal/parser"
	"smartscan/internal/ratelimit"
)

func getTestConfig(t *testing.T) *config.Config {
	return &config.Config{
		UploadDir:        t.TempDir(),
		UploadRetention:  time.Hour,
		CleanupInterval:  time.Hour,
		RateLimitRPS:     1,
		RateLimitBurst:   1,
		CacheTTL:         time.Hour,
		DisableRateLimit: false,
	}
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// writeAged creates a file whose modification time is age in the past
func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := writeFile(t, dir, name, []byte("image bytes"))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
	return path
}

func TestUploadJanitor_RunOnce(t *testing.T) {
	cfg := getTestConfig(t)

	oldScan := writeAged(t, cfg.UploadDir, "scan_20240101_120000_abcd1234.jpg", 3*time.Hour)
	oldDebug := writeAged(t, cfg.UploadDir, "debug_received.jpg", 2*time.Hour)
	freshScan := writeAged(t, cfg.UploadDir, "scan_20240101_130000_ef567890.png", time.Minute)
	unrelated := writeAged(t, cfg.UploadDir, "notes.txt", 48*time.Hour)
	require.NoError(t, os.Mkdir(filepath.Join(cfg.UploadDir, "scan_dir"), 0755))

	janitor := NewUploadJanitor(cfg, nil, nil, quietLogger())
	report, err := janitor.RunOnce()
	require.NoError(t, err)

	assert.Equal(t, 2, report.FilesRemoved)
	assert.Equal(t, int64(2*len("image bytes")), report.BytesFreed)

	assert.NoFileExists(t, oldScan)
	assert.NoFileExists(t, oldDebug)
	assert.FileExists(t, freshScan)
	assert.FileExists(t, unrelated)
	assert.DirExists(t, filepath.Join(cfg.UploadDir, "scan_dir"))
}

func TestUploadJanitor_ZeroRetentionKeepsFiles(t *testing.T) {
	cfg := getTestConfig(t)
	cfg.UploadRetention = 0
	oldScan := writeAged(t, cfg.UploadDir, "scan_old.jpg", 365*24*time.Hour)

	report, err := NewUploadJanitor(cfg, nil, nil, quietLogger()).RunOnce()
	require.NoError(t, err)

	assert.Equal(t, 0, report.FilesRemoved)
	assert.FileExists(t, oldScan)
}

func TestUploadJanitor_MissingUploadDir(t *testing.T) {
	cfg := getTestConfig(t)
	cfg.UploadDir = filepath.Join(cfg.UploadDir, "never-created")

	report, err := NewUploadJanitor(cfg, nil, nil, quietLogger()).RunOnce()
	require.NoError(t, err)
	assert.Equal(t, 0, report.FilesRemoved)
}

func TestUploadJanitor_CacheAndLimiter(t *testing.T) {
	cfg := getTestConfig(t)
	db := setupTestDB(t)

	cacheManager := cache.NewManager(db.ScanCache, false, time.Hour, quietLogger())
	defer cacheManager.Close()

	// Written straight to the store so the manager's startup load never sees it
	result := parser.Process("CSQU3054383")
	require.NoError(t, db.ScanCache.Set("expired-digest", result, -time.Minute))
	require.NoError(t, db.ScanCache.Set("live-digest", result, time.Hour))

	limiter := ratelimit.NewClientLimiter(cfg)
	limiter.Check("10.0.0.7")
	require.Equal(t, 1, limiter.Size())

	report, err := NewUploadJanitor(cfg, cacheManager, limiter, quietLogger()).RunOnce()
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.CacheRowsRemoved)
	assert.Equal(t, 0, report.ClientsPruned, "recently seen clients are kept")
	assert.Equal(t, 1, limiter.Size())

	total, expired, err := db.ScanCache.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, expired)
}

func TestUploadJanitor_Lifecycle(t *testing.T) {
	cfg := getTestConfig(t)
	janitor := NewUploadJanitor(cfg, nil, nil, quietLogger())

	assert.False(t, janitor.IsRunning(), "not running before Start")

	janitor.Start()
	assert.True(t, janitor.IsRunning())

	janitor.Pause()
	assert.True(t, janitor.IsPaused())
	janitor.Resume()
	assert.False(t, janitor.IsPaused())

	janitor.Stop()
	assert.False(t, janitor.IsRunning())
}

func TestUploadJanitor_BackgroundLoop(t *testing.T) {
	cfg := getTestConfig(t)
	cfg.CleanupInterval = 10 * time.Millisecond
	oldScan := writeAged(t, cfg.UploadDir, "scan_old.jpg", 2*time.Hour)

	janitor := NewUploadJanitor(cfg, nil, nil, quietLogger())
	janitor.Start()
	defer janitor.Stop()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(oldScan)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUploadJanitor_PausedLoopSkips(t *testing.T) {
	cfg := getTestConfig(t)
	cfg.CleanupInterval = 10 * time.Millisecond
	oldScan := writeAged(t, cfg.UploadDir, "scan_old.jpg", 2*time.Hour)

	janitor := NewUploadJanitor(cfg, nil, nil, quietLogger())
	janitor.Pause()
	janitor.Start()
	defer janitor.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.FileExists(t, oldScan)
}
