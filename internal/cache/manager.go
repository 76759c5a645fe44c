package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"smartscan/internal/database"
	"smartscan/internal/parser"
)

// Store is the persistent tier behind the in-memory cache
type Store interface {
	Get(digest string) (*parser.ProcessResult, error)
	Set(digest string, result *parser.ProcessResult, ttl time.Duration) error
	Delete(digest string) error
	DeleteExpired() (int64, error)
	LoadAll() (map[string]database.CacheEntry, error)
	GetStats() (int, int, error)
}

// Digest returns the hex SHA-256 of an uploaded image, used as the cache key
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CachedResult represents an in-memory cached result with expiry
type CachedResult struct {
	Result    *parser.ProcessResult
	ExpiresAt time.Time
}

// IsExpired checks if the cached result has expired
func (c *CachedResult) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// Manager manages both in-memory and persistent caching of recovery results
type Manager struct {
	store    Store
	memory   sync.Map // map[string]*CachedResult
	disabled bool
	ttl      time.Duration
	logger   *slog.Logger

	cleanupInterval time.Duration

	// Cleanup goroutine control
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a new cache manager
func NewManager(store Store, disabled bool, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	manager := &Manager{
		store:           store,
		disabled:        disabled,
		ttl:             ttl,
		logger:          logger,
		cleanupInterval: time.Minute,
		ctx:             ctx,
		cancel:          cancel,
	}

	if !disabled {
		if err := manager.loadFromDatabase(); err != nil {
			logger.Warn("Failed to load cache from database", "error", err)
		}

		go manager.cleanupLoop()
	}

	return manager
}

// Get retrieves a cached result. A miss returns nil, nil.
func (m *Manager) Get(digest string) (*parser.ProcessResult, error) {
	if m.disabled {
		return nil, nil
	}

	if value, ok := m.memory.Load(digest); ok {
		cached := value.(*CachedResult)
		if !cached.IsExpired() {
			return cached.Result, nil
		}
		m.memory.Delete(digest)
	}

	result, err := m.store.Get(digest)
	if err != nil {
		return nil, fmt.Errorf("failed to get from database cache: %w", err)
	}

	if result != nil {
		m.memory.Store(digest, &CachedResult{
			Result:    result,
			ExpiresAt: time.Now().Add(m.ttl),
		})
	}

	return result, nil
}

// Set stores a result in both memory and database
func (m *Manager) Set(digest string, result *parser.ProcessResult) error {
	if m.disabled {
		return nil
	}

	if err := m.store.Set(digest, result, m.ttl); err != nil {
		return fmt.Errorf("failed to store in database cache: %w", err)
	}

	m.memory.Store(digest, &CachedResult{
		Result:    result,
		ExpiresAt: time.Now().Add(m.ttl),
	})

	return nil
}

// Delete removes a cached result from both memory and database
func (m *Manager) Delete(digest string) error {
	if m.disabled {
		return nil
	}

	m.memory.Delete(digest)

	if err := m.store.Delete(digest); err != nil {
		return fmt.Errorf("failed to delete from database cache: %w", err)
	}

	return nil
}

// IsEnabled returns true if caching is enabled
func (m *Manager) IsEnabled() bool {
	return !m.disabled
}

// GetTTL returns the cache TTL duration
func (m *Manager) GetTTL() time.Duration {
	return m.ttl
}

// loadFromDatabase warms memory with all non-expired persisted entries. Warmed entries
// keep their persisted expiry.
func (m *Manager) loadFromDatabase() error {
	entries, err := m.store.LoadAll()
	if err != nil {
		return err
	}

	for digest, entry := range entries {
		m.memory.Store(digest, &CachedResult{
			Result:    entry.Result,
			ExpiresAt: entry.ExpiresAt,
		})
	}

	if len(entries) > 0 {
		m.logger.Info("Loaded cache entries from database", "count", len(entries))
	}

	return nil
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}

// Cleanup removes expired entries from both tiers and returns how many persisted rows
// were deleted
func (m *Manager) Cleanup() int64 {
	if m.disabled {
		return 0
	}

	memoryCount := 0
	m.memory.Range(func(key, value interface{}) bool {
		if value.(*CachedResult).IsExpired() {
			m.memory.Delete(key)
			memoryCount++
		}
		return true
	})

	removed, err := m.store.DeleteExpired()
	if err != nil {
		m.logger.Warn("Failed to clean up expired database cache entries", "error", err)
	}

	if memoryCount > 0 || removed > 0 {
		m.logger.Debug("Cleaned up expired cache entries", "memory", memoryCount, "database", removed)
	}

	return removed
}

// GetStats returns cache statistics
func (m *Manager) GetStats() (CacheStats, error) {
	stats := CacheStats{
		Disabled: !m.IsEnabled(),
		TTL:      m.GetTTL().String(),
	}

	if stats.Disabled {
		return stats, nil
	}

	m.memory.Range(func(key, value interface{}) bool {
		stats.MemoryTotal++
		if value.(*CachedResult).IsExpired() {
			stats.MemoryExpired++
		}
		return true
	})

	dbTotal, dbExpired, err := m.store.GetStats()
	if err != nil {
		return stats, fmt.Errorf("failed to get database stats: %w", err)
	}

	stats.DatabaseTotal = dbTotal
	stats.DatabaseExpired = dbExpired

	return stats, nil
}

// Close shuts down the cache manager and cleanup goroutine
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Disabled        bool   `json:"disabled"`
	TTL             string `json:"ttl"`
	MemoryTotal     int    `json:"memory_total"`
	MemoryExpired   int    `json:"memory_expired"`
	DatabaseTotal   int    `json:"database_total"`
	DatabaseExpired int    `json:"database_expired"`
}
