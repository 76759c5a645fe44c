package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"smartscan/internal/parser"
)

// ScanCacheStore persists recovery results keyed by the SHA-256 digest of the uploaded
// image, so that identical uploads skip OCR
type ScanCacheStore struct {
	db *sql.DB
}

// NewScanCacheStore creates a new scan cache store
func NewScanCacheStore(db *sql.DB) *ScanCacheStore {
	return &ScanCacheStore{db: db}
}

// Get retrieves a cached result. A miss returns nil, nil.
func (r *ScanCacheStore) Get(digest string) (*parser.ProcessResult, error) {
	query := `SELECT result_data, expires_at FROM scan_cache WHERE content_digest = ?`

	var resultData string
	var expiresAt time.Time

	err := r.db.QueryRow(query, digest).Scan(&resultData, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached result: %w", err)
	}

	if time.Now().After(expiresAt) {
		if err := r.Delete(digest); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var result parser.ProcessResult
	if err := json.Unmarshal([]byte(resultData), &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize cached result: %w", err)
	}

	return &result, nil
}

// Set stores a result in the cache with the specified TTL
func (r *ScanCacheStore) Set(digest string, result *parser.ProcessResult, ttl time.Duration) error {
	resultData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	expiresAt := time.Now().UTC().Add(ttl)

	query := `INSERT OR REPLACE INTO scan_cache (content_digest, result_data, cached_at, expires_at)
			  VALUES (?, ?, CURRENT_TIMESTAMP, ?)`

	if _, err := r.db.Exec(query, digest, string(resultData), expiresAt); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}

	return nil
}

// Delete removes a cached entry
func (r *ScanCacheStore) Delete(digest string) error {
	if _, err := r.db.Exec(`DELETE FROM scan_cache WHERE content_digest = ?`, digest); err != nil {
		return fmt.Errorf("failed to delete cached entry: %w", err)
	}
	return nil
}

// DeleteExpired removes all expired cache entries and returns how many were removed
func (r *ScanCacheStore) DeleteExpired() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM scan_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired entries: %w", err)
	}
	return rowsAffected, nil
}

// CacheEntry is a persisted result together with its stored expiry
type CacheEntry struct {
	Result    *parser.ProcessResult
	ExpiresAt time.Time
}

// LoadAll loads all non-expired cache entries.
// Used for warming the in-memory cache on startup.
func (r *ScanCacheStore) LoadAll() (map[string]CacheEntry, error) {
	query := `SELECT content_digest, result_data, expires_at FROM scan_cache WHERE expires_at > ?`

	rows, err := r.db.Query(query, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to load cache entries: %w", err)
	}
	defer rows.Close()

	cache := make(map[string]CacheEntry)

	for rows.Next() {
		var digest, resultData string
		var expiresAt time.Time
		if err := rows.Scan(&digest, &resultData, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}

		var result parser.ProcessResult
		if err := json.Unmarshal([]byte(resultData), &result); err != nil {
			// Corrupt rows are skipped, they expire on their own
			continue
		}

		cache[digest] = CacheEntry{Result: &result, ExpiresAt: expiresAt}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cache entries: %w", err)
	}

	return cache, nil
}

// GetStats returns the total and expired entry counts
func (r *ScanCacheStore) GetStats() (int, int, error) {
	var total, expired int

	if err := r.db.QueryRow("SELECT COUNT(*) FROM scan_cache").Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("failed to get total cache entries: %w", err)
	}

	err := r.db.QueryRow("SELECT COUNT(*) FROM scan_cache WHERE expires_at <= ?", time.Now().UTC()).Scan(&expired)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get expired cache entries: %w", err)
	}

	return total, expired, nil
}
