package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB opens a fresh database file that is removed when the test ends
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "smartscan_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesSchema(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"scans", "scan_cache"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}

	for _, column := range []string{"content_digest", "candidates"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('scans') WHERE name = ?", column).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "column %s should exist", column)
	}

	assert.NoError(t, db.IsHealthy())
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Scans.Create(&Scan{Filename: "scan_1.jpg"}))
	db.Close()

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	stats, err := db.Scans.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestOpen_MigratesLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		size_bytes INTEGER,
		timestamp TEXT,
		container_id TEXT,
		validation_status TEXT,
		raw_text_preview TEXT,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)
	_, err = raw.Exec(`INSERT INTO scans (filename, size_bytes, timestamp, container_id, validation_status)
		VALUES ('scan_20240101_120000.jpg', 2048, '20240101_120000', 'MSCU1234566', 'valid')`)
	require.NoError(t, err)
	raw.Close()

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	scan, err := db.Scans.GetByID(1)
	require.NoError(t, err)
	assert.Equal(t, "scan_20240101_120000.jpg", scan.Filename)
	require.NotNil(t, scan.ContainerID)
	assert.Equal(t, "MSCU1234566", *scan.ContainerID)
	assert.Empty(t, scan.ContentDigest)
	assert.Equal(t, []string{}, scan.Candidates)
}
