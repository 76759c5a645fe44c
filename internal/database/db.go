// Copyright 2024 Package Tracking System
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sql.DB connection and provides access to stores
type DB struct {
	*sql.DB
	Scans     *ScanStore
	ScanCache *ScanCacheStore
}

// Open opens a database connection and initializes stores
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := New(db)

	if err := database.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return database, nil
}

// New wraps an existing connection without running migrations
func New(db *sql.DB) *DB {
	return &DB{
		DB:        db,
		Scans:     NewScanStore(db),
		ScanCache: NewScanCacheStore(db),
	}
}

// migrate creates the database schema
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		size_bytes INTEGER,
		timestamp TEXT,
		container_id TEXT,
		validation_status TEXT,
		raw_text_preview TEXT,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS scan_cache (
		content_digest TEXT PRIMARY KEY,
		result_data TEXT NOT NULL,
		cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scans_created ON scans(created_at);
	CREATE INDEX IF NOT EXISTS idx_scans_container ON scans(container_id);
	CREATE INDEX IF NOT EXISTS idx_scan_cache_expires ON scan_cache(expires_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return db.migrateDigestFields()
}

// migrateDigestFields adds content digest and candidate columns to databases created
// before result caching existed
func (db *DB) migrateDigestFields() error {
	var columnExists int
	err := db.QueryRow(`
		SELECT COUNT(*)
		FROM pragma_table_info('scans')
		WHERE name = 'content_digest'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check content_digest column existence: %w", err)
	}

	if columnExists == 0 {
		alterQueries := []string{
			"ALTER TABLE scans ADD COLUMN content_digest TEXT",
			"ALTER TABLE scans ADD COLUMN candidates TEXT",
			"CREATE INDEX IF NOT EXISTS idx_scans_digest ON scans(content_digest)",
		}

		for _, query := range alterQueries {
			if _, err := db.Exec(query); err != nil {
				return fmt.Errorf("failed to execute digest migration query '%s': %w", query, err)
			}
		}
	}

	return nil
}

// IsHealthy checks if the database connection is healthy
func (db *DB) IsHealthy() error {
	return db.Ping()
}
