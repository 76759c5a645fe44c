package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Validation statuses stored with a scan
const (
	StatusValid   = "valid"
	StatusInvalid = "invalid"
)

// PreviewLength is how much of the recognized text is kept with each scan
const PreviewLength = 200

// Scan is one processed upload
type Scan struct {
	ID               int       `json:"id"`
	Filename         string    `json:"filename"`
	SizeBytes        int64     `json:"size_bytes"`
	Timestamp        string    `json:"timestamp"`
	ContainerID      *string   `json:"container_id"`
	ValidationStatus *string   `json:"validation_status"`
	RawTextPreview   *string   `json:"raw_text_preview"`
	Error            *string   `json:"error"`
	ContentDigest    string    `json:"content_digest,omitempty"`
	Candidates       []string  `json:"candidates"`
	CreatedAt        time.Time `json:"created_at"`
}

// ScanStats summarizes the scan log
type ScanStats struct {
	Total      int `json:"total"`
	Valid      int `json:"valid"`
	Invalid    int `json:"invalid"`
	Unresolved int `json:"unresolved"`
}

// Preview truncates recognized text to PreviewLength runes
func Preview(text string) *string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) > PreviewLength {
		text = string(runes[:PreviewLength])
	}
	return &text
}

// ScanStore handles database operations for scans
type ScanStore struct {
	db *sql.DB
}

func NewScanStore(db *sql.DB) *ScanStore {
	return &ScanStore{db: db}
}

const scanColumns = `id, filename, size_bytes, timestamp, container_id, validation_status,
		raw_text_preview, error, content_digest, candidates, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(row rowScanner) (*Scan, error) {
	var (
		scan       Scan
		sizeBytes  sql.NullInt64
		timestamp  sql.NullString
		digest     sql.NullString
		candidates sql.NullString
	)
	err := row.Scan(&scan.ID, &scan.Filename, &sizeBytes, &timestamp, &scan.ContainerID,
		&scan.ValidationStatus, &scan.RawTextPreview, &scan.Error, &digest, &candidates,
		&scan.CreatedAt)
	if err != nil {
		return nil, err
	}

	scan.SizeBytes = sizeBytes.Int64
	scan.Timestamp = timestamp.String
	scan.ContentDigest = digest.String
	scan.Candidates = []string{}
	if candidates.Valid && candidates.String != "" {
		if err := json.Unmarshal([]byte(candidates.String), &scan.Candidates); err != nil {
			return nil, fmt.Errorf("failed to decode candidates for scan %d: %w", scan.ID, err)
		}
	}
	return &scan, nil
}

// Create inserts a scan record and fills in its ID and creation time
func (s *ScanStore) Create(scan *Scan) error {
	if scan.Candidates == nil {
		scan.Candidates = []string{}
	}
	candidates, err := json.Marshal(scan.Candidates)
	if err != nil {
		return fmt.Errorf("failed to encode candidates: %w", err)
	}

	query := `INSERT INTO scans (filename, size_bytes, timestamp, container_id, validation_status,
			  raw_text_preview, error, content_digest, candidates)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.Exec(query, scan.Filename, scan.SizeBytes, scan.Timestamp,
		scan.ContainerID, scan.ValidationStatus, scan.RawTextPreview, scan.Error,
		scan.ContentDigest, string(candidates))
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	scan.ID = int(id)

	var createdAt time.Time
	if err := s.db.QueryRow("SELECT created_at FROM scans WHERE id = ?", scan.ID).Scan(&createdAt); err != nil {
		return fmt.Errorf("failed to read back scan %d: %w", scan.ID, err)
	}
	scan.CreatedAt = createdAt

	return nil
}

// GetByID returns a scan by ID, or sql.ErrNoRows
func (s *ScanStore) GetByID(id int) (*Scan, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = ?`
	return scanRow(s.db.QueryRow(query, id))
}

// List returns the most recent scans, newest first
func (s *ScanStore) List(limit int) ([]Scan, error) {
	query := `SELECT ` + scanColumns + ` FROM scans ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scans := []Scan{}
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, *scan)
	}

	return scans, rows.Err()
}

// Stats counts scans by validation outcome
func (s *ScanStore) Stats() (*ScanStats, error) {
	query := `SELECT
			  COUNT(*),
			  COALESCE(SUM(CASE WHEN validation_status = 'valid' THEN 1 ELSE 0 END), 0),
			  COALESCE(SUM(CASE WHEN validation_status = 'invalid' THEN 1 ELSE 0 END), 0),
			  COALESCE(SUM(CASE WHEN validation_status IS NULL THEN 1 ELSE 0 END), 0)
			  FROM scans`

	var stats ScanStats
	err := s.db.QueryRow(query).Scan(&stats.Total, &stats.Valid, &stats.Invalid, &stats.Unresolved)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan stats: %w", err)
	}
	return &stats, nil
}
