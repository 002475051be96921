package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/openclaw/audioqr/qrgen"
)

// Record is one finished encode.
type Record struct {
	ID            string `json:"id"`
	Source        string `json:"source"`
	OutputPath    string `json:"output_path,omitempty"`
	PayloadBytes  int    `json:"payload_bytes"`
	Truncated     bool   `json:"truncated"`
	EncodedLength int    `json:"encoded_length"`
	Version       int    `json:"version"`
	ImageSize     int    `json:"image_size"`
	Digest        string `json:"digest"`
	CreatedAt     int64  `json:"created_at"`
}

// FromResult builds a record for an encode of source.
func FromResult(source string, res *qrgen.Result) *Record {
	return &Record{
		Source:        source,
		OutputPath:    res.OutputPath,
		PayloadBytes:  res.PayloadBytes,
		Truncated:     res.Truncated,
		EncodedLength: res.EncodedLength,
		Version:       res.Version,
		ImageSize:     res.ImageSize,
		Digest:        res.Digest,
	}
}

// HistoryStore manages SQLite storage for encode history.
type HistoryStore struct {
	db *sql.DB
}

const createEncodesTable = `
CREATE TABLE IF NOT EXISTS encodes (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    output_path TEXT NOT NULL DEFAULT '',
    payload_bytes INTEGER NOT NULL,
    truncated INTEGER NOT NULL DEFAULT 0,
    encoded_length INTEGER NOT NULL,
    version INTEGER NOT NULL,
    image_size INTEGER NOT NULL,
    digest TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);
`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_encodes_created_at ON encodes(created_at);
`

// Open opens (or creates) the SQLite database at dbPath, initialises the
// schema and returns a ready-to-use HistoryStore.
func Open(dbPath string) (*HistoryStore, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, stmt := range []string{createEncodesTable, createIndexes} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec schema statement: %w", err)
		}
	}

	return &HistoryStore{db: db}, nil
}

// Save inserts rec. An empty ID is filled with a fresh UUID and a zero
// CreatedAt with the current time.
func (s *HistoryStore) Save(rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}

	const query = `
		INSERT INTO encodes
			(id, source, output_path, payload_bytes, truncated, encoded_length, version, image_size, digest, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		rec.ID,
		rec.Source,
		rec.OutputPath,
		rec.PayloadBytes,
		boolToInt(rec.Truncated),
		rec.EncodedLength,
		rec.Version,
		rec.ImageSize,
		rec.Digest,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *HistoryStore) Recent(limit int) ([]Record, error) {
	const query = `
		SELECT id, source, output_path, payload_bytes, truncated, encoded_length,
		       version, image_size, digest, created_at
		FROM encodes
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent records: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var r Record
		var truncated int
		if err := rows.Scan(
			&r.ID, &r.Source, &r.OutputPath, &r.PayloadBytes, &truncated,
			&r.EncodedLength, &r.Version, &r.ImageSize, &r.Digest, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		r.Truncated = truncated != 0
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}
	return recs, nil
}

// Close closes the underlying database connection.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
