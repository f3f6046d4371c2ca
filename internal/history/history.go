// Package history records terminal download outcomes in a sqlite database
// beside the chart store, for the catalog layer to query. All writes are
// best-effort: a broken history database never fails a download.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/tidechart/tidechart/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS download_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	chart_id     TEXT NOT NULL,
	url          TEXT NOT NULL,
	status       TEXT NOT NULL,
	total_bytes  INTEGER NOT NULL DEFAULT 0,
	content_type TEXT NOT NULL DEFAULT '',
	checksum_ok  INTEGER NOT NULL DEFAULT 0,
	finished_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_chart ON download_history(chart_id);
`

// Entry is one terminal download outcome.
type Entry struct {
	ChartID     string
	URL         string
	Status      string
	TotalBytes  int64
	ContentType string
	ChecksumOK  bool
	FinishedAt  time.Time
}

// Store wraps the history database.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// modernc sqlite serializes writes itself; one connection avoids
	// SQLITE_BUSY under concurrent completions.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init history schema: %w", err)
	}
	return &Store{db: db, log: logging.Component("history")}, nil
}

// Record inserts a terminal outcome. Errors are logged, never returned to
// the transfer path.
func (s *Store) Record(e Entry) {
	if s == nil {
		return
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO download_history (chart_id, url, status, total_bytes, content_type, checksum_ok, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ChartID, e.URL, e.Status, e.TotalBytes, e.ContentType, boolToInt(e.ChecksumOK), e.FinishedAt.Unix(),
	)
	if err != nil {
		s.log.Warn().Err(err).Str("chart", e.ChartID).Msg("failed to record download history")
	}
}

// Recent returns the most recent entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.db.Query(
		`SELECT chart_id, url, status, total_bytes, content_type, checksum_ok, finished_at
		 FROM download_history ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var checksumOK int
		var finished int64
		if err := rows.Scan(&e.ChartID, &e.URL, &e.Status, &e.TotalBytes, &e.ContentType, &checksumOK, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.ChecksumOK = checksumOK != 0
		e.FinishedAt = time.Unix(finished, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
