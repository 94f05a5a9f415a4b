// Package history remembers how far each source has been read so playback can
// resume where it left off.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"
)

// FileName is the database file inside the data directory.
const FileName = "history.db"

// DefaultLimit is the number of entries Recent returns when limit is not
// positive.
const DefaultLimit = 20

// ErrNotFound is returned by Get when a source has no entry.
var ErrNotFound = errors.New("no history for source")

// Entry is the reading position of one source.
type Entry struct {
	Source    string    `json:"source"`
	Position  int       `json:"position"`
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Finished reports whether every segment of the source was read.
func (e Entry) Finished() bool {
	return e.Total > 0 && e.Position >= e.Total
}

// ResumeIndex returns the segment to resume from. A finished read starts over.
func (e Entry) ResumeIndex() int {
	if e.Finished() || e.Position < 0 {
		return 0
	}
	return e.Position
}

// Store is a SQLite-backed reading history.
type Store struct {
	db    *sql.DB
	log   *log.Logger
	clock func() time.Time
}

// Open opens or creates the history database at path.
func Open(ctx context.Context, path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default().WithPrefix("history")
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The subscriber and the CLI share the handle; a single connection keeps
	// SQLite from reporting busy between them.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, log: logger, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS reads (
    source TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    total INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reads_updated ON reads(updated_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores the position reached in source.
func (s *Store) Record(ctx context.Context, source string, position, total int) error {
	if source == "" {
		return errors.New("record history: empty source")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reads(source, position, total, updated_at)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET position=excluded.position, total=excluded.total, updated_at=excluded.updated_at`,
		source, position, total, s.clock().UnixNano())
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// Get returns the entry for source, or ErrNotFound.
func (s *Store) Get(ctx context.Context, source string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT source, position, total, updated_at FROM reads WHERE source = ?`, source)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get history: %w", err)
	}
	return entry, nil
}

// Recent returns up to limit entries, most recently updated first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source, position, total, updated_at FROM reads ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list history: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Forget removes the entry for source. Forgetting an unknown source is not an
// error.
func (s *Store) Forget(ctx context.Context, source string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reads WHERE source = ?`, source); err != nil {
		return fmt.Errorf("forget history: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		entry   Entry
		updated int64
	)
	if err := row.Scan(&entry.Source, &entry.Position, &entry.Total, &updated); err != nil {
		return Entry{}, err
	}
	entry.UpdatedAt = time.Unix(0, updated)
	return entry, nil
}
