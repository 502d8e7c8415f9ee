// Package history persists completed dictations and cumulative usage stats
// in a local SQLite database.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	. "github.com/vowrite/vowrite/internal/logging"
	"github.com/vowrite/vowrite/internal/paths"
)

// Record is one completed dictation. Records are immutable once appended.
type Record struct {
	ID               string
	RawTranscript    string
	PolishedText     string
	DurationSeconds  float64
	DetectedLanguage *string
	CreatedAt        time.Time
}

// Totals is the cumulative usage counter set.
type Totals struct {
	TotalSeconds    float64
	TotalWords      int64
	TotalDictations int64
}

// Store wraps the SQLite database holding records and stats.
type Store struct {
	db *sql.DB
}

const currentSchemaVersion = 1

// Open opens (creating if needed) the history database at path. An empty path
// uses the default location under the application directory.
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := paths.HistoryDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		path = p
	}
	if err := paths.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	L_info("history: store opened", "path", path)
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist, start from scratch
		version = 0
	}

	if version >= currentSchemaVersion {
		L_debug("history: schema up to date", "version", version)
		return nil
	}

	migrations := []func(*sql.DB) error{
		migrateV1,
	}
	for i := version; i < len(migrations); i++ {
		if err := migrations[i](s.db); err != nil {
			return fmt.Errorf("migration v%d failed: %w", i+1, err)
		}
		L_debug("history: applied migration", "version", i+1)
	}
	return nil
}

func migrateV1(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);
	INSERT INTO schema_version (version, applied_at) VALUES (1, ?);

	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		raw_transcript TEXT NOT NULL,
		polished_text TEXT NOT NULL,
		duration_seconds REAL NOT NULL,
		detected_language TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at);

	-- Single-row cumulative counters.
	CREATE TABLE IF NOT EXISTS stats (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		total_seconds REAL NOT NULL DEFAULT 0,
		total_words INTEGER NOT NULL DEFAULT 0,
		total_dictations INTEGER NOT NULL DEFAULT 0
	);
	INSERT OR IGNORE INTO stats (id) VALUES (1);
	`
	_, err := db.Exec(schema, time.Now().Unix())
	return err
}

// Append stores a completed dictation. A missing ID or timestamp is filled in.
func (s *Store) Append(rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO records (id, raw_transcript, polished_text, duration_seconds, detected_language, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RawTranscript, rec.PolishedText, rec.DurationSeconds,
		rec.DetectedLanguage, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert record: %w", err)
	}
	L_debug("history: record appended", "id", rec.ID, "chars", len(rec.PolishedText))
	return rec, nil
}

// List returns the most recent records, newest first. limit <= 0 means no limit.
func (s *Store) List(limit int) ([]Record, error) {
	query := "SELECT id, raw_transcript, polished_text, duration_seconds, detected_language, created_at FROM records ORDER BY created_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Search returns records whose raw or polished text contains the substring,
// newest first.
func (s *Store) Search(substr string, limit int) ([]Record, error) {
	pattern := "%" + substr + "%"
	query := `
		SELECT id, raw_transcript, polished_text, duration_seconds, detected_language, created_at
		FROM records
		WHERE raw_transcript LIKE ? OR polished_text LIKE ?
		ORDER BY created_at DESC, id`
	args := []any{pattern, pattern}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var rec Record
		var lang sql.NullString
		var created int64
		if err := rows.Scan(&rec.ID, &rec.RawTranscript, &rec.PolishedText,
			&rec.DurationSeconds, &lang, &created); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if lang.Valid {
			v := lang.String
			rec.DetectedLanguage = &v
		}
		rec.CreatedAt = time.Unix(created, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AddUsage bumps the cumulative counters by one dictation's worth.
func (s *Store) AddUsage(seconds float64, words int) error {
	_, err := s.db.Exec(`
		UPDATE stats SET
			total_seconds = total_seconds + ?,
			total_words = total_words + ?,
			total_dictations = total_dictations + 1
		WHERE id = 1`, seconds, words)
	if err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	return nil
}

// Stats returns the cumulative counters.
func (s *Store) Stats() (Totals, error) {
	var t Totals
	err := s.db.QueryRow(
		"SELECT total_seconds, total_words, total_dictations FROM stats WHERE id = 1",
	).Scan(&t.TotalSeconds, &t.TotalWords, &t.TotalDictations)
	if err != nil {
		return Totals{}, fmt.Errorf("read stats: %w", err)
	}
	return t, nil
}
