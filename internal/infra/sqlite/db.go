package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) the database at databaseURL ("sqlite:./videos.db", "file:..." or a path)
// and makes sure the schema exists.
func Open(databaseURL string) (*sql.DB, error) {
	dsn := normalizeDSN(databaseURL)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure sqlite pragma (%s): %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func normalizeDSN(databaseURL string) string {
	dsn := strings.TrimSpace(databaseURL)
	for _, prefix := range []string{"sqlite3:", "sqlite:"} {
		dsn = strings.TrimPrefix(dsn, prefix)
	}
	if dsn == "" {
		dsn = "./videos.db"
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}
	return dsn
}

func ensureSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS video_files (
			id TEXT PRIMARY KEY,
			original_name TEXT NOT NULL,
			stored_name TEXT NOT NULL,
			extension TEXT NOT NULL,
			size INTEGER NOT NULL,
			uploaded_at INTEGER NOT NULL,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			processed_at INTEGER,
			error_message TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_video_files_user ON video_files(user_id, uploaded_at);`,
		`CREATE TABLE IF NOT EXISTS processing_results (
			id TEXT PRIMARY KEY,
			video_file_id TEXT NOT NULL,
			zip_path TEXT NOT NULL,
			frame_count INTEGER NOT NULL,
			frame_names TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY(video_file_id) REFERENCES video_files(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_processing_results_video ON processing_results(video_file_id, created_at);`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func toNanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }
