package sqlite

import (
	"database/sql"
	"fmt"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite ledger at path and creates the files table if it doesn't exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one writer at a time
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY,
		run_id TEXT NOT NULL,
		file_id TEXT,
		kind TEXT,
		path TEXT NOT NULL,
		size INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		recorded_at DATETIME
	)`)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to create files table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS files_path ON files (path)`)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to create files index: %w", err)
	}

	return db, nil
}
