package sqlite

import (
	"database/sql"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database at path and creates the episodes table if
// it doesn't exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS episodes (
		id INTEGER PRIMARY KEY,
		guid TEXT UNIQUE,
		feed_url TEXT,
		file_name TEXT,
		bytes INTEGER,
		downloaded_at DATETIME
	)`)

	if err != nil {
		return nil, err
	}

	return db, nil
}
