package sqliteutil

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// OpenDB opens a SQLite database with the settings every store in this
// codebase relies on: a busy timeout so concurrent readers wait instead
// of failing, WAL journaling, and a single-connection pool so writes are
// serialized (SQLite limitation).
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}
