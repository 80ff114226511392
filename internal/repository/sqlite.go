package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// sqliteParams: WAL, busy timeout and BEGIN IMMEDIATE transactions
const sqliteParams = "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate"

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?" + sqliteParams
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// Single writer
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Users table (handle -> internal id)
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		handle TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);

	-- Photos table
	CREATE TABLE IF NOT EXISTS photos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL REFERENCES users(id),
		exchange_state TEXT NOT NULL DEFAULT 'claiming'
			CHECK (exchange_state IN ('open', 'claiming', 'paired')),
		exchanged_photo_id INTEGER,
		location_map_id INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL UNIQUE,
		is_public INTEGER NOT NULL DEFAULT 0,
		lon REAL NOT NULL,
		lat REAL NOT NULL,
		uploaded_on INTEGER NOT NULL,
		deleted_on INTEGER NOT NULL DEFAULT 0,
		ip_hash TEXT NOT NULL DEFAULT '',
		CHECK ((exchange_state = 'paired') = (exchanged_photo_id IS NOT NULL)),
		CHECK (exchanged_photo_id IS NULL OR exchanged_photo_id <> id)
	);

	CREATE INDEX IF NOT EXISTS idx_photos_candidate ON photos(exchange_state, uploaded_on);
	CREATE INDEX IF NOT EXISTS idx_photos_uploaded_on ON photos(uploaded_on);
	CREATE INDEX IF NOT EXISTS idx_photos_deleted_on ON photos(deleted_on);
	CREATE INDEX IF NOT EXISTS idx_photos_owner_id ON photos(owner_id);

	-- Public gallery index
	CREATE TABLE IF NOT EXISTS gallery (
		photo_id INTEGER PRIMARY KEY REFERENCES photos(id),
		uploaded_on INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_gallery_uploaded_on ON gallery(uploaded_on);

	-- Favourite marks
	CREATE TABLE IF NOT EXISTS favourites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		photo_id INTEGER NOT NULL REFERENCES photos(id),
		user_id INTEGER NOT NULL REFERENCES users(id),
		created_at INTEGER NOT NULL,
		UNIQUE(photo_id, user_id)
	);

	-- Report marks
	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		photo_id INTEGER NOT NULL REFERENCES photos(id),
		user_id INTEGER NOT NULL REFERENCES users(id),
		created_at INTEGER NOT NULL,
		UNIQUE(photo_id, user_id)
	);
	`

	_, err := db.Exec(schema)
	return err
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
