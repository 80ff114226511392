package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL database connection
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		handle TEXT NOT NULL UNIQUE,
		created_at BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS photos (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL REFERENCES users(id),
		exchange_state TEXT NOT NULL DEFAULT 'claiming'
			CHECK (exchange_state IN ('open', 'claiming', 'paired')),
		exchanged_photo_id BIGINT,
		location_map_id BIGINT NOT NULL DEFAULT 0,
		name TEXT NOT NULL UNIQUE,
		is_public BOOLEAN NOT NULL DEFAULT FALSE,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		uploaded_on BIGINT NOT NULL,
		deleted_on BIGINT NOT NULL DEFAULT 0,
		ip_hash TEXT NOT NULL DEFAULT '',
		CHECK ((exchange_state = 'paired') = (exchanged_photo_id IS NOT NULL)),
		CHECK (exchanged_photo_id IS NULL OR exchanged_photo_id <> id)
	);

	CREATE INDEX IF NOT EXISTS idx_photos_candidate ON photos(exchange_state, uploaded_on);
	CREATE INDEX IF NOT EXISTS idx_photos_uploaded_on ON photos(uploaded_on);
	CREATE INDEX IF NOT EXISTS idx_photos_deleted_on ON photos(deleted_on);
	CREATE INDEX IF NOT EXISTS idx_photos_owner_id ON photos(owner_id);

	CREATE TABLE IF NOT EXISTS gallery (
		photo_id BIGINT PRIMARY KEY REFERENCES photos(id),
		uploaded_on BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_gallery_uploaded_on ON gallery(uploaded_on);

	CREATE TABLE IF NOT EXISTS favourites (
		id BIGSERIAL PRIMARY KEY,
		photo_id BIGINT NOT NULL REFERENCES photos(id),
		user_id BIGINT NOT NULL REFERENCES users(id),
		created_at BIGINT NOT NULL,
		UNIQUE(photo_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS reports (
		id BIGSERIAL PRIMARY KEY,
		photo_id BIGINT NOT NULL REFERENCES photos(id),
		user_id BIGINT NOT NULL REFERENCES users(id),
		created_at BIGINT NOT NULL,
		UNIQUE(photo_id, user_id)
	);
	`

	_, err := db.Exec(schema)
	return err
}

func isPostgresUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// isUniqueViolation reports whether err is a unique constraint failure from
// either supported driver
func isUniqueViolation(err error) bool {
	return isSQLiteUniqueViolation(err) || isPostgresUniqueViolation(err)
}
