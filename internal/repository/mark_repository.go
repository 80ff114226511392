package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/photoexchange/server/internal/models"
)

// MarkRepository persists (photo, user) marks for one kind: favourites or
// reports. The UNIQUE(photo_id, user_id) constraint is what keeps two
// concurrent toggles by the same user from both inserting.
type MarkRepository struct {
	db    *sql.DB
	kind  models.MarkKind
	table string
}

// NewFavouriteRepository creates a MarkRepository over the favourites table
func NewFavouriteRepository(db *sql.DB) *MarkRepository {
	return &MarkRepository{db: db, kind: models.MarkFavourite, table: "favourites"}
}

// NewReportRepository creates a MarkRepository over the reports table
func NewReportRepository(db *sql.DB) *MarkRepository {
	return &MarkRepository{db: db, kind: models.MarkReport, table: "reports"}
}

// Kind returns which relation this repository manages
func (r *MarkRepository) Kind() models.MarkKind {
	return r.kind
}

// Exists reports whether the user has marked the photo
func (r *MarkRepository) Exists(ctx context.Context, photoID, userID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM ` + r.table + ` WHERE photo_id = $1 AND user_id = $2)`
	err := r.db.QueryRowContext(ctx, query, photoID, userID).Scan(&exists)
	return exists, err
}

// Insert adds a mark. Returns false without error when the pair already
// exists.
func (r *MarkRepository) Insert(ctx context.Context, photoID, userID int64, at time.Time) (bool, error) {
	query := `INSERT INTO ` + r.table + ` (photo_id, user_id, created_at)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (photo_id, user_id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query, photoID, userID, toUnix(at))
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert %s: %w", r.kind, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Delete removes a mark. Returns whether a row was removed.
func (r *MarkRepository) Delete(ctx context.Context, photoID, userID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM `+r.table+` WHERE photo_id = $1 AND user_id = $2`,
		photoID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", r.kind, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// CountByPhoto returns the number of users that marked the photo
func (r *MarkRepository) CountByPhoto(ctx context.Context, photoID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+r.table+` WHERE photo_id = $1`, photoID,
	).Scan(&count)
	return count, err
}
