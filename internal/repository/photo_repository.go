package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/photoexchange/server/internal/models"
)

const photoColumns = `id, owner_id, exchange_state, exchanged_photo_id, location_map_id, name,
	is_public, lon, lat, uploaded_on, deleted_on, ip_hash`

// PhotoRepository handles photo persistence for SQLite and PostgreSQL.
// Queries use $n placeholders in ascending order, which both drivers accept.
type PhotoRepository struct {
	db *sql.DB
}

// NewPhotoRepository creates a new PhotoRepository
func NewPhotoRepository(db *sql.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPhoto(row rowScanner) (*models.Photo, error) {
	var (
		photo      models.Photo
		state      string
		peerID     sql.NullInt64
		uploadedOn int64
		deletedOn  int64
	)
	if err := row.Scan(
		&photo.ID,
		&photo.OwnerID,
		&state,
		&peerID,
		&photo.LocationMapID,
		&photo.Name,
		&photo.IsPublic,
		&photo.Lon,
		&photo.Lat,
		&uploadedOn,
		&deletedOn,
		&photo.IPHash,
	); err != nil {
		return nil, err
	}

	var peer *int64
	if peerID.Valid {
		peer = &peerID.Int64
	}
	exchange, err := models.ExchangeFromColumns(state, peer)
	if err != nil {
		return nil, fmt.Errorf("photo %d: %w", photo.ID, err)
	}
	photo.Exchange = exchange
	photo.UploadedOn = time.Unix(uploadedOn, 0).UTC()
	photo.DeletedOn = fromUnix(deletedOn)

	return &photo, nil
}

func scanPhotos(rows *sql.Rows) ([]*models.Photo, error) {
	defer rows.Close()

	var photos []*models.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}

	if photos == nil {
		photos = []*models.Photo{}
	}

	return photos, rows.Err()
}

func (r *PhotoRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Photo, error) {
	photo, err := scanPhoto(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return photo, nil
}

// Save inserts a new photo and assigns its ID. Public photos get their
// gallery entry in the same transaction.
func (r *PhotoRepository) Save(ctx context.Context, photo *models.Photo) error {
	state, peer := photo.Exchange.Columns()
	if state == models.ExchangePaired {
		return fmt.Errorf("save photo: new photos cannot be paired")
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO photos (owner_id, exchange_state, exchanged_photo_id, location_map_id, name,
				is_public, lon, lat, uploaded_on, deleted_on, ip_hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id
		`

		var id int64
		err := tx.QueryRowContext(ctx, query,
			photo.OwnerID,
			string(state),
			peer,
			photo.LocationMapID,
			photo.Name,
			photo.IsPublic,
			photo.Lon,
			photo.Lat,
			toUnix(photo.UploadedOn),
			toUnix(photo.DeletedOn),
			photo.IPHash,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert photo: %w", err)
		}

		if photo.IsPublic {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO gallery (photo_id, uploaded_on) VALUES ($1, $2)`,
				id, toUnix(photo.UploadedOn),
			); err != nil {
				return fmt.Errorf("insert gallery entry: %w", err)
			}
		}

		photo.ID = id
		return nil
	})
}

// GetByID retrieves a photo by its ID
func (r *PhotoRepository) GetByID(ctx context.Context, id int64) (*models.Photo, error) {
	return r.getOne(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = $1`, id)
}

// GetByName retrieves a photo by its generated name
func (r *PhotoRepository) GetByName(ctx context.Context, name string) (*models.Photo, error) {
	return r.getOne(ctx, `SELECT `+photoColumns+` FROM photos WHERE name = $1`, name)
}

// GetByIDs retrieves the photos that exist among ids, in no particular order
func (r *PhotoRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.Photo, error) {
	if len(ids) == 0 {
		return []*models.Photo{}, nil
	}

	query := `SELECT ` + photoColumns + ` FROM photos WHERE id IN (` + placeholders(1, len(ids)) + `)`

	rows, err := r.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	return scanPhotos(rows)
}

// FindOldestCandidate returns the oldest open photo that can be exchanged
// with a photo of excludeOwner, or nil when there is none
func (r *PhotoRepository) FindOldestCandidate(ctx context.Context, excludeOwner int64) (*models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE exchange_state = $1
			AND owner_id <> $2
			AND location_map_id > 0
			AND deleted_on = 0
		ORDER BY uploaded_on ASC, id ASC
		LIMIT 1
	`
	return r.getOne(ctx, query, string(models.ExchangeOpen), excludeOwner)
}

// UpdateExchangeState moves a photo between the unpaired states if it is
// still in from. Returns whether exactly one row changed.
func (r *PhotoRepository) UpdateExchangeState(ctx context.Context, id int64, from, to models.ExchangeState) (bool, error) {
	if from == models.ExchangePaired || to == models.ExchangePaired {
		return false, fmt.Errorf("update exchange state: paired photos only change through PairPhotos")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE photos SET exchange_state = $1 WHERE id = $2 AND exchange_state = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// PairPhotos links an open candidate with a claiming photo in one
// transaction. Unless both rows change the transaction is rolled back and
// models.ErrConsistencyViolation is returned; this is how a caller learns a
// concurrent pairing already took the candidate.
func (r *PhotoRepository) PairPhotos(ctx context.Context, candidateID, newID int64) error {
	if candidateID == newID {
		return models.ErrConsistencyViolation
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		candidate, err := tx.ExecContext(ctx, `
			UPDATE photos SET exchange_state = 'paired', exchanged_photo_id = $1
			WHERE id = $2
				AND exchange_state = 'open'
				AND deleted_on = 0
				AND owner_id <> (SELECT owner_id FROM photos WHERE id = $1)
		`, newID, candidateID)
		if err != nil {
			return fmt.Errorf("pair candidate: %w", err)
		}

		claimed, err := tx.ExecContext(ctx, `
			UPDATE photos SET exchange_state = 'paired', exchanged_photo_id = $1
			WHERE id = $2 AND exchange_state = 'claiming'
		`, candidateID, newID)
		if err != nil {
			return fmt.Errorf("pair new photo: %w", err)
		}

		changed, err := sumAffected(candidate, claimed)
		if err != nil {
			return err
		}
		if changed != 2 {
			return models.ErrConsistencyViolation
		}
		return nil
	})
}

// SetLocationMap attaches a preview map to a live photo
func (r *PhotoRepository) SetLocationMap(ctx context.Context, id, mapID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE photos SET location_map_id = $1 WHERE id = $2 AND deleted_on = 0`,
		mapID, id,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ListAliveUploadedBefore returns up to limit live photos uploaded before
// cutoff that come after the cursor, oldest first
func (r *PhotoRepository) ListAliveUploadedBefore(ctx context.Context, cutoff time.Time, after PhotoCursor, limit int) ([]*models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE deleted_on = 0 AND uploaded_on < $1
			AND (uploaded_on > $2 OR (uploaded_on = $2 AND id > $3))
		ORDER BY uploaded_on ASC, id ASC
		LIMIT $4
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff.Unix(), toUnix(after.UploadedOn), after.ID, limit)
	if err != nil {
		return nil, err
	}
	return scanPhotos(rows)
}

// ListDeletedBefore returns up to limit soft-deleted photos whose deletion
// happened before cutoff
func (r *PhotoRepository) ListDeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE deleted_on > 0 AND deleted_on < $1
		ORDER BY deleted_on ASC, id ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff.Unix(), limit)
	if err != nil {
		return nil, err
	}
	return scanPhotos(rows)
}

// MarkManyDeleted soft deletes the live photos among ids. A paired photo is
// only marked when its peer is among ids too or already deleted; the check
// runs in the UPDATE itself, so a photo paired after the caller looked at it
// stays alive. Returns the number of photos actually marked.
func (r *PhotoRepository) MarkManyDeleted(ctx context.Context, ids []int64, ts time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if ts.Unix() <= 0 {
		return 0, fmt.Errorf("mark deleted: timestamp must be positive")
	}

	set := placeholders(2, len(ids))
	args := append([]interface{}{ts.Unix()}, int64Args(ids)...)
	query := `
		UPDATE photos SET deleted_on = $1
		WHERE deleted_on = 0
			AND id IN (` + set + `)
			AND (
				exchange_state <> 'paired'
				OR exchanged_photo_id IN (` + set + `)
				OR exchanged_photo_id IN (SELECT id FROM photos WHERE deleted_on > 0)
			)
	`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(affected), nil
}

// HardDeleteMany permanently removes the soft-deleted photos among ids along
// with their gallery entries and favourite/report marks, all in one
// transaction. Returns the IDs that were removed.
func (r *PhotoRepository) HardDeleteMany(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}

	var removed []int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM photos WHERE deleted_on > 0 AND id IN (`+placeholders(1, len(ids))+`)`,
			int64Args(ids)...,
		)
		if err != nil {
			return fmt.Errorf("select deleted photos: %w", err)
		}

		var targets []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			targets = append(targets, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(targets) == 0 {
			return nil
		}

		in := `(` + placeholders(1, len(targets)) + `)`
		args := int64Args(targets)

		for _, table := range []string{"favourites", "reports", "gallery"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE photo_id IN `+in, args...); err != nil {
				return fmt.Errorf("delete from %s: %w", table, err)
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE id IN `+in, args...)
		if err != nil {
			return fmt.Errorf("delete photos: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if int(affected) != len(targets) {
			return models.ErrConsistencyViolation
		}

		removed = targets
		return nil
	})
	if err != nil {
		return nil, err
	}

	if removed == nil {
		removed = []int64{}
	}
	return removed, nil
}

// ListGallery returns live public photos, newest first
func (r *PhotoRepository) ListGallery(ctx context.Context, skip, take int) ([]*models.Photo, error) {
	query := `
		SELECT ` + prefixedPhotoColumns("p") + `
		FROM gallery g
		INNER JOIN photos p ON p.id = g.photo_id
		WHERE p.deleted_on = 0
		ORDER BY g.uploaded_on DESC, g.photo_id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, take, skip)
	if err != nil {
		return nil, err
	}
	return scanPhotos(rows)
}

// GalleryCount returns the number of live public photos
func (r *PhotoRepository) GalleryCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM gallery g
		INNER JOIN photos p ON p.id = g.photo_id
		WHERE p.deleted_on = 0
	`).Scan(&count)
	return count, err
}

func prefixedPhotoColumns(alias string) string {
	cols := strings.Split(photoColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func sumAffected(results ...sql.Result) (int64, error) {
	var total int64
	for _, result := range results {
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += affected
	}
	return total, nil
}
