package repository

import (
	"context"
	"time"

	"github.com/photoexchange/server/internal/models"
)

// PhotoCursor positions a listing after a photo in (uploaded_on, id) order.
// The zero value starts from the oldest photo.
type PhotoCursor struct {
	UploadedOn time.Time
	ID         int64
}

// CursorAfter returns the cursor just past photo
func CursorAfter(photo *models.Photo) PhotoCursor {
	return PhotoCursor{UploadedOn: photo.UploadedOn, ID: photo.ID}
}

// PhotoRepo defines the interface for photo persistence operations
type PhotoRepo interface {
	Save(ctx context.Context, photo *models.Photo) error
	GetByID(ctx context.Context, id int64) (*models.Photo, error)
	GetByName(ctx context.Context, name string) (*models.Photo, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*models.Photo, error)
	FindOldestCandidate(ctx context.Context, excludeOwner int64) (*models.Photo, error)
	UpdateExchangeState(ctx context.Context, id int64, from, to models.ExchangeState) (bool, error)
	PairPhotos(ctx context.Context, candidateID, newID int64) error
	SetLocationMap(ctx context.Context, id, mapID int64) (bool, error)
	ListAliveUploadedBefore(ctx context.Context, cutoff time.Time, after PhotoCursor, limit int) ([]*models.Photo, error)
	ListDeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Photo, error)
	MarkManyDeleted(ctx context.Context, ids []int64, ts time.Time) (int, error)
	HardDeleteMany(ctx context.Context, ids []int64) ([]int64, error)
	ListGallery(ctx context.Context, skip, take int) ([]*models.Photo, error)
	GalleryCount(ctx context.Context) (int, error)
}

// MarkRepo defines the interface for favourite/report mark persistence
type MarkRepo interface {
	Kind() models.MarkKind
	Exists(ctx context.Context, photoID, userID int64) (bool, error)
	Insert(ctx context.Context, photoID, userID int64, at time.Time) (bool, error)
	Delete(ctx context.Context, photoID, userID int64) (bool, error)
	CountByPhoto(ctx context.Context, photoID int64) (int, error)
}

// UserRepo defines the interface for the user directory
type UserRepo interface {
	Add(ctx context.Context, user *models.User) error
	GetByHandle(ctx context.Context, handle string) (*models.User, error)
	Resolve(ctx context.Context, handle string) (int64, error)
}

var (
	_ PhotoRepo = (*PhotoRepository)(nil)
	_ MarkRepo  = (*MarkRepository)(nil)
	_ UserRepo  = (*UserRepository)(nil)
)
