package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/photoexchange/server/internal/models"
	"github.com/photoexchange/server/internal/observability"
	"github.com/photoexchange/server/internal/repository"
)

// PhotoStore writes the original file of a photo
type PhotoStore interface {
	Store(reader io.Reader, name string) error
}

// UploadRequest describes one photo upload
type UploadRequest struct {
	UserHandle string
	Lon        float64
	Lat        float64
	IsPublic   bool
	RemoteAddr string
}

// UploadService stores a new photo and immediately tries to exchange it
type UploadService struct {
	users    repository.UserRepo
	photos   repository.PhotoRepo
	store    PhotoStore
	hasher   *IPHasher
	maps     LocationMapResolver
	exchange *ExchangeService
	clock    Clock
}

// NewUploadService creates a new UploadService
func NewUploadService(
	users repository.UserRepo,
	photos repository.PhotoRepo,
	store PhotoStore,
	hasher *IPHasher,
	maps LocationMapResolver,
	exchange *ExchangeService,
	clock Clock,
) *UploadService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &UploadService{
		users:    users,
		photos:   photos,
		store:    store,
		hasher:   hasher,
		maps:     maps,
		exchange: exchange,
		clock:    clock,
	}
}

// Upload saves the photo, writes its file, attaches its location map and
// runs the exchange. The photo only becomes a candidate for others once the
// map is attached, which happens after the file is written.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest, file io.Reader) (*ExchangeResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "UploadService", "Upload")
	defer span.End()

	userID, err := s.users.Resolve(ctx, req.UserHandle)
	if err != nil {
		if !errors.Is(err, models.ErrUserNotFound) {
			err = fmt.Errorf("%w: resolve user: %w", models.ErrTransientStore, err)
		}
		observability.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(observability.UserID(userID))

	photo, err := models.NewPhoto(userID, req.Lon, req.Lat, req.IsPublic, s.clock.Now(), s.hasher.Hash(req.RemoteAddr))
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	if err := s.photos.Save(ctx, photo); err != nil {
		err = fmt.Errorf("%w: save photo: %w", models.ErrTransientStore, err)
		observability.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(observability.PhotoID(photo.ID), observability.PhotoName(photo.Name))

	logger := observability.WithContext(ctx).WithFields(map[string]interface{}{
		"photo_id": photo.ID,
		"user_id":  userID,
	})

	if err := s.store.Store(file, photo.Name); err != nil {
		s.abandon(ctx, photo, logger)
		err = fmt.Errorf("store photo file: %w", err)
		observability.RecordError(span, err)
		logger.WithError(err).Error("Failed to store uploaded file")
		return nil, err
	}

	mapID := s.maps.Resolve(photo.Lon, photo.Lat)
	attached, err := s.photos.SetLocationMap(ctx, photo.ID, mapID)
	if err != nil || !attached {
		s.abandon(ctx, photo, logger)
		if err == nil {
			err = models.ErrPhotoNotFound
		}
		err = fmt.Errorf("%w: attach location map: %w", models.ErrTransientStore, err)
		observability.RecordError(span, err)
		return nil, err
	}
	photo.LocationMapID = mapID

	result, err := s.exchange.TryDoExchange(ctx, req.UserHandle, photo)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(observability.Outcome(string(result.Outcome)))
	observability.SetSuccess(span)
	return result, nil
}

// abandon moves a photo whose upload could not complete out of the
// claiming state. Without a location map it is never offered to others and
// the lifecycle eventually removes it.
func (s *UploadService) abandon(ctx context.Context, photo *models.Photo, logger *observability.Logger) {
	changed, err := s.photos.UpdateExchangeState(context.WithoutCancel(ctx), photo.ID, models.ExchangeClaiming, models.ExchangeOpen)
	if err != nil {
		logger.WithError(err).Error("Failed to mark abandoned photo open")
		return
	}
	if changed {
		photo.Exchange = models.OpenExchange()
	}
}
