package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/photoexchange/server/internal/models"
	"github.com/photoexchange/server/internal/observability"
	"github.com/photoexchange/server/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ToggleStatus is the result of flipping a favourite or report mark
type ToggleStatus string

const (
	ToggleFavourited        ToggleStatus = "favourited"
	ToggleUnfavourited      ToggleStatus = "unfavourited"
	ToggleReported          ToggleStatus = "reported"
	ToggleUnreported        ToggleStatus = "unreported"
	TogglePhotoDoesNotExist ToggleStatus = "photo_does_not_exist"
	ToggleUserDoesNotExist  ToggleStatus = "user_does_not_exist"
)

// ToggleResult carries the toggle status; Count is the photo's favourite
// total after a favourite toggle and nil otherwise
type ToggleResult struct {
	Status ToggleStatus
	Count  *int
}

// ToggleService flips per-user favourite and report marks on photos
type ToggleService struct {
	photos     repository.PhotoRepo
	users      repository.UserRepo
	favourites repository.MarkRepo
	reports    repository.MarkRepo
	clock      Clock
	metrics    *observability.ExchangeMetrics
}

// NewToggleService creates a new ToggleService
func NewToggleService(
	photos repository.PhotoRepo,
	users repository.UserRepo,
	favourites repository.MarkRepo,
	reports repository.MarkRepo,
	clock Clock,
	metrics *observability.ExchangeMetrics,
) *ToggleService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ToggleService{
		photos:     photos,
		users:      users,
		favourites: favourites,
		reports:    reports,
		clock:      clock,
		metrics:    metrics,
	}
}

// ToggleFavourite marks or unmarks photoName as a favourite of the user
func (s *ToggleService) ToggleFavourite(ctx context.Context, userHandle, photoName string) (*ToggleResult, error) {
	return s.toggle(ctx, s.favourites, userHandle, photoName, ToggleFavourited, ToggleUnfavourited)
}

// ToggleReport marks or unmarks photoName as reported by the user
func (s *ToggleService) ToggleReport(ctx context.Context, userHandle, photoName string) (*ToggleResult, error) {
	return s.toggle(ctx, s.reports, userHandle, photoName, ToggleReported, ToggleUnreported)
}

func (s *ToggleService) toggle(
	ctx context.Context,
	marks repository.MarkRepo,
	userHandle, photoName string,
	onStatus, offStatus ToggleStatus,
) (*ToggleResult, error) {
	kind := string(marks.Kind())
	ctx, span := observability.StartServiceSpan(ctx, "ToggleService", "Toggle",
		observability.PhotoName(photoName),
		attribute.String("mark.kind", kind),
	)
	defer span.End()

	done := func(result *ToggleResult) (*ToggleResult, error) {
		s.metrics.RecordToggle(ctx, kind, string(result.Status))
		span.SetAttributes(observability.Outcome(string(result.Status)))
		observability.SetSuccess(span)
		return result, nil
	}

	userID, photo, missing, err := s.target(ctx, span, userHandle, photoName)
	if err != nil {
		return nil, err
	}
	if missing != "" {
		return done(&ToggleResult{Status: missing})
	}

	marked, err := s.toggleMark(ctx, marks, photo.ID, userID)
	if err != nil {
		return nil, s.storeError(span, "toggle "+kind, err)
	}

	result := &ToggleResult{Status: offStatus}
	if marked {
		result.Status = onStatus
	}

	if marks.Kind() == models.MarkFavourite {
		count, err := marks.CountByPhoto(ctx, photo.ID)
		if err != nil {
			return nil, s.storeError(span, "count favourites", err)
		}
		result.Count = &count
	}

	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"photo_id": photo.ID,
		"user_id":  userID,
		"status":   result.Status,
	}).Debug("Mark toggled")

	return done(result)
}

// FavouriteStatus reports whether the user currently favourites photoName,
// with the photo's favourite count. Nothing is changed.
func (s *ToggleService) FavouriteStatus(ctx context.Context, userHandle, photoName string) (*ToggleResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ToggleService", "FavouriteStatus",
		observability.PhotoName(photoName),
	)
	defer span.End()

	userID, photo, missing, err := s.target(ctx, span, userHandle, photoName)
	if err != nil {
		return nil, err
	}
	if missing != "" {
		observability.SetSuccess(span)
		return &ToggleResult{Status: missing}, nil
	}

	favourited, err := s.favourites.Exists(ctx, photo.ID, userID)
	if err != nil {
		return nil, s.storeError(span, "check favourite", err)
	}
	count, err := s.favourites.CountByPhoto(ctx, photo.ID)
	if err != nil {
		return nil, s.storeError(span, "count favourites", err)
	}

	result := &ToggleResult{Status: ToggleUnfavourited, Count: &count}
	if favourited {
		result.Status = ToggleFavourited
	}
	observability.SetSuccess(span)
	return result, nil
}

// target resolves the user and the live photo a mark refers to. When either
// is missing it returns the matching status instead.
func (s *ToggleService) target(ctx context.Context, span trace.Span, userHandle, photoName string) (int64, *models.Photo, ToggleStatus, error) {
	userID, err := s.users.Resolve(ctx, userHandle)
	if errors.Is(err, models.ErrUserNotFound) {
		return 0, nil, ToggleUserDoesNotExist, nil
	}
	if err != nil {
		return 0, nil, "", s.storeError(span, "resolve user", err)
	}

	if !models.IsValidPhotoName(photoName) {
		return 0, nil, TogglePhotoDoesNotExist, nil
	}
	photo, err := s.photos.GetByName(ctx, photoName)
	if err != nil {
		return 0, nil, "", s.storeError(span, "get photo", err)
	}
	if photo == nil || photo.IsDeleted() {
		return 0, nil, TogglePhotoDoesNotExist, nil
	}
	return userID, photo, "", nil
}

// toggleMark flips the (photo, user) mark and returns whether it is now
// set. An insert that hits the unique constraint lost a race against a
// concurrent toggle by the same user, so it takes the delete branch.
func (s *ToggleService) toggleMark(ctx context.Context, marks repository.MarkRepo, photoID, userID int64) (bool, error) {
	deleted, err := marks.Delete(ctx, photoID, userID)
	if err != nil {
		return false, err
	}
	if deleted {
		return false, nil
	}

	inserted, err := marks.Insert(ctx, photoID, userID, s.clock.Now())
	if err != nil {
		return false, err
	}
	if inserted {
		return true, nil
	}

	if _, err := marks.Delete(ctx, photoID, userID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *ToggleService) storeError(span trace.Span, op string, err error) error {
	err = fmt.Errorf("%w: %s: %w", models.ErrTransientStore, op, err)
	observability.RecordError(span, err)
	return err
}
