package services

import (
	"context"
	"fmt"
	"time"

	"github.com/photoexchange/server/internal/models"
	"github.com/photoexchange/server/internal/observability"
	"github.com/photoexchange/server/internal/repository"
	"go.opentelemetry.io/otel/attribute"
)

// Purger removes a photo's stored files
type Purger interface {
	Purge(name string) error
}

// LifecycleService expires old photos in two steps: a soft delete that
// keeps exchanged pairs together, then a hard delete of rows that have been
// soft deleted long enough, followed by a best-effort file purge.
type LifecycleService struct {
	photos  repository.PhotoRepo
	purger  Purger
	metrics *observability.ExchangeMetrics
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(photos repository.PhotoRepo, purger Purger, metrics *observability.ExchangeMetrics) *LifecycleService {
	return &LifecycleService{
		photos:  photos,
		purger:  purger,
		metrics: metrics,
	}
}

// SoftDeleteOlderThan marks up to maxBatch live photos uploaded before
// uploadedBefore as deleted at now. A paired photo only goes together with
// its peer, and only when the peer was uploaded before the cutoff too, so
// a user never loses the photo they received while their own is fresh.
// Photos that have to stay are paged past, so they never hide eligible
// photos behind them. A pair is never split, which can take the count one
// past maxBatch. Returns the number of photos marked.
func (s *LifecycleService) SoftDeleteOlderThan(ctx context.Context, uploadedBefore, now time.Time, maxBatch int) (int, error) {
	ctx, span := observability.StartServiceSpan(ctx, "LifecycleService", "SoftDeleteOlderThan",
		attribute.Int64("cutoff", uploadedBefore.Unix()),
		attribute.Int("max_batch", maxBatch),
	)
	defer span.End()

	if maxBatch <= 0 {
		return 0, nil
	}

	logger := observability.WithContext(ctx)

	sel := &softDeleteSelection{
		cutoff:   uploadedBefore.Unix(),
		selected: make(map[int64]bool),
		logger:   logger,
	}

	var after repository.PhotoCursor
	for len(sel.ids) < maxBatch {
		page, err := s.photos.ListAliveUploadedBefore(ctx, uploadedBefore, after, maxBatch)
		if err != nil {
			err = fmt.Errorf("%w: list expired photos: %w", models.ErrTransientStore, err)
			observability.RecordError(span, err)
			return 0, err
		}
		if len(page) == 0 {
			break
		}

		known, err := s.withPeers(ctx, page)
		if err != nil {
			observability.RecordError(span, err)
			return 0, err
		}

		for _, photo := range page {
			if len(sel.ids) >= maxBatch {
				break
			}
			sel.consider(photo, known)
		}

		if len(page) < maxBatch {
			break
		}
		after = repository.CursorAfter(page[len(page)-1])
	}

	if len(sel.ids) == 0 {
		s.metrics.RecordSoftDelete(ctx, 0, sel.skipped)
		observability.SetSuccess(span)
		return 0, nil
	}

	marked, err := s.photos.MarkManyDeleted(ctx, sel.ids, now)
	if err != nil {
		err = fmt.Errorf("%w: mark deleted: %w", models.ErrTransientStore, err)
		observability.RecordError(span, err)
		return 0, err
	}

	s.metrics.RecordSoftDelete(ctx, marked, sel.skipped)
	span.SetAttributes(observability.Count(marked))
	observability.SetSuccess(span)

	logger.WithFields(map[string]interface{}{
		"marked":   marked,
		"selected": len(sel.ids),
		"skipped":  sel.skipped,
	}).Infof("Soft deleted photos uploaded before %s", uploadedBefore.UTC().Format(time.RFC3339))

	return marked, nil
}

// withPeers indexes page by id and loads the peers it links to that are
// not on the page
func (s *LifecycleService) withPeers(ctx context.Context, page []*models.Photo) (map[int64]*models.Photo, error) {
	known := make(map[int64]*models.Photo, len(page))
	for _, photo := range page {
		known[photo.ID] = photo
	}

	var missing []int64
	for _, photo := range page {
		if peerID, ok := photo.Exchange.Peer(); ok {
			if _, found := known[peerID]; !found {
				missing = append(missing, peerID)
			}
		}
	}
	if len(missing) == 0 {
		return known, nil
	}

	peers, err := s.photos.GetByIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("%w: load peers: %w", models.ErrTransientStore, err)
	}
	for _, peer := range peers {
		known[peer.ID] = peer
	}
	return known, nil
}

// softDeleteSelection collects the ids one soft delete pass will mark
type softDeleteSelection struct {
	cutoff   int64
	selected map[int64]bool
	ids      []int64
	skipped  int
	logger   *observability.Logger
}

func (sel *softDeleteSelection) add(id int64) {
	if !sel.selected[id] {
		sel.selected[id] = true
		sel.ids = append(sel.ids, id)
	}
}

func (sel *softDeleteSelection) consider(photo *models.Photo, known map[int64]*models.Photo) {
	peerID, paired := photo.Exchange.Peer()
	if !paired {
		sel.add(photo.ID)
		return
	}

	peer := known[peerID]
	if peer == nil {
		sel.logger.WithFields(map[string]interface{}{
			"photo_id": photo.ID,
			"peer_id":  peerID,
		}).Warn("Skipping photo paired with a missing peer")
		sel.skipped++
		return
	}
	if back, ok := peer.Exchange.Peer(); !ok || back != photo.ID {
		sel.logger.WithFields(map[string]interface{}{
			"photo_id":      photo.ID,
			"peer_id":       peerID,
			"peer_exchange": peer.Exchange.String(),
		}).Warn("Skipping photo with a one-sided exchange link")
		sel.skipped++
		return
	}

	switch {
	case peer.IsDeleted():
		sel.add(photo.ID)
	case peer.UploadedOn.Unix() < sel.cutoff:
		sel.add(photo.ID)
		sel.add(peer.ID)
	}
}

// HardDeletePurge permanently removes up to maxBatch photos soft deleted
// before deletedBefore, then purges their files. Purge failures are logged
// and never undo the row deletion. Returns the number of rows removed.
func (s *LifecycleService) HardDeletePurge(ctx context.Context, deletedBefore time.Time, maxBatch int) (int, error) {
	ctx, span := observability.StartServiceSpan(ctx, "LifecycleService", "HardDeletePurge",
		attribute.Int64("cutoff", deletedBefore.Unix()),
		attribute.Int("max_batch", maxBatch),
	)
	defer span.End()

	if maxBatch <= 0 {
		return 0, nil
	}

	logger := observability.WithContext(ctx)

	expired, err := s.photos.ListDeletedBefore(ctx, deletedBefore, maxBatch)
	if err != nil {
		err = fmt.Errorf("%w: list deleted photos: %w", models.ErrTransientStore, err)
		observability.RecordError(span, err)
		return 0, err
	}
	if len(expired) == 0 {
		observability.SetSuccess(span)
		return 0, nil
	}

	names := make(map[int64]string, len(expired))
	ids := make([]int64, 0, len(expired))
	for _, photo := range expired {
		names[photo.ID] = photo.Name
		ids = append(ids, photo.ID)
	}

	removed, err := s.photos.HardDeleteMany(ctx, ids)
	if err != nil {
		err = fmt.Errorf("%w: hard delete: %w", models.ErrTransientStore, err)
		observability.RecordError(span, err)
		return 0, err
	}

	failures := 0
	if s.purger != nil {
		for _, id := range removed {
			if err := s.purger.Purge(names[id]); err != nil {
				failures++
				logger.WithError(err).WithFields(map[string]interface{}{
					"photo_id":   id,
					"photo_name": names[id],
				}).Error("Failed to purge photo files")
			}
		}
	}

	s.metrics.RecordHardDelete(ctx, len(removed), failures)
	span.SetAttributes(observability.Count(len(removed)))
	observability.SetSuccess(span)

	logger.WithFields(map[string]interface{}{
		"removed":        len(removed),
		"purge_failures": failures,
	}).Info("Hard deleted expired photos")

	return len(removed), nil
}
