package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/photoexchange/server/internal/models"
	"github.com/photoexchange/server/internal/observability"
	"github.com/photoexchange/server/internal/repository"
)

// DefaultExchangeMaxAttempts bounds how many candidates one upload may lose
// to concurrent uploads before giving up
const DefaultExchangeMaxAttempts = 3

// ExchangeOutcome tells how a TryDoExchange call ended
type ExchangeOutcome string

const (
	// OutcomePaired means the new photo is now paired with a candidate
	OutcomePaired ExchangeOutcome = "paired"
	// OutcomeNoCandidate means no other user's photo was open
	OutcomeNoCandidate ExchangeOutcome = "no_candidate"
	// OutcomeContended means every candidate tried was taken concurrently
	OutcomeContended ExchangeOutcome = "contended"
	// OutcomeUserUnknown means the uploader's handle did not resolve
	OutcomeUserUnknown ExchangeOutcome = "user_unknown"
)

// ExchangeResult is the outcome of one exchange. Photo is the uploaded photo
// with its final exchange state; Exchanged is set only for OutcomePaired.
type ExchangeResult struct {
	Outcome   ExchangeOutcome
	Photo     *models.Photo
	Exchanged *models.Photo
	Attempts  int
}

// ExchangeService pairs newly uploaded photos with the oldest open photo of
// another user. Concurrent uploads are arbitrated by the store: a pairing
// only commits when both rows are still in their expected state.
type ExchangeService struct {
	photos      repository.PhotoRepo
	users       repository.UserRepo
	maxAttempts int
	metrics     *observability.ExchangeMetrics
}

// NewExchangeService creates a new ExchangeService. A maxAttempts below 1
// falls back to DefaultExchangeMaxAttempts.
func NewExchangeService(
	photos repository.PhotoRepo,
	users repository.UserRepo,
	maxAttempts int,
	metrics *observability.ExchangeMetrics,
) *ExchangeService {
	if maxAttempts < 1 {
		maxAttempts = DefaultExchangeMaxAttempts
	}
	return &ExchangeService{
		photos:      photos,
		users:       users,
		maxAttempts: maxAttempts,
		metrics:     metrics,
	}
}

// TryDoExchange pairs newPhoto, which must be saved and claiming, with a
// candidate. Whenever the photo does not end up paired it is moved to open
// so that a later upload can pick it.
func (s *ExchangeService) TryDoExchange(ctx context.Context, userHandle string, newPhoto *models.Photo) (*ExchangeResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ExchangeService", "TryDoExchange",
		observability.PhotoID(newPhoto.ID),
	)
	defer span.End()

	logger := observability.WithContext(ctx).WithField("photo_id", newPhoto.ID)
	result := &ExchangeResult{Photo: newPhoto}

	finish := func(outcome ExchangeOutcome) (*ExchangeResult, error) {
		result.Outcome = outcome
		span.SetAttributes(observability.Outcome(string(outcome)))
		observability.SetSuccess(span)
		s.metrics.RecordExchange(ctx, string(outcome), result.Attempts)
		return result, nil
	}

	fail := func(op string, err error) (*ExchangeResult, error) {
		s.markOpen(ctx, newPhoto, logger)
		err = fmt.Errorf("%w: %s: %w", models.ErrTransientStore, op, err)
		observability.RecordError(span, err)
		logger.WithError(err).Error("Exchange aborted")
		return nil, err
	}

	userID, err := s.users.Resolve(ctx, userHandle)
	if errors.Is(err, models.ErrUserNotFound) {
		logger.WithField("handle", userHandle).Warn("Exchange requested for unknown user")
		s.markOpen(ctx, newPhoto, logger)
		return finish(OutcomeUserUnknown)
	}
	if err != nil {
		return fail("resolve user", err)
	}

	for result.Attempts < s.maxAttempts {
		candidate, err := s.photos.FindOldestCandidate(ctx, userID)
		if err != nil {
			return fail("find candidate", err)
		}
		if candidate == nil {
			s.markOpen(ctx, newPhoto, logger)
			return finish(OutcomeNoCandidate)
		}

		result.Attempts++
		err = s.photos.PairPhotos(ctx, candidate.ID, newPhoto.ID)
		if errors.Is(err, models.ErrConsistencyViolation) {
			logger.WithField("candidate_id", candidate.ID).
				Debugf("Candidate taken concurrently (attempt %d/%d)", result.Attempts, s.maxAttempts)
			observability.AddEvent(span, "candidate_contended", observability.PhotoID(candidate.ID))
			continue
		}
		if err != nil {
			return fail("pair photos", err)
		}

		candidate.Exchange = models.PairedExchange(newPhoto.ID)
		newPhoto.Exchange = models.PairedExchange(candidate.ID)
		result.Exchanged = candidate

		logger.WithField("exchanged_id", candidate.ID).Info("Photos exchanged")
		return finish(OutcomePaired)
	}

	logger.Warnf("Exchange gave up after %d contended attempts", result.Attempts)
	s.markOpen(ctx, newPhoto, logger)
	return finish(OutcomeContended)
}

// markOpen moves a still-claiming photo to open, even when ctx is already
// cancelled. Failures are logged only; the photo then stays claiming until an
// operator or the lifecycle removes it.
func (s *ExchangeService) markOpen(ctx context.Context, photo *models.Photo, logger *observability.Logger) {
	changed, err := s.photos.UpdateExchangeState(context.WithoutCancel(ctx), photo.ID, models.ExchangeClaiming, models.ExchangeOpen)
	if err != nil {
		logger.WithError(err).Error("Failed to mark photo open")
		return
	}
	if changed {
		photo.Exchange = models.OpenExchange()
	}
}
