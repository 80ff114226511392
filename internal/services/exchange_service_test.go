package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/photoexchange/server/internal/models"
	"github.com/photoexchange/server/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contendedPhotoRepo loses every pairing to a simulated concurrent caller
type contendedPhotoRepo struct {
	repository.PhotoRepo
	pairCalls int
}

func (r *contendedPhotoRepo) PairPhotos(ctx context.Context, candidateID, newID int64) error {
	r.pairCalls++
	return models.ErrConsistencyViolation
}

// failingCandidateRepo fails candidate lookups
type failingCandidateRepo struct {
	repository.PhotoRepo
}

func (r *failingCandidateRepo) FindOldestCandidate(ctx context.Context, excludeOwner int64) (*models.Photo, error) {
	return nil, errors.New("database is locked")
}

// cancellingUserRepo cancels the caller's request while the handle lookup
// is in flight and reports the user as unknown
type cancellingUserRepo struct {
	repository.UserRepo
	cancel context.CancelFunc
}

func (r *cancellingUserRepo) Resolve(ctx context.Context, handle string) (int64, error) {
	r.cancel()
	return 0, models.ErrUserNotFound
}

// cancellingCandidateRepo cancels the caller's request while the candidate
// lookup is in flight and finds nothing
type cancellingCandidateRepo struct {
	repository.PhotoRepo
	cancel context.CancelFunc
}

func (r *cancellingCandidateRepo) FindOldestCandidate(ctx context.Context, excludeOwner int64) (*models.Photo, error) {
	r.cancel()
	return nil, nil
}

func TestExchangeService_CancelledRequestLeavesPhotoOpen(t *testing.T) {
	tests := []struct {
		name    string
		outcome ExchangeOutcome
		build   func(env *testEnv, cancel context.CancelFunc) *ExchangeService
	}{
		{
			name:    "unknown user",
			outcome: OutcomeUserUnknown,
			build: func(env *testEnv, cancel context.CancelFunc) *ExchangeService {
				return NewExchangeService(env.photos, &cancellingUserRepo{UserRepo: env.users, cancel: cancel}, 3, nil)
			},
		},
		{
			name:    "no candidate",
			outcome: OutcomeNoCandidate,
			build: func(env *testEnv, cancel context.CancelFunc) *ExchangeService {
				return NewExchangeService(&cancellingCandidateRepo{PhotoRepo: env.photos, cancel: cancel}, env.users, 3, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			u1 := env.createUser(t, "u1")
			photo := env.savePhoto(t, u1.ID, 100)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			svc := tt.build(env, cancel)

			result, err := svc.TryDoExchange(ctx, "u1", photo)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, result.Outcome)
			require.Error(t, ctx.Err())
			assert.True(t, env.reload(t, photo).Exchange.IsOpen())
		})
	}
}

func TestExchangeService_TryDoExchange(t *testing.T) {
	ctx := context.Background()

	t.Run("pairs the second upload with the first", func(t *testing.T) {
		env := setupTestEnv(t)
		u1 := env.createUser(t, "u1")
		u2 := env.createUser(t, "u2")
		svc := NewExchangeService(env.photos, env.users, 3, nil)

		p1 := env.savePhoto(t, u1.ID, 100)
		result, err := svc.TryDoExchange(ctx, "u1", p1)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoCandidate, result.Outcome)
		assert.Nil(t, result.Exchanged)
		assert.True(t, env.reload(t, p1).Exchange.IsOpen())

		p2 := env.savePhoto(t, u2.ID, 200)
		result, err = svc.TryDoExchange(ctx, "u2", p2)
		require.NoError(t, err)
		require.Equal(t, OutcomePaired, result.Outcome)
		require.NotNil(t, result.Exchanged)
		assert.Equal(t, p1.ID, result.Exchanged.ID)
		assert.Equal(t, 1, result.Attempts)

		stored1, stored2 := env.reload(t, p1), env.reload(t, p2)
		assert.True(t, stored1.IsPairedWith(stored2))
		assert.True(t, stored2.IsPairedWith(stored1))
		assert.Equal(t, stored2.Exchange, result.Photo.Exchange)
		assert.Equal(t, stored1.Exchange, result.Exchanged.Exchange)
	})

	t.Run("picks the oldest candidate", func(t *testing.T) {
		env := setupTestEnv(t)
		u1 := env.createUser(t, "u1")
		u2 := env.createUser(t, "u2")
		u3 := env.createUser(t, "u3")
		svc := NewExchangeService(env.photos, env.users, 3, nil)

		newer := env.saveOpenPhoto(t, u2.ID, 300)
		older := env.saveOpenPhoto(t, u1.ID, 100)

		result, err := svc.TryDoExchange(ctx, "u3", env.savePhoto(t, u3.ID, 400))
		require.NoError(t, err)
		require.Equal(t, OutcomePaired, result.Outcome)
		assert.Equal(t, older.ID, result.Exchanged.ID)
		assert.True(t, env.reload(t, newer).Exchange.IsOpen())
	})

	t.Run("never pairs photos of the same owner", func(t *testing.T) {
		env := setupTestEnv(t)
		u1 := env.createUser(t, "u1")
		svc := NewExchangeService(env.photos, env.users, 3, nil)

		first := env.saveOpenPhoto(t, u1.ID, 100)
		second := env.savePhoto(t, u1.ID, 200)

		result, err := svc.TryDoExchange(ctx, "u1", second)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoCandidate, result.Outcome)
		assert.True(t, env.reload(t, first).Exchange.IsOpen())
		assert.True(t, env.reload(t, second).Exchange.IsOpen())
	})

	t.Run("unknown user marks the photo open", func(t *testing.T) {
		env := setupTestEnv(t)
		u1 := env.createUser(t, "u1")
		svc := NewExchangeService(env.photos, env.users, 3, nil)

		photo := env.savePhoto(t, u1.ID, 100)
		result, err := svc.TryDoExchange(ctx, "ghost", photo)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUserUnknown, result.Outcome)
		assert.True(t, env.reload(t, photo).Exchange.IsOpen())
	})

	t.Run("gives up after max attempts and marks open", func(t *testing.T) {
		env := setupTestEnv(t)
		u1 := env.createUser(t, "u1")
		u2 := env.createUser(t, "u2")
		repo := &contendedPhotoRepo{PhotoRepo: env.photos}
		svc := NewExchangeService(repo, env.users, 2, nil)

		candidate := env.saveOpenPhoto(t, u1.ID, 100)
		photo := env.savePhoto(t, u2.ID, 200)

		result, err := svc.TryDoExchange(ctx, "u2", photo)
		require.NoError(t, err)
		assert.Equal(t, OutcomeContended, result.Outcome)
		assert.Equal(t, 2, result.Attempts)
		assert.Equal(t, 2, repo.pairCalls)
		assert.True(t, env.reload(t, photo).Exchange.IsOpen())
		assert.True(t, env.reload(t, candidate).Exchange.IsOpen())
	})

	t.Run("defaults max attempts", func(t *testing.T) {
		env := setupTestEnv(t)
		u1 := env.createUser(t, "u1")
		u2 := env.createUser(t, "u2")
		repo := &contendedPhotoRepo{PhotoRepo: env.photos}
		svc := NewExchangeService(repo, env.users, 0, nil)

		env.saveOpenPhoto(t, u1.ID, 100)
		result, err := svc.TryDoExchange(ctx, "u2", env.savePhoto(t, u2.ID, 200))
		require.NoError(t, err)
		assert.Equal(t, DefaultExchangeMaxAttempts, result.Attempts)
	})

	t.Run("store failure is transient and still marks open", func(t *testing.T) {
		env := setupTestEnv(t)
		u1 := env.createUser(t, "u1")
		svc := NewExchangeService(&failingCandidateRepo{PhotoRepo: env.photos}, env.users, 3, nil)

		photo := env.savePhoto(t, u1.ID, 100)
		result, err := svc.TryDoExchange(ctx, "u1", photo)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, models.ErrTransientStore)
		assert.True(t, env.reload(t, photo).Exchange.IsOpen())
	})
}

func TestExchangeService_ConcurrentUploads(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := NewExchangeService(env.photos, env.users, 3, nil)

	const uploaders = 12

	seed := env.createUser(t, "seed")
	env.saveOpenPhoto(t, seed.ID, 1)

	photos := make([]*models.Photo, uploaders)
	for i := range photos {
		user := env.createUser(t, fmt.Sprintf("user-%d", i))
		photos[i] = env.savePhoto(t, user.ID, int64(100+i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, uploaders)
	for i, photo := range photos {
		wg.Add(1)
		go func(handle string, photo *models.Photo) {
			defer wg.Done()
			if _, err := svc.TryDoExchange(ctx, handle, photo); err != nil {
				errs <- err
			}
		}(fmt.Sprintf("user-%d", i), photo)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	all, err := env.photos.ListAliveUploadedBefore(ctx, timeUnix(1000), repository.PhotoCursor{}, 100)
	require.NoError(t, err)
	require.Len(t, all, uploaders+1)

	byID := make(map[int64]*models.Photo, len(all))
	for _, photo := range all {
		byID[photo.ID] = photo
	}

	paired := 0
	for _, photo := range all {
		assert.NotEqual(t, models.ExchangeClaiming, photo.Exchange.State(), "photo %d left claiming", photo.ID)

		peerID, ok := photo.Exchange.Peer()
		if !ok {
			continue
		}
		paired++

		assert.NotEqual(t, photo.ID, peerID, "photo paired with itself")
		peer := byID[peerID]
		require.NotNil(t, peer)
		assert.True(t, photo.IsPairedWith(peer), "photo %d not mirrored by %d", photo.ID, peerID)
		assert.NotEqual(t, photo.OwnerID, peer.OwnerID)
	}

	assert.Greater(t, paired, 0)
	assert.Equal(t, 0, paired%2)
}
