package services

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/photoexchange/server/internal/models"
	"github.com/photoexchange/server/internal/repository"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db         *sql.DB
	photos     *repository.PhotoRepository
	users      *repository.UserRepository
	favourites *repository.MarkRepository
	reports    *repository.MarkRepository
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "services-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &testEnv{
		db:         db,
		photos:     repository.NewPhotoRepository(db),
		users:      repository.NewUserRepository(db),
		favourites: repository.NewFavouriteRepository(db),
		reports:    repository.NewReportRepository(db),
	}
}

func (e *testEnv) createUser(t *testing.T, handle string) *models.User {
	t.Helper()

	user, err := models.NewUser(handle)
	require.NoError(t, err)
	require.NoError(t, e.users.Add(context.Background(), user))
	return user
}

// savePhoto stores a live, claiming photo uploaded at the given unix second
// with a location map attached
func (e *testEnv) savePhoto(t *testing.T, ownerID, uploadedAt int64) *models.Photo {
	t.Helper()

	photo, err := models.NewPhoto(ownerID, 2.35, 48.85, true, time.Unix(uploadedAt, 0), "")
	require.NoError(t, err)
	photo.LocationMapID = 42
	require.NoError(t, e.photos.Save(context.Background(), photo))
	return photo
}

func (e *testEnv) saveOpenPhoto(t *testing.T, ownerID, uploadedAt int64) *models.Photo {
	t.Helper()

	photo := e.savePhoto(t, ownerID, uploadedAt)
	changed, err := e.photos.UpdateExchangeState(context.Background(), photo.ID, models.ExchangeClaiming, models.ExchangeOpen)
	require.NoError(t, err)
	require.True(t, changed)
	photo.Exchange = models.OpenExchange()
	return photo
}

// savePair stores two photos by different owners uploaded at a and b and
// pairs them
func (e *testEnv) savePair(t *testing.T, ownerA, ownerB, a, b int64) (*models.Photo, *models.Photo) {
	t.Helper()

	first := e.saveOpenPhoto(t, ownerA, a)
	second := e.savePhoto(t, ownerB, b)
	require.NoError(t, e.photos.PairPhotos(context.Background(), first.ID, second.ID))
	return e.reload(t, first), e.reload(t, second)
}

func (e *testEnv) reload(t *testing.T, photo *models.Photo) *models.Photo {
	t.Helper()

	fresh, err := e.photos.GetByID(context.Background(), photo.ID)
	require.NoError(t, err)
	require.NotNil(t, fresh, "photo %d", photo.ID)
	return fresh
}

func (e *testEnv) exists(t *testing.T, id int64) bool {
	t.Helper()

	photo, err := e.photos.GetByID(context.Background(), id)
	require.NoError(t, err)
	return photo != nil
}

// forceDeleted soft deletes photo at the given unix second regardless of
// its exchange state
func (e *testEnv) forceDeleted(t *testing.T, photo *models.Photo, at int64) {
	t.Helper()

	_, err := e.db.ExecContext(context.Background(),
		`UPDATE photos SET deleted_on = $1 WHERE id = $2`, at, photo.ID)
	require.NoError(t, err)
}

// pairBeforeMarkRepo pairs two photos right before the first
// MarkManyDeleted call reaches the store, as a concurrent upload would
type pairBeforeMarkRepo struct {
	repository.PhotoRepo
	candidateID int64
	newID       int64
	paired      bool
}

func (r *pairBeforeMarkRepo) MarkManyDeleted(ctx context.Context, ids []int64, ts time.Time) (int, error) {
	if !r.paired {
		if err := r.PhotoRepo.PairPhotos(ctx, r.candidateID, r.newID); err != nil {
			return 0, err
		}
		r.paired = true
	}
	return r.PhotoRepo.MarkManyDeleted(ctx, ids, ts)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(unix int64) *fakeClock {
	return &fakeClock{now: time.Unix(unix, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakePurger struct {
	mu     sync.Mutex
	purged []string
	fail   bool
}

func (p *fakePurger) Purge(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purged = append(p.purged, name)
	if p.fail {
		return fmt.Errorf("disk unavailable")
	}
	return nil
}

func (p *fakePurger) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.purged...)
}

func timeUnix(s int64) time.Time {
	return time.Unix(s, 0).UTC()
}
