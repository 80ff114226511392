package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleScheduler_RunNow(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	u1 := env.createUser(t, "u1")

	clock := newFakeClock(1_000_000)
	purger := &fakePurger{}
	scheduler := NewLifecycleScheduler(
		NewLifecycleService(env.photos, purger, nil),
		clock,
		LifecycleSchedule{
			Interval:        time.Hour,
			SoftDeleteAfter: time.Hour,
			HardDeleteAfter: 2 * time.Hour,
			BatchSize:       2,
		},
	)

	now := clock.Now().Unix()
	var old []int64
	for i := 0; i < 3; i++ {
		old = append(old, env.saveOpenPhoto(t, u1.ID, now-int64(3*time.Hour/time.Second)+int64(i)).ID)
	}
	recent := env.saveOpenPhoto(t, u1.ID, now-60)

	result, err := scheduler.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.SoftDeleted, "all batches are processed")
	assert.Equal(t, 0, result.HardDeleted)

	status := scheduler.GetStatus()
	assert.Equal(t, 3, status.SoftDeleted)
	assert.Equal(t, clock.Now(), status.LastRun)
	assert.Empty(t, status.Errors)
	assert.False(t, status.Running)

	clock.Advance(3 * time.Hour)

	result, err = scheduler.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SoftDeleted)
	assert.Equal(t, 3, result.HardDeleted)
	assert.Len(t, purger.names(), 3)

	for _, id := range old {
		assert.False(t, env.exists(t, id))
	}
	assert.True(t, env.reload(t, recent).IsDeleted())
}

func TestLifecycleScheduler_RunNowPastKeptPairs(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	u1 := env.createUser(t, "u1")
	u2 := env.createUser(t, "u2")

	clock := newFakeClock(1_000_000)
	scheduler := NewLifecycleScheduler(
		NewLifecycleService(env.photos, &fakePurger{}, nil),
		clock,
		LifecycleSchedule{SoftDeleteAfter: time.Hour, HardDeleteAfter: time.Hour, BatchSize: 2},
	)

	now := clock.Now().Unix()
	oldAt := now - int64(3*time.Hour/time.Second)
	var kept []int64
	for i := int64(0); i < 2; i++ {
		a, _ := env.savePair(t, u1.ID, u2.ID, oldAt+i, now-60)
		kept = append(kept, a.ID)
	}
	var stale []int64
	for i := int64(0); i < 3; i++ {
		stale = append(stale, env.saveOpenPhoto(t, u1.ID, oldAt+10+i).ID)
	}

	result, err := scheduler.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.SoftDeleted)

	for _, id := range stale {
		photo, err := env.photos.GetByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, photo.IsDeleted(), "photo %d", id)
	}
	for _, id := range kept {
		photo, err := env.photos.GetByID(ctx, id)
		require.NoError(t, err)
		assert.False(t, photo.IsDeleted(), "photo %d", id)
	}
}

func TestLifecycleScheduler_StartStop(t *testing.T) {
	env := setupTestEnv(t)
	scheduler := NewLifecycleScheduler(
		NewLifecycleService(env.photos, &fakePurger{}, nil),
		nil,
		LifecycleSchedule{Interval: time.Hour, SoftDeleteAfter: time.Hour, HardDeleteAfter: time.Hour},
	)

	assert.False(t, scheduler.IsEnabled())

	scheduler.Start()
	scheduler.Start()
	assert.True(t, scheduler.IsEnabled())
	assert.True(t, scheduler.GetStatus().Enabled)

	scheduler.Stop()
	scheduler.Stop()
	assert.False(t, scheduler.IsEnabled())

	assert.Eventually(t, func() bool {
		return !scheduler.GetStatus().LastRun.IsZero()
	}, time.Second, 10*time.Millisecond, "Start runs once immediately")
}
