package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/photoexchange/server/internal/models"
	"github.com/photoexchange/server/internal/observability"
)

// maxBatchesPerRun caps how many batches one run processes per step
const maxBatchesPerRun = 100

// ErrLifecycleRunning is returned by RunNow while another run is in progress
var ErrLifecycleRunning = errors.New("lifecycle run already in progress")

// LifecycleStatus represents the current status of the lifecycle scheduler
type LifecycleStatus struct {
	Running          bool      `json:"running"`
	Enabled          bool      `json:"enabled"`
	LastRun          time.Time `json:"lastRun,omitempty"`
	LastRunDuration  string    `json:"lastRunDuration,omitempty"`
	SoftDeleted      int       `json:"softDeleted"`
	HardDeleted      int       `json:"hardDeleted"`
	Errors           []string  `json:"errors,omitempty"`
	NextScheduledRun time.Time `json:"nextScheduledRun,omitempty"`
}

// LifecycleSchedule configures the periodic lifecycle run
type LifecycleSchedule struct {
	Interval        time.Duration
	SoftDeleteAfter time.Duration
	HardDeleteAfter time.Duration
	BatchSize       int
}

// LifecycleScheduler runs soft and hard deletion in the background
type LifecycleScheduler struct {
	lifecycle *LifecycleService
	clock     Clock
	schedule  LifecycleSchedule

	mu       sync.RWMutex
	enabled  bool
	running  bool
	stopChan chan struct{}
	done     chan struct{}
	status   LifecycleStatus
	ticker   *time.Ticker
}

// NewLifecycleScheduler creates a new LifecycleScheduler
func NewLifecycleScheduler(lifecycle *LifecycleService, clock Clock, schedule LifecycleSchedule) *LifecycleScheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if schedule.Interval <= 0 {
		schedule.Interval = time.Hour
	}
	if schedule.BatchSize <= 0 {
		schedule.BatchSize = 500
	}
	return &LifecycleScheduler{
		lifecycle: lifecycle,
		clock:     clock,
		schedule:  schedule,
		status: LifecycleStatus{
			Errors: []string{},
		},
	}
}

// Start begins the background lifecycle loop
func (s *LifecycleScheduler) Start() {
	s.mu.Lock()
	if s.ticker != nil {
		s.mu.Unlock()
		return
	}
	s.enabled = true
	s.status.Enabled = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.ticker = time.NewTicker(s.schedule.Interval)
	s.status.NextScheduledRun = s.clock.Now().Add(s.schedule.Interval)
	stop, done, ticker := s.stopChan, s.done, s.ticker
	s.mu.Unlock()

	observability.Infof("Lifecycle scheduler started (runs every %s)", s.schedule.Interval)

	go func() {
		defer close(done)

		s.run(context.Background())

		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				s.status.NextScheduledRun = s.clock.Now().Add(s.schedule.Interval)
				s.mu.Unlock()
				s.run(context.Background())
			case <-stop:
				ticker.Stop()
				observability.Infof("Lifecycle scheduler stopped")
				return
			}
		}
	}()
}

// Stop stops the loop and waits for an in-flight run to finish
func (s *LifecycleScheduler) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.enabled = false
	s.status.Enabled = false
	s.ticker = nil
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
}

// IsEnabled returns whether the background loop is running
func (s *LifecycleScheduler) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// GetStatus returns the current lifecycle status
func (s *LifecycleScheduler) GetStatus() LifecycleStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := s.status
	status.Errors = append([]string(nil), s.status.Errors...)
	return status
}

// RunNow runs soft and hard deletion immediately and returns the counts
func (s *LifecycleScheduler) RunNow(ctx context.Context) (models.LifecycleRunResult, error) {
	result, errs, ran := s.run(ctx)
	if !ran {
		return result, ErrLifecycleRunning
	}
	return result, errors.Join(errs...)
}

// run performs one soft delete pass followed by one hard delete pass.
// Returns false without doing anything when a run is already in progress.
func (s *LifecycleScheduler) run(ctx context.Context) (models.LifecycleRunResult, []error, bool) {
	var result models.LifecycleRunResult

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		observability.Infof("Lifecycle run already in progress, skipping")
		return result, nil, false
	}
	s.running = true
	s.status.Running = true
	s.mu.Unlock()

	ctx, span := observability.StartServiceSpan(ctx, "LifecycleScheduler", "Run")
	defer span.End()

	began := time.Now()
	startTime := s.clock.Now()
	softCutoff := startTime.Add(-s.schedule.SoftDeleteAfter)
	hardCutoff := startTime.Add(-s.schedule.HardDeleteAfter)

	var errs []error

	for i := 0; i < maxBatchesPerRun; i++ {
		marked, err := s.lifecycle.SoftDeleteOlderThan(ctx, softCutoff, startTime, s.schedule.BatchSize)
		if err != nil {
			errs = append(errs, err)
			break
		}
		result.SoftDeleted += marked
		if marked == 0 {
			break
		}
	}

	for i := 0; i < maxBatchesPerRun; i++ {
		removed, err := s.lifecycle.HardDeletePurge(ctx, hardCutoff, s.schedule.BatchSize)
		if err != nil {
			errs = append(errs, err)
			break
		}
		result.HardDeleted += removed
		if removed < s.schedule.BatchSize {
			break
		}
	}

	duration := time.Since(began)
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, err.Error())
	}

	s.mu.Lock()
	s.running = false
	s.status.Running = false
	s.status.LastRun = startTime
	s.status.LastRunDuration = duration.Round(time.Millisecond).String()
	s.status.SoftDeleted = result.SoftDeleted
	s.status.HardDeleted = result.HardDeleted
	s.status.Errors = messages
	s.mu.Unlock()

	logger := observability.WithContext(ctx).WithFields(map[string]interface{}{
		"soft_deleted": result.SoftDeleted,
		"hard_deleted": result.HardDeleted,
	})
	if len(errs) > 0 {
		observability.RecordError(span, errors.Join(errs...))
		logger.Warnf("Lifecycle run completed with %d errors", len(errs))
	} else {
		observability.SetSuccess(span)
		logger.Infof("Lifecycle run completed in %s", duration.Round(time.Millisecond))
	}

	return result, errs, true
}
