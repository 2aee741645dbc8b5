package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Boflo-hub/pima-poa-league/internal/forecast"
)

// Refresher recomputes the cached forecast of a season.
type Refresher interface {
	Refresh(ctx context.Context, season string) (*forecast.Forecast, error)
}

// JobInfo reports the state of the refresh job.
type JobInfo struct {
	Season    string    `json:"season"`
	Schedule  string    `json:"schedule"`
	NextRun   time.Time `json:"next_run"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
	Runs      int       `json:"runs"`
	Status    string    `json:"status"`
}

// Scheduler periodically refreshes one season's forecast.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	timeout   time.Duration
	logger    logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	job       JobInfo
	entryID   cron.EntryID
	isRunning bool
}

// New returns a scheduler refreshing season on schedule, which
// accepts the standard five cron fields and descriptors like "@every 15m".
func New(refresher Refresher, season, schedule string, timeout time.Duration, logger logrus.FieldLogger) (*Scheduler, error) {
	logger = logger.WithField("component", "scheduler")
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(logger)))
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron:      c,
		refresher: refresher,
		timeout:   timeout,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		job:       JobInfo{Season: season, Schedule: schedule, Status: "scheduled"},
	}
	id, err := c.AddFunc(schedule, s.RunNow)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to add refresh job %q: %w", schedule, err)
	}
	s.entryID = id
	return s, nil
}

// Start starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	s.cron.Start()
	s.isRunning = true
	s.logger.WithFields(logrus.Fields{
		"season":   s.job.Season,
		"schedule": s.job.Schedule,
	}).Info("Forecast refresh scheduled")
	return nil
}

// RunNow performs one refresh synchronously.
func (s *Scheduler) RunNow() {
	s.mu.Lock()
	s.job.Status = "running"
	season := s.job.Season
	s.mu.Unlock()

	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	f, err := s.refresher.Refresh(ctx, season)
	duration := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.LastRun = start
	s.job.Runs++
	s.job.NextRun = s.cron.Entry(s.entryID).Next

	entry := s.logger.WithFields(logrus.Fields{"season": season, "duration": duration.String()})
	if err != nil {
		s.job.Status = "failed"
		s.job.LastError = err.Error()
		entry.WithError(err).Error("Forecast refresh failed")
		return
	}
	s.job.Status = "completed"
	s.job.LastError = ""
	entry.WithFields(logrus.Fields{"forecast_id": f.ID, "runs": f.Result.Runs}).Info("Forecast refreshed")
}

// Status returns a snapshot of the job state.
func (s *Scheduler) Status() JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.job
	if s.isRunning {
		job.NextRun = s.cron.Entry(s.entryID).Next
	}
	return job
}

// Stop halts the cron loop and cancels a running refresh, waiting at most
// five seconds for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		s.cancel()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	s.cancel()
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		s.logger.Info("Cron scheduler stopped gracefully")
	case <-time.After(5 * time.Second):
		s.logger.Warn("Cron scheduler stop timed out")
	}
}
