package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Boflo-hub/pima-poa-league/internal/forecast"
	"github.com/Boflo-hub/pima-poa-league/internal/league"
	"github.com/Boflo-hub/pima-poa-league/internal/logger"
)

type fakeRefresher struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, season string) (*forecast.Forecast, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &forecast.Forecast{Season: season, Result: &league.SimulationResult{Runs: 10}}, nil
}

func TestNew_BadSchedule(t *testing.T) {
	_, err := New(&fakeRefresher{}, "2024", "every now and then", time.Second, logger.Discard())
	assert.Error(t, err)
}

func TestRunNow(t *testing.T) {
	r := &fakeRefresher{}
	s, err := New(r, "2024", "@every 1h", time.Second, logger.Discard())
	require.NoError(t, err)
	defer s.Stop()

	s.RunNow()
	job := s.Status()
	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, "completed", job.Status)
	assert.Equal(t, 1, job.Runs)
	assert.Equal(t, "2024", job.Season)
	assert.False(t, job.LastRun.IsZero())

	r.err = errors.New("sheet host down")
	s.RunNow()
	job = s.Status()
	assert.Equal(t, "failed", job.Status)
	assert.Equal(t, "sheet host down", job.LastError)
	assert.Equal(t, 2, job.Runs)
}

func TestStartStop(t *testing.T) {
	s, err := New(&fakeRefresher{}, "2024", "@every 1h", 0, logger.Discard())
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.Status().NextRun, time.Minute)
	s.Stop()
}
