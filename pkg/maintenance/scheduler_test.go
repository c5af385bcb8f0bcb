package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/poolkit/pkg/pool"
	"github.com/ajitpratap0/poolkit/pkg/registry"
)

type job struct {
	payload []byte
}

func jobConfig(name string, initial, max int) pool.Config[*job] {
	return pool.Config[*job]{
		Name:            name,
		InitialCapacity: initial,
		MaxCapacity:     max,
		Factory:         func() (*job, error) { return &job{payload: make([]byte, 0, 64)}, nil },
		Reset:           func(j *job) { j.payload = j.payload[:0] },
	}
}

// fillIdle cycles n leases through the pool so n instances sit idle.
func fillIdle(t *testing.T, r *registry.Registry, key string, n int) {
	t.Helper()
	leases := make([]pool.Lease[*job], 0, n)
	for i := 0; i < n; i++ {
		l, err := registry.Acquire[*job](r, key)
		require.NoError(t, err)
		leases = append(leases, l)
	}
	for _, l := range leases {
		require.NoError(t, registry.Release(r, key, l))
	}
}

func available(t *testing.T, r *registry.Registry, key string) int {
	t.Helper()
	s, err := r.Statistics(key)
	require.NoError(t, err)
	return s.Available
}

func TestSchedulerTrimsOnInterval(t *testing.T) {
	r := registry.New(nil)
	defer r.Shutdown()

	_, err := registry.Register(r, jobConfig("jobs", 0, 16))
	require.NoError(t, err)
	fillIdle(t, r, "jobs", 6)

	s := NewScheduler(r, Config{Interval: 10 * time.Millisecond}, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return s.Passes() >= 1 },
		time.Second, time.Millisecond)

	// Zero utilization, so the dynamic strategy shrinks by one increment.
	require.Eventually(t, func() bool { return available(t, r, "jobs") < 6 },
		time.Second, time.Millisecond)
}

func TestTriggerNowBypassesTicker(t *testing.T) {
	r := registry.New(nil)
	defer r.Shutdown()

	_, err := registry.Register(r, jobConfig("jobs", 0, 16))
	require.NoError(t, err)

	s := NewScheduler(r, Config{Interval: time.Hour}, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Equal(t, int64(0), s.Passes())
	s.TriggerNow()

	require.Eventually(t, func() bool { return s.Passes() == 1 },
		time.Second, time.Millisecond)
}

func TestStopPreventsFurtherPasses(t *testing.T) {
	r := registry.New(nil)
	defer r.Shutdown()

	s := NewScheduler(r, Config{Interval: 5 * time.Millisecond}, nil)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return s.Passes() >= 1 },
		time.Second, time.Millisecond)
	s.Stop()

	after := s.Passes()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, s.Passes(), "no pass may start after Stop returns")

	// Stopping again is a no-op.
	s.Stop()
}

func TestStartWhileRunningFails(t *testing.T) {
	r := registry.New(nil)
	defer r.Shutdown()

	s := NewScheduler(r, Config{Interval: time.Hour}, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Error(t, s.Start(context.Background()))
}

func TestContextCancelStopsLoop(t *testing.T) {
	r := registry.New(nil)
	defer r.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(r, Config{Interval: 5 * time.Millisecond}, nil)
	require.NoError(t, s.Start(ctx))

	cancel()
	time.Sleep(20 * time.Millisecond)
	after := s.Passes()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, s.Passes())

	s.Stop()
}

func TestMemoryPressureClearsIdle(t *testing.T) {
	r := registry.New(nil)
	defer r.Shutdown()

	// Initial capacity 4 keeps ordinary trimming from touching the idle
	// set; only the pressure escalation can empty it.
	_, err := registry.Register(r, jobConfig("jobs", 4, 16))
	require.NoError(t, err)
	fillIdle(t, r, "jobs", 4)

	s := NewScheduler(r, Config{Interval: time.Hour, MemoryWatermark: 0.9}, nil)
	s.pressure = func() (float64, error) { return 0.95, nil }
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	s.TriggerNow()
	require.Eventually(t, func() bool { return available(t, r, "jobs") == 0 },
		time.Second, time.Millisecond)
}

func TestValidationFailureDoesNotAbortPass(t *testing.T) {
	r := registry.New(nil)
	defer r.Shutdown()

	// Initial capacity 2 so the trim step of the pass leaves the idle
	// instances in place for validation to judge.
	armed := int32(0)
	flaky := jobConfig("flaky", 2, 8)
	flaky.Validate = func(*job) bool { return atomic.LoadInt32(&armed) == 0 }

	_, err := registry.Register(r, flaky)
	require.NoError(t, err)
	_, err = registry.Register(r, jobConfig("solid", 2, 8))
	require.NoError(t, err)

	fillIdle(t, r, "flaky", 2)
	fillIdle(t, r, "solid", 2)
	atomic.StoreInt32(&armed, 1)

	s := NewScheduler(r, Config{Interval: time.Hour}, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	s.TriggerNow()
	require.Eventually(t, func() bool { return s.Passes() == 1 },
		time.Second, time.Millisecond)

	// The flaky pool is emptied by validation; the solid pool keeps its
	// idle instances.
	assert.Equal(t, 0, available(t, r, "flaky"))
	assert.Equal(t, 2, available(t, r, "solid"))
}
