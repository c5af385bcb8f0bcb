package workload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/poolkit/pkg/pool"
)

func payloadPool(t *testing.T, max int) *pool.Pool[*Payload] {
	t.Helper()
	p, err := pool.New(pool.Config[*Payload]{
		Name:        "payloads",
		MaxCapacity: max,
		Factory:     NewPayloadFactory(256),
		Reset:       ResetPayload,
	})
	require.NoError(t, err)
	return p
}

func TestRunCompletesAllCycles(t *testing.T) {
	p := payloadPool(t, 8)

	res, err := Run(context.Background(), p, Options{Workers: 4, Cycles: 50, Touch: true}, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 200, res.Completed)
	assert.EqualValues(t, 200, res.Stats.Gets)
	assert.Equal(t, 0, res.Stats.Active, "every lease returned")
	assert.Positive(t, res.CyclesPerSecond)
}

func TestRunRespectsCapacityBound(t *testing.T) {
	p := payloadPool(t, 3)

	res, err := Run(context.Background(), p, Options{Workers: 8, Cycles: 100}, nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, res.MaxActive, int64(3))
	assert.LessOrEqual(t, res.Stats.Total, 3)
	assert.EqualValues(t, 800, res.Completed, "exhausted cycles are retried")
}

func TestRunReusesInsteadOfAllocating(t *testing.T) {
	p := payloadPool(t, 4)

	res, err := Run(context.Background(), p, Options{Workers: 2, Cycles: 500}, nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Stats.Creations, int64(4))
	assert.Greater(t, res.Stats.HitRate, 0.9)
}

func TestRunHonorsContextCancel(t *testing.T) {
	p := payloadPool(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, p, Options{Workers: 2, Cycles: 1 << 20, Hold: time.Millisecond}, nil)
	require.NoError(t, err)
	assert.Less(t, res.Completed, int64(1<<20))
}

func TestRunDefaults(t *testing.T) {
	p := payloadPool(t, 2)

	res, err := Run(context.Background(), p, Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Workers)
	assert.EqualValues(t, 1, res.Completed)
}
