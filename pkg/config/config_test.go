package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/poolkit/pkg/pool"
	"github.com/ajitpratap0/poolkit/pkg/poolerrors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poolkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
maintenance:
  interval: 30s
  memory_watermark: 0.85
pools:
  - name: buffers
    initial_capacity: 4
    max_capacity: 64
    prewarm: true
    validation_interval: 10s
    max_idle_time: 5m
    strategy:
      kind: dynamic
      expansion_threshold: 0.7
      size_increment: 8
      evict_after: 2m
  - name: frames
    max_capacity: 16
    dispose_on_return: true
    strategy:
      kind: fixed
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 30*time.Second, s.Maintenance.Interval)
	assert.Equal(t, 0.85, s.Maintenance.MemoryWatermark)
	require.Len(t, s.Pools, 2)

	b := s.Pools[0]
	assert.Equal(t, "buffers", b.Name)
	assert.Equal(t, 4, b.InitialCapacity)
	assert.Equal(t, 64, b.MaxCapacity)
	assert.True(t, b.Prewarm)
	assert.Equal(t, 10*time.Second, b.ValidationInterval)
	assert.Equal(t, 5*time.Minute, b.MaxIdleTime)
	assert.Equal(t, 0.7, b.Strategy.ExpansionThreshold)
	assert.Equal(t, 2*time.Minute, b.Strategy.EvictAfter)

	f := s.Pools[1]
	assert.True(t, f.DisposeOnReturn)
	assert.Equal(t, StrategyFixed, f.Strategy.Kind)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `pools: []`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, time.Minute, s.Maintenance.Interval)
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("POOL_NAME", "from-env")
	path := writeConfig(t, `
pools:
  - name: ${POOL_NAME}
    max_capacity: 4
`)

	s, err := Load(path)
	require.NoError(t, err)
	require.Len(t, s.Pools, 1)
	assert.Equal(t, "from-env", s.Pools[0].Name)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("POOLKIT_LOG_LEVEL", "warn")
	path := writeConfig(t, `log_level: info`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", s.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"defaults", func(*Settings) {}, false},
		{"duplicate pool name", func(s *Settings) {
			s.Pools = []PoolSettings{{Name: "a", MaxCapacity: 4}, {Name: "a", MaxCapacity: 4}}
		}, true},
		{"missing pool name", func(s *Settings) {
			s.Pools = []PoolSettings{{MaxCapacity: 4}}
		}, true},
		{"unknown strategy kind", func(s *Settings) {
			s.Pools = []PoolSettings{{Name: "a", MaxCapacity: 4, Strategy: StrategySettings{Kind: "adaptive"}}}
		}, true},
		{"watermark out of range", func(s *Settings) {
			s.Maintenance.MemoryWatermark = 1.5
		}, true},
		{"negative interval", func(s *Settings) {
			s.Maintenance.Interval = -time.Second
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeConfig))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestBuildStrategy(t *testing.T) {
	assert.IsType(t, pool.FixedStrategy{}, BuildStrategy(StrategySettings{Kind: StrategyFixed}))
	assert.IsType(t, pool.DynamicStrategy{}, BuildStrategy(StrategySettings{}))

	d, ok := BuildStrategy(StrategySettings{ContractionThreshold: 0.2}).(pool.DynamicStrategy)
	require.True(t, ok)
	assert.Equal(t, 0.2, d.ContractionThreshold)

	te := BuildStrategy(StrategySettings{Kind: StrategyFixed, EvictAfter: time.Minute})
	assert.IsType(t, &pool.TimeEvictionStrategy{}, te)
}

func TestPoolConfigBinding(t *testing.T) {
	ps := PoolSettings{
		Name:            "frames",
		InitialCapacity: 2,
		MaxCapacity:     8,
		DisposeOnReturn: true,
		MaxIdleTime:     time.Minute,
	}

	cfg := PoolConfig(ps, func() (*struct{}, error) { return &struct{}{}, nil })
	assert.Equal(t, "frames", cfg.Name)
	assert.Equal(t, 2, cfg.InitialCapacity)
	assert.Equal(t, 8, cfg.MaxCapacity)
	assert.Equal(t, pool.DisposeOnReturn, cfg.Disposal)
	assert.Equal(t, time.Minute, cfg.MaxIdleTime)
	assert.NotNil(t, cfg.Factory)
	assert.NotNil(t, cfg.Strategy)

	p, err := pool.New(cfg)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Statistics().MaxCapacity)
}

func TestSaveRoundTrip(t *testing.T) {
	s := DefaultSettings()
	s.Pools = []PoolSettings{{Name: "buffers", MaxCapacity: 32}}

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, s))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s.LogLevel, loaded.LogLevel)
	assert.Equal(t, s.Maintenance.Interval, loaded.Maintenance.Interval)
	require.Len(t, loaded.Pools, 1)
	assert.Equal(t, "buffers", loaded.Pools[0].Name)
	assert.Equal(t, 32, loaded.Pools[0].MaxCapacity)
}
