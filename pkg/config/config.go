// Package config loads and validates poolkit settings from YAML files
// and the environment. File values may reference environment variables
// with ${VAR_NAME}; the POOLKIT_ prefix overrides individual keys, so
// POOLKIT_MAINTENANCE_INTERVAL=30s wins over the file.
package config

import (
	"bytes"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/poolkit/pkg/pool"
	"github.com/ajitpratap0/poolkit/pkg/poolerrors"
)

// Settings is the root configuration document.
type Settings struct {
	// LogLevel sets logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`

	// Maintenance configures the background scheduler.
	Maintenance MaintenanceSettings `yaml:"maintenance" json:"maintenance" mapstructure:"maintenance"`

	// Pools declares the pools to register at startup.
	Pools []PoolSettings `yaml:"pools" json:"pools" mapstructure:"pools"`
}

// MaintenanceSettings configures the background scheduler.
type MaintenanceSettings struct {
	// Interval between maintenance passes.
	Interval time.Duration `yaml:"interval" json:"interval" mapstructure:"interval"`

	// MemoryWatermark is the system memory fraction (0..1) above which a
	// pass clears all idle instances. Zero disables pressure handling.
	MemoryWatermark float64 `yaml:"memory_watermark" json:"memory_watermark" mapstructure:"memory_watermark"`
}

// PoolSettings declares one pool. Factories, resets, and validators are
// code, not configuration; PoolConfig attaches them.
type PoolSettings struct {
	Name            string `yaml:"name" json:"name" mapstructure:"name"`
	InitialCapacity int    `yaml:"initial_capacity" json:"initial_capacity" mapstructure:"initial_capacity"`
	MaxCapacity     int    `yaml:"max_capacity" json:"max_capacity" mapstructure:"max_capacity"`

	// Prewarm eagerly constructs InitialCapacity instances at startup.
	Prewarm bool `yaml:"prewarm" json:"prewarm" mapstructure:"prewarm"`

	// DisposeOnReturn destroys instances on return instead of recycling.
	DisposeOnReturn bool `yaml:"dispose_on_return" json:"dispose_on_return" mapstructure:"dispose_on_return"`

	// ValidationInterval is how long an idle instance may go unchecked
	// before Get re-validates it.
	ValidationInterval time.Duration `yaml:"validation_interval" json:"validation_interval" mapstructure:"validation_interval"`

	// MaxIdleTime caps idle age before trimming destroys an instance.
	MaxIdleTime time.Duration `yaml:"max_idle_time" json:"max_idle_time" mapstructure:"max_idle_time"`

	Strategy StrategySettings `yaml:"strategy" json:"strategy" mapstructure:"strategy"`
}

// StrategySettings selects and tunes a sizing strategy.
type StrategySettings struct {
	// Kind is "fixed" or "dynamic". Empty selects dynamic.
	Kind string `yaml:"kind" json:"kind" mapstructure:"kind"`

	// Dynamic tuning; zero fields fall back to the strategy defaults.
	ExpansionThreshold   float64 `yaml:"expansion_threshold" json:"expansion_threshold" mapstructure:"expansion_threshold"`
	ContractionThreshold float64 `yaml:"contraction_threshold" json:"contraction_threshold" mapstructure:"contraction_threshold"`
	SizeIncrement        int     `yaml:"size_increment" json:"size_increment" mapstructure:"size_increment"`

	// EvictAfter wraps the strategy with per-instance idle-age eviction.
	// Zero disables it.
	EvictAfter time.Duration `yaml:"evict_after" json:"evict_after" mapstructure:"evict_after"`
}

const (
	StrategyFixed   = "fixed"
	StrategyDynamic = "dynamic"
)

// DefaultSettings returns settings that run without a config file.
func DefaultSettings() Settings {
	return Settings{
		LogLevel: "info",
		Maintenance: MaintenanceSettings{
			Interval: time.Minute,
		},
	}
}

// Load reads a YAML settings file. ${VAR} references are substituted from
// the environment before parsing, and POOLKIT_-prefixed environment
// variables override individual keys.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is caller-controlled
	if err != nil {
		return Settings{}, poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", path)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("POOLKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewReader([]byte(substituteEnvVars(string(data))))); err != nil {
		return Settings{}, poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to parse config file").
			WithDetail("path", path)
	}

	s := DefaultSettings()
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to decode config").
			WithDetail("path", path)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes settings to a YAML file.
func Save(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to marshal settings")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to write config file").
			WithDetail("path", path)
	}
	return nil
}

// Validate checks cross-field consistency. Per-pool bounds are checked
// again at pool construction; this catches file-level mistakes early.
func (s *Settings) Validate() error {
	if s.Maintenance.Interval < 0 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "maintenance interval must not be negative")
	}
	if s.Maintenance.MemoryWatermark < 0 || s.Maintenance.MemoryWatermark >= 1 {
		if s.Maintenance.MemoryWatermark != 0 {
			return poolerrors.New(poolerrors.ErrorTypeConfig, "memory watermark must be in (0, 1)")
		}
	}

	seen := make(map[string]struct{}, len(s.Pools))
	for _, ps := range s.Pools {
		if ps.Name == "" {
			return poolerrors.New(poolerrors.ErrorTypeConfig, "pool name is required")
		}
		if _, dup := seen[ps.Name]; dup {
			return poolerrors.New(poolerrors.ErrorTypeConfig, "duplicate pool name").
				WithDetail("pool", ps.Name)
		}
		seen[ps.Name] = struct{}{}

		switch ps.Strategy.Kind {
		case "", StrategyFixed, StrategyDynamic:
		default:
			return poolerrors.New(poolerrors.ErrorTypeConfig, "unknown strategy kind").
				WithDetail("pool", ps.Name).
				WithDetail("kind", ps.Strategy.Kind)
		}
	}
	return nil
}

// BuildStrategy constructs the sizing strategy declared by ss.
func BuildStrategy(ss StrategySettings) pool.Strategy {
	var st pool.Strategy
	switch ss.Kind {
	case StrategyFixed:
		st = pool.NewFixedStrategy()
	default:
		d := pool.NewDynamicStrategy()
		if ss.ExpansionThreshold > 0 {
			d.ExpansionThreshold = ss.ExpansionThreshold
		}
		if ss.ContractionThreshold > 0 {
			d.ContractionThreshold = ss.ContractionThreshold
		}
		if ss.SizeIncrement > 0 {
			d.SizeIncrement = ss.SizeIncrement
		}
		st = d
	}

	if ss.EvictAfter > 0 {
		st = pool.NewTimeEvictionStrategy(st, ss.EvictAfter)
	}
	return st
}

// PoolConfig binds declarative settings to a typed factory, producing a
// pool configuration ready for registration. Reset and Validate hooks can
// be set on the result before registering.
func PoolConfig[T any](ps PoolSettings, factory func() (T, error)) pool.Config[T] {
	cfg := pool.Config[T]{
		Name:               ps.Name,
		InitialCapacity:    ps.InitialCapacity,
		MaxCapacity:        ps.MaxCapacity,
		Factory:            factory,
		Prewarm:            ps.Prewarm,
		ValidationInterval: ps.ValidationInterval,
		MaxIdleTime:        ps.MaxIdleTime,
		Strategy:           BuildStrategy(ps.Strategy),
	}
	if ps.DisposeOnReturn {
		cfg.Disposal = pool.DisposeOnReturn
	}
	return cfg
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		content = content[:start] + os.Getenv(content[start+2:end]) + content[end+1:]
	}
	return content
}
