package pool

import (
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/poolkit/pkg/poolerrors"
)

// DisposalPolicy controls what happens to a valid instance when its lease
// is returned.
type DisposalPolicy int

const (
	// KeepOnReturn pushes valid instances back onto the idle set. This is
	// the default and the whole point of pooling.
	KeepOnReturn DisposalPolicy = iota
	// DisposeOnReturn destroys every instance on return instead of
	// recycling it. Useful for objects that are cheap to build but
	// expensive to sanitize.
	DisposeOnReturn
)

// Config holds the immutable per-type settings for a Pool. It is copied at
// construction time; mutating it afterwards has no effect on the pool.
//
// Factory is the only required callback. Reset defaults to a no-op and
// Validate defaults to always-true, so the zero value of each is safe.
type Config[T any] struct {
	// Name identifies the pool in logs, errors, and statistics. Required.
	Name string

	// InitialCapacity is the size the pool starts from and never shrinks
	// below. Zero means fully lazy.
	InitialCapacity int

	// MaxCapacity bounds the total number of instances (idle + active).
	// Required, must be >= InitialCapacity.
	MaxCapacity int

	// Factory produces a new instance. Required. Failures propagate to the
	// Get caller unchanged, wrapped as a factory error.
	Factory func() (T, error)

	// Reset is invoked before an instance re-enters circulation. Optional.
	Reset func(T)

	// Validate decides whether a returned or idle instance is still
	// usable. Optional; nil means every instance is considered valid.
	// Validators run under the pool lock on the maintenance path and must
	// be fast.
	Validate func(T) bool

	// Disposal selects the return-path policy. Defaults to KeepOnReturn.
	Disposal DisposalPolicy

	// ValidationInterval is how long an idle instance may go unchecked
	// before Get re-validates it on the way out. Zero disables get-path
	// revalidation; the return path always validates.
	ValidationInterval time.Duration

	// MaxIdleTime caps how long an instance may sit idle before TrimExcess
	// destroys it. Zero disables idle-age trimming.
	MaxIdleTime time.Duration

	// Prewarm eagerly constructs InitialCapacity instances at pool
	// creation instead of lazily on first use.
	Prewarm bool

	// Strategy drives growth and shrink decisions. Defaults to
	// NewDynamicStrategy().
	Strategy Strategy

	// Observers receive synchronous lifecycle notifications. Optional.
	Observers []Observer

	// Logger defaults to the global logger.
	Logger *zap.Logger
}

// withDefaults returns a copy of the config with defaults applied, or a
// config error when required fields are missing or inconsistent.
func (c Config[T]) withDefaults() (Config[T], error) {
	if c.Name == "" {
		return c, poolerrors.New(poolerrors.ErrorTypeConfig, "pool name is required")
	}
	if c.Factory == nil {
		return c, poolerrors.New(poolerrors.ErrorTypeConfig, "factory is required").
			WithDetail("pool", c.Name)
	}
	if c.InitialCapacity < 0 {
		return c, poolerrors.New(poolerrors.ErrorTypeConfig, "initial capacity must not be negative").
			WithDetail("pool", c.Name).
			WithDetail("initial_capacity", c.InitialCapacity)
	}
	if c.MaxCapacity <= 0 {
		return c, poolerrors.New(poolerrors.ErrorTypeConfig, "max capacity must be positive").
			WithDetail("pool", c.Name).
			WithDetail("max_capacity", c.MaxCapacity)
	}
	if c.InitialCapacity > c.MaxCapacity {
		return c, poolerrors.New(poolerrors.ErrorTypeConfig, "initial capacity exceeds max capacity").
			WithDetail("pool", c.Name).
			WithDetail("initial_capacity", c.InitialCapacity).
			WithDetail("max_capacity", c.MaxCapacity)
	}
	if c.ValidationInterval < 0 || c.MaxIdleTime < 0 {
		return c, poolerrors.New(poolerrors.ErrorTypeConfig, "durations must not be negative").
			WithDetail("pool", c.Name)
	}
	if c.Strategy == nil {
		c.Strategy = NewDynamicStrategy()
	}
	return c, nil
}
