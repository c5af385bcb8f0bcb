// Package registry provides the type-keyed directory of object pools. A
// Registry is an explicitly constructed value with an explicit lifecycle:
// collaborators receive it by injection, there is no package-level
// singleton.
//
// Pools are keyed by name; typed access goes through the generic
// package-level functions so one registry can hold pools of different
// types:
//
//	reg := registry.New(nil)
//	defer reg.Shutdown()
//
//	_, err := registry.Register(reg, pool.Config[*Particle]{ ... Name: "particles" ... })
//	if err != nil {
//	    return err
//	}
//
//	lease, err := registry.Acquire[*Particle](reg, "particles")
//	if err != nil {
//	    return err
//	}
//	defer registry.Release(reg, "particles", lease)
//
// Registering a key that already exists is rejected; Replace is the
// explicit opt-in for atomic swapping.
package registry

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/poolkit/pkg/logger"
	"github.com/ajitpratap0/poolkit/pkg/pool"
	"github.com/ajitpratap0/poolkit/pkg/poolerrors"
)

// Managed is the type-erased surface the registry needs from every pool.
// pool.Pool[T] satisfies it for any T.
type Managed interface {
	Name() string
	Clear()
	TrimExcess() int
	Validate() bool
	Statistics() pool.Stats
}

// Registry maps a pool key to exactly one pool. All methods are safe for
// concurrent use.
type Registry struct {
	log *zap.Logger

	mu     sync.RWMutex
	pools  map[string]Managed
	closed bool
}

// New constructs an empty registry. A nil log defaults to the global
// logger.
func New(log *zap.Logger) *Registry {
	if log == nil {
		log = logger.Get()
	}
	return &Registry{
		log:   log.With(zap.String("component", "registry")),
		pools: make(map[string]Managed),
	}
}

// Register constructs a pool from cfg and stores it under cfg.Name. It
// fails with an already-registered error when the key exists; use Replace
// to swap an existing pool.
func Register[T any](r *Registry, cfg pool.Config[T]) (*pool.Pool[T], error) {
	p, err := pool.New(cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, poolerrors.New(poolerrors.ErrorTypeShutdown, "registry is shut down")
	}
	if _, exists := r.pools[cfg.Name]; exists {
		r.mu.Unlock()
		return nil, poolerrors.New(poolerrors.ErrorTypeAlreadyRegistered, "pool already registered").
			WithDetail("key", cfg.Name)
	}
	r.pools[cfg.Name] = p
	r.mu.Unlock()

	r.log.Info("pool registered",
		zap.String("key", cfg.Name),
		zap.Int("initial_capacity", cfg.InitialCapacity),
		zap.Int("max_capacity", cfg.MaxCapacity))
	return p, nil
}

// Replace atomically swaps the pool under cfg.Name, clearing the previous
// one so its idle instances are destroyed and its outstanding leases are
// fenced. Registering a fresh key through Replace is also valid.
func Replace[T any](r *Registry, cfg pool.Config[T]) (*pool.Pool[T], error) {
	p, err := pool.New(cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, poolerrors.New(poolerrors.ErrorTypeShutdown, "registry is shut down")
	}
	old := r.pools[cfg.Name]
	r.pools[cfg.Name] = p
	r.mu.Unlock()

	if old != nil {
		old.Clear()
		r.log.Info("pool replaced", zap.String("key", cfg.Name))
	} else {
		r.log.Info("pool registered", zap.String("key", cfg.Name))
	}
	return p, nil
}

// Acquire leases an instance from the pool registered under key. A key
// registered with a different element type fails the same way as a missing
// key, with a detail explaining the mismatch.
func Acquire[T any](r *Registry, key string) (pool.Lease[T], error) {
	p, err := typedPool[T](r, key)
	if err != nil {
		return pool.Lease[T]{}, err
	}
	return p.Get()
}

// Release returns a lease to the pool registered under key.
func Release[T any](r *Registry, key string, l pool.Lease[T]) error {
	p, err := typedPool[T](r, key)
	if err != nil {
		return err
	}
	return p.Return(l)
}

// Lookup returns the typed pool registered under key, for callers that
// want to hold the pool directly instead of going through the registry on
// every cycle.
func Lookup[T any](r *Registry, key string) (*pool.Pool[T], error) {
	return typedPool[T](r, key)
}

func typedPool[T any](r *Registry, key string) (*pool.Pool[T], error) {
	r.mu.RLock()
	m, ok := r.pools[key]
	r.mu.RUnlock()
	if !ok {
		return nil, poolerrors.New(poolerrors.ErrorTypeNotFound, "no pool registered for key").
			WithDetail("key", key)
	}
	p, ok := m.(*pool.Pool[T])
	if !ok {
		return nil, poolerrors.New(poolerrors.ErrorTypeNotFound, "pool registered with a different element type").
			WithDetail("key", key)
	}
	return p, nil
}

// Unregister clears and removes the pool under key.
func (r *Registry) Unregister(key string) error {
	r.mu.Lock()
	m, ok := r.pools[key]
	if ok {
		delete(r.pools, key)
	}
	r.mu.Unlock()
	if !ok {
		return poolerrors.New(poolerrors.ErrorTypeNotFound, "no pool registered for key").
			WithDetail("key", key)
	}
	m.Clear()
	r.log.Info("pool unregistered", zap.String("key", key))
	return nil
}

// Clear destroys the idle instances of the pool under key.
func (r *Registry) Clear(key string) error {
	r.mu.RLock()
	m, ok := r.pools[key]
	r.mu.RUnlock()
	if !ok {
		return poolerrors.New(poolerrors.ErrorTypeNotFound, "no pool registered for key").
			WithDetail("key", key)
	}
	m.Clear()
	return nil
}

// ClearAll destroys the idle instances of every registered pool.
func (r *Registry) ClearAll() {
	for _, m := range r.snapshot() {
		m.Clear()
	}
}

// TrimExcess runs a sizing pass over every registered pool and returns the
// total number of instances destroyed.
func (r *Registry) TrimExcess() int {
	destroyed := 0
	for _, m := range r.snapshot() {
		destroyed += m.TrimExcess()
	}
	return destroyed
}

// ValidateAll runs validation over every registered pool. A pool whose
// validation discards instances contributes one maintenance error to the
// joined result; pools are never skipped because an earlier one failed.
// The per-instance discards themselves are reflected in statistics, so
// callers may treat the returned error as advisory.
func (r *Registry) ValidateAll() error {
	var errs []error
	for _, m := range r.snapshot() {
		if !m.Validate() {
			errs = append(errs, poolerrors.New(poolerrors.ErrorTypeMaintenance, "validation discarded instances").
				WithDetail("key", m.Name()))
		}
	}
	return errors.Join(errs...)
}

// Statistics returns the snapshot for the pool under key.
func (r *Registry) Statistics(key string) (pool.Stats, error) {
	r.mu.RLock()
	m, ok := r.pools[key]
	r.mu.RUnlock()
	if !ok {
		return pool.Stats{}, poolerrors.New(poolerrors.ErrorTypeNotFound, "no pool registered for key").
			WithDetail("key", key)
	}
	return m.Statistics(), nil
}

// GlobalStats aggregates per-pool snapshots. It is built on demand from
// the individual snapshots and never independently mutated.
type GlobalStats struct {
	Pools int `json:"pools"`

	Total     int `json:"total"`
	Available int `json:"available"`
	Active    int `json:"active"`

	Gets             int64 `json:"gets"`
	Returns          int64 `json:"returns"`
	Creations        int64 `json:"creations"`
	Destructions     int64 `json:"destructions"`
	ValidationErrors int64 `json:"validation_errors"`
	Hits             int64 `json:"hits"`
	Misses           int64 `json:"misses"`

	HitRate     float64 `json:"hit_rate"`
	ErrorRate   float64 `json:"error_rate"`
	Utilization float64 `json:"utilization"`

	PerPool map[string]pool.Stats `json:"per_pool"`
}

// GlobalStatistics sums and recomputes an aggregate snapshot across all
// registered pools.
func (r *Registry) GlobalStatistics() GlobalStats {
	pools := r.snapshot()

	g := GlobalStats{
		Pools:   len(pools),
		PerPool: make(map[string]pool.Stats, len(pools)),
	}
	for _, m := range pools {
		s := m.Statistics()
		g.PerPool[s.Name] = s
		g.Total += s.Total
		g.Available += s.Available
		g.Active += s.Active
		g.Gets += s.Gets
		g.Returns += s.Returns
		g.Creations += s.Creations
		g.Destructions += s.Destructions
		g.ValidationErrors += s.ValidationErrors
		g.Hits += s.Hits
		g.Misses += s.Misses
	}

	if g.Gets > 0 {
		g.HitRate = float64(g.Hits) / float64(g.Gets)
	}
	if ops := g.Gets + g.Returns; ops > 0 {
		g.ErrorRate = float64(g.ValidationErrors) / float64(ops)
	}
	if g.Total > 0 {
		g.Utilization = float64(g.Active) / float64(g.Total)
	}
	return g
}

// Keys returns the currently registered pool keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.pools))
	for k := range r.pools {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of registered pools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// Shutdown clears every pool and rejects further registrations. Fan-out
// operations against a shut-down registry become no-ops over an empty
// pool set.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	pools := make([]Managed, 0, len(r.pools))
	for _, m := range r.pools {
		pools = append(pools, m)
	}
	r.pools = make(map[string]Managed)
	r.mu.Unlock()

	for _, m := range pools {
		m.Clear()
	}
	r.log.Info("registry shut down", zap.Int("pools", len(pools)))
}

// snapshot copies the current pool set so fan-out operations iterate
// without holding the registry lock.
func (r *Registry) snapshot() []Managed {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pools := make([]Managed, 0, len(r.pools))
	for _, m := range r.pools {
		pools = append(pools, m)
	}
	return pools
}
