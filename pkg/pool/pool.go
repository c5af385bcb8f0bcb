package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/poolkit/pkg/logger"
	"github.com/ajitpratap0/poolkit/pkg/poolerrors"
)

// maxValidationRetries bounds how many stale idle instances Get discards
// before falling back to construction, so a pathological validator cannot
// spin the caller forever.
const maxValidationRetries = 3

// Lease is the caller's handle on a pooled instance. It is a value type so
// the get/return fast path allocates nothing. The embedded identity tag is
// assigned by the pool and never reused, which lets Return reject foreign
// leases and double returns.
type Lease[T any] struct {
	// Value is the pooled instance. Ownership belongs to the caller
	// between Get and Return; the pool never touches it in between.
	Value T

	id  uint64
	gen uint64
}

// ID returns the pool-assigned identity tag, for diagnostics.
func (l Lease[T]) ID() uint64 { return l.id }

// idleEntry is an instance currently owned by the pool.
type idleEntry[T any] struct {
	value         T
	id            uint64
	lastUsed      time.Time
	lastValidated time.Time
}

// Pool is a bounded concurrent container for instances of one type. It
// hands instances out under leases and accepts them back, tracking counts
// and enforcing validity.
//
// The idle set is a mutex-guarded stack (newest reused first, oldest
// trimmed first); statistics counters are atomics independent of that lock.
// All methods are safe for concurrent use.
type Pool[T any] struct {
	cfg       Config[T]
	strategy  Strategy
	observers []Observer
	log       *zap.Logger

	rec       recorder
	idCounter uint64 // atomic; monotonic, never reused

	mu         sync.Mutex
	idle       []idleEntry[T]      // index 0 is oldest-idle
	issued     map[uint64]struct{} // identity tags currently on loan
	generation uint64              // bumped by Clear; fences stale leases
}

// New constructs a pool from cfg. When cfg.Prewarm is set, InitialCapacity
// instances are constructed eagerly and a factory failure fails the whole
// construction.
func New[T any](cfg Config[T]) (*Pool[T], error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	p := &Pool[T]{
		cfg:       cfg,
		strategy:  cfg.Strategy,
		observers: cfg.Observers,
		log:       log.With(zap.String("pool", cfg.Name)),
		issued:    make(map[uint64]struct{}),
	}

	if cfg.Prewarm {
		now := time.Now()
		for i := 0; i < cfg.InitialCapacity; i++ {
			value, err := cfg.Factory()
			if err != nil {
				return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeFactory, "prewarm construction failed").
					WithDetail("pool", cfg.Name).
					WithDetail("constructed", i)
			}
			id := atomic.AddUint64(&p.idCounter, 1)
			p.rec.recordCreation()
			p.idle = append(p.idle, idleEntry[T]{value: value, id: id, lastUsed: now, lastValidated: now})
			p.notifyCreated(id)
		}
		p.log.Debug("pool prewarmed", zap.Int("instances", cfg.InitialCapacity))
	}

	return p, nil
}

// Name returns the pool's configured name.
func (p *Pool[T]) Name() string { return p.cfg.Name }

// Get removes an idle instance from the pool, or constructs a new one when
// the sizing strategy and capacity bound allow it. It never blocks waiting
// for capacity: when the pool is at maximum capacity with nothing idle it
// fails fast with an exhausted error.
//
// Idle instances whose validation interval has elapsed are re-validated on
// the way out; invalid ones are destroyed and the next candidate is tried,
// at most maxValidationRetries times before falling back to construction.
func (p *Pool[T]) Get() (Lease[T], error) {
	start := time.Now()

	for attempt := 0; attempt < maxValidationRetries; attempt++ {
		p.mu.Lock()
		n := len(p.idle)
		if n == 0 {
			p.mu.Unlock()
			break
		}
		e := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.issued[e.id] = struct{}{}
		gen := p.generation
		p.mu.Unlock()

		if p.staleNeedsCheck(e) && !p.cfg.Validate(e.value) {
			p.rec.recordValidationError()
			p.discardIssued(e.id)
			continue
		}

		p.rec.recordGet(start, true)
		return Lease[T]{Value: e.value, id: e.id, gen: gen}, nil
	}

	return p.create(start)
}

// staleNeedsCheck reports whether an idle entry's validation interval has
// elapsed since it was last checked.
func (p *Pool[T]) staleNeedsCheck(e idleEntry[T]) bool {
	return p.cfg.Validate != nil &&
		p.cfg.ValidationInterval > 0 &&
		time.Since(e.lastValidated) >= p.cfg.ValidationInterval
}

// create constructs a new instance if the strategy and capacity allow it.
// The identity tag is reserved in the issued set before the factory runs so
// the capacity bound holds under concurrent Gets.
func (p *Pool[T]) create(start time.Time) (Lease[T], error) {
	p.mu.Lock()
	snap := p.statsLocked()
	if snap.Total >= p.cfg.MaxCapacity || !p.strategy.ShouldCreateNew(snap) {
		p.mu.Unlock()
		return Lease[T]{}, poolerrors.New(poolerrors.ErrorTypeExhausted, "no idle instances and capacity exhausted").
			WithDetail("pool", p.cfg.Name).
			WithDetail("total", snap.Total).
			WithDetail("max_capacity", p.cfg.MaxCapacity)
	}
	id := atomic.AddUint64(&p.idCounter, 1)
	p.issued[id] = struct{}{}
	gen := p.generation
	p.mu.Unlock()

	value, err := p.cfg.Factory()
	if err != nil {
		p.mu.Lock()
		delete(p.issued, id)
		p.mu.Unlock()
		return Lease[T]{}, poolerrors.Wrap(err, poolerrors.ErrorTypeFactory, "factory failed").
			WithDetail("pool", p.cfg.Name)
	}

	p.rec.recordCreation()
	p.notifyCreated(id)
	p.rec.recordGet(start, false)
	return Lease[T]{Value: value, id: id, gen: gen}, nil
}

// Return hands a leased instance back to the pool. Leases not issued by
// this pool, and leases returned twice, fail with a not-owned error and
// leave the counts untouched.
//
// The reset action runs first, then the validation predicate; invalid
// instances are destroyed and counted rather than reinserted. Leases issued
// before the last Clear are destroyed regardless, so cleared state never
// leaks back into circulation.
func (p *Pool[T]) Return(l Lease[T]) error {
	start := time.Now()

	p.mu.Lock()
	if _, ok := p.issued[l.id]; !ok {
		p.mu.Unlock()
		return poolerrors.New(poolerrors.ErrorTypeNotOwned, "lease was not issued by this pool or was already returned").
			WithDetail("pool", p.cfg.Name).
			WithDetail("lease_id", l.id)
	}
	p.mu.Unlock()

	// The instance stays in the issued set (counted active) while reset
	// and validation run, so the total==available+active invariant holds
	// at every point a Statistics call can observe.
	if p.cfg.Reset != nil {
		p.cfg.Reset(l.Value)
	}
	valid := p.cfg.Validate == nil || p.cfg.Validate(l.Value)
	now := time.Now()

	p.mu.Lock()
	if _, ok := p.issued[l.id]; !ok {
		// Lost a double-return race.
		p.mu.Unlock()
		return poolerrors.New(poolerrors.ErrorTypeNotOwned, "lease was already returned").
			WithDetail("pool", p.cfg.Name).
			WithDetail("lease_id", l.id)
	}
	delete(p.issued, l.id)
	stale := l.gen != p.generation
	keep := valid && !stale && p.cfg.Disposal == KeepOnReturn
	if keep {
		p.idle = append(p.idle, idleEntry[T]{value: l.Value, id: l.id, lastUsed: now, lastValidated: now})
	}
	p.mu.Unlock()

	if keep {
		if ev, ok := p.strategy.(Evictor); ok {
			ev.NoteReturned(l.id, now)
		}
		p.notifyReturned(l.id)
	} else {
		if !valid {
			p.rec.recordValidationError()
		}
		p.destroy(l.id)
	}

	p.rec.recordReturn(start)
	return nil
}

// Clear destroys all idle instances and fences out currently active ones:
// leases issued before the clear are destroyed on their own return instead
// of re-entering circulation.
func (p *Pool[T]) Clear() {
	p.mu.Lock()
	removed := p.idle
	p.idle = nil
	p.generation++
	p.mu.Unlock()

	for _, e := range removed {
		p.destroy(e.id)
	}
	p.log.Debug("pool cleared", zap.Int("destroyed", len(removed)))
}

// TrimExcess shrinks the idle set toward the strategy's target size,
// destroying the oldest-idle instances first, and additionally drops idle
// instances past their maximum idle age. It returns the number of
// instances destroyed.
func (p *Pool[T]) TrimExcess() int {
	now := time.Now()
	ev, hasEvictor := p.strategy.(Evictor)

	p.mu.Lock()
	snap := p.statsLocked()
	target := p.strategy.TargetSize(snap)
	if target < 0 {
		target = 0
	}

	var victims []idleEntry[T]
	for len(p.idle) > 0 && len(p.idle)+len(p.issued) > target {
		victims = append(victims, p.idle[0])
		p.idle = p.idle[1:]
	}

	if p.cfg.MaxIdleTime > 0 || hasEvictor {
		kept := make([]idleEntry[T], 0, len(p.idle))
		for _, e := range p.idle {
			expired := p.cfg.MaxIdleTime > 0 && now.Sub(e.lastUsed) >= p.cfg.MaxIdleTime
			if !expired && hasEvictor && ev.ShouldDestroy(e.id, now) {
				expired = true
			}
			if expired {
				victims = append(victims, e)
			} else {
				kept = append(kept, e)
			}
		}
		p.idle = kept
	}
	p.mu.Unlock()

	for _, e := range victims {
		p.destroy(e.id)
	}
	if len(victims) > 0 {
		p.log.Debug("trimmed pool",
			zap.Int("destroyed", len(victims)),
			zap.Int("target", target))
	}
	return len(victims)
}

// Validate runs the validation predicate over every idle instance,
// destroying failures. It reports true iff no failures were found. Pools
// without a validator trivially pass.
func (p *Pool[T]) Validate() bool {
	if p.cfg.Validate == nil {
		return true
	}
	now := time.Now()

	p.mu.Lock()
	kept := make([]idleEntry[T], 0, len(p.idle))
	var victims []idleEntry[T]
	for _, e := range p.idle {
		if p.cfg.Validate(e.value) {
			e.lastValidated = now
			kept = append(kept, e)
		} else {
			victims = append(victims, e)
		}
	}
	p.idle = kept
	p.mu.Unlock()

	for _, e := range victims {
		p.rec.recordValidationError()
		p.destroy(e.id)
	}
	if len(victims) > 0 {
		p.log.Warn("validation discarded idle instances", zap.Int("discarded", len(victims)))
	}
	return len(victims) == 0
}

// Statistics returns an immutable snapshot of the pool's counters and
// derived rates.
func (p *Pool[T]) Statistics() Stats {
	p.mu.Lock()
	s := p.statsLocked()
	p.mu.Unlock()
	return s
}

// statsLocked builds a snapshot. Caller holds p.mu.
func (p *Pool[T]) statsLocked() Stats {
	s := Stats{
		Name:            p.cfg.Name,
		Available:       len(p.idle),
		Active:          len(p.issued),
		InitialCapacity: p.cfg.InitialCapacity,
		MaxCapacity:     p.cfg.MaxCapacity,
	}
	s.Total = s.Available + s.Active
	p.rec.snapshotInto(&s)
	return s
}

// discardIssued drops an instance that failed get-path validation. The
// entry is already out of the idle set and in the issued set.
func (p *Pool[T]) discardIssued(id uint64) {
	p.mu.Lock()
	delete(p.issued, id)
	p.mu.Unlock()
	p.destroy(id)
}

// destroy records a destruction and fans the event out. The instance
// itself is released to the garbage collector; disposal of external
// resources is the validator/reset callbacks' concern.
func (p *Pool[T]) destroy(id uint64) {
	p.rec.recordDestruction()
	if ev, ok := p.strategy.(Evictor); ok {
		ev.NoteDestroyed(id)
	}
	p.notifyDestroyed(id)
}
