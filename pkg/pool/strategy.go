package pool

import (
	"sync"
	"time"
)

// Strategy is a pure sizing policy evaluated against a Stats snapshot. It
// holds no mutable state beyond configuration constants, so one strategy
// value may serve many pools.
type Strategy interface {
	// ShouldCreateNew reports whether Get may construct a new instance
	// when the idle set is empty.
	ShouldCreateNew(s Stats) bool

	// ShouldExpand reports whether the pool is under pressure and would
	// benefit from growing.
	ShouldExpand(s Stats) bool

	// ShouldContract reports whether the pool is oversized for its
	// current load.
	ShouldContract(s Stats) bool

	// TargetSize returns the total size the pool should trim toward.
	TargetSize(s Stats) int
}

// Evictor is an optional extension implemented by strategies that track
// per-instance idle age. The pool feeds it return and destruction events;
// TrimExcess consults ShouldDestroy for each idle instance.
type Evictor interface {
	NoteReturned(id uint64, t time.Time)
	NoteDestroyed(id uint64)
	ShouldDestroy(id uint64, now time.Time) bool
}

// FixedStrategy pins the pool at its initial capacity: it never expands
// beyond it and trims back down to it.
type FixedStrategy struct{}

// NewFixedStrategy returns a strategy that holds the pool at its
// configured initial capacity.
func NewFixedStrategy() FixedStrategy { return FixedStrategy{} }

func (FixedStrategy) ShouldCreateNew(s Stats) bool { return s.Total < s.InitialCapacity }

func (FixedStrategy) ShouldExpand(Stats) bool { return false }

func (FixedStrategy) ShouldContract(Stats) bool { return false }

func (FixedStrategy) TargetSize(s Stats) int { return s.InitialCapacity }

// DynamicStrategy grows and shrinks the pool between its initial and
// maximum capacity based on utilization (active / total).
type DynamicStrategy struct {
	// ExpansionThreshold is the utilization above which TargetSize grows
	// the pool by SizeIncrement.
	ExpansionThreshold float64
	// ContractionThreshold is the utilization below which the pool
	// shrinks by SizeIncrement, never below the initial capacity.
	ContractionThreshold float64
	// SizeIncrement is the step applied per sizing pass.
	SizeIncrement int
}

// NewDynamicStrategy returns a DynamicStrategy with the default 0.8
// expansion threshold, 0.3 contraction threshold, and an increment of 4.
func NewDynamicStrategy() DynamicStrategy {
	return DynamicStrategy{
		ExpansionThreshold:   0.8,
		ContractionThreshold: 0.3,
		SizeIncrement:        4,
	}
}

func (d DynamicStrategy) ShouldCreateNew(s Stats) bool { return s.Total < s.MaxCapacity }

func (d DynamicStrategy) ShouldExpand(s Stats) bool {
	return s.Available == 0 && s.Total < s.MaxCapacity
}

func (d DynamicStrategy) ShouldContract(s Stats) bool {
	return s.Utilization < d.ContractionThreshold && s.Total > s.InitialCapacity
}

func (d DynamicStrategy) TargetSize(s Stats) int {
	switch {
	case s.Utilization > d.ExpansionThreshold:
		target := s.Total + d.SizeIncrement
		if target > s.MaxCapacity {
			target = s.MaxCapacity
		}
		return target
	case s.Utilization < d.ContractionThreshold:
		target := s.Total - d.SizeIncrement
		if target < s.InitialCapacity {
			target = s.InitialCapacity
		}
		return target
	default:
		return s.Total
	}
}

// TimeEvictionStrategy wraps another strategy and additionally marks
// instances for destruction once they have sat idle longer than MaxIdle.
// Unlike the pure strategies it keeps private per-instance state: last-used
// timestamps keyed by instance identity, added on return and dropped on
// destruction.
type TimeEvictionStrategy struct {
	inner   Strategy
	maxIdle time.Duration

	mu       sync.Mutex
	lastUsed map[uint64]time.Time
}

// NewTimeEvictionStrategy wraps inner with idle-age eviction. A nil inner
// defaults to NewDynamicStrategy().
func NewTimeEvictionStrategy(inner Strategy, maxIdle time.Duration) *TimeEvictionStrategy {
	if inner == nil {
		inner = NewDynamicStrategy()
	}
	return &TimeEvictionStrategy{
		inner:    inner,
		maxIdle:  maxIdle,
		lastUsed: make(map[uint64]time.Time),
	}
}

func (t *TimeEvictionStrategy) ShouldCreateNew(s Stats) bool { return t.inner.ShouldCreateNew(s) }

func (t *TimeEvictionStrategy) ShouldExpand(s Stats) bool { return t.inner.ShouldExpand(s) }

func (t *TimeEvictionStrategy) ShouldContract(s Stats) bool { return t.inner.ShouldContract(s) }

func (t *TimeEvictionStrategy) TargetSize(s Stats) int { return t.inner.TargetSize(s) }

// NoteReturned records when an instance last re-entered the idle set.
func (t *TimeEvictionStrategy) NoteReturned(id uint64, at time.Time) {
	t.mu.Lock()
	t.lastUsed[id] = at
	t.mu.Unlock()
}

// NoteDestroyed drops the tracking entry for a destroyed instance.
func (t *TimeEvictionStrategy) NoteDestroyed(id uint64) {
	t.mu.Lock()
	delete(t.lastUsed, id)
	t.mu.Unlock()
}

// ShouldDestroy reports whether the instance has been idle longer than the
// configured maximum. Unknown instances are kept.
func (t *TimeEvictionStrategy) ShouldDestroy(id uint64, now time.Time) bool {
	if t.maxIdle <= 0 {
		return false
	}
	t.mu.Lock()
	last, ok := t.lastUsed[id]
	t.mu.Unlock()
	return ok && now.Sub(last) >= t.maxIdle
}
