package pool

import (
	"math"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of a pool's counters and derived rates.
// It is an immutable value; reading it never blocks pool traffic beyond the
// short critical section needed to read the idle and issued counts.
//
// Invariant: Total == Available + Active at every quiescent point.
type Stats struct {
	Name string `json:"name"`

	// Current instance counts
	Total     int `json:"total"`
	Available int `json:"available"`
	Active    int `json:"active"`

	// Configured bounds, included so strategies can decide from the
	// snapshot alone.
	InitialCapacity int `json:"initial_capacity"`
	MaxCapacity     int `json:"max_capacity"`

	// Cumulative counters
	Gets             int64 `json:"gets"`
	Returns          int64 `json:"returns"`
	Creations        int64 `json:"creations"`
	Destructions     int64 `json:"destructions"`
	ValidationErrors int64 `json:"validation_errors"`
	Hits             int64 `json:"hits"`
	Misses           int64 `json:"misses"`

	// Running latency averages (exponentially weighted)
	AvgGetLatency    time.Duration `json:"avg_get_latency"`
	AvgReturnLatency time.Duration `json:"avg_return_latency"`

	LastActivity time.Time `json:"last_activity"`

	// Derived rates
	HitRate     float64 `json:"hit_rate"`    // gets satisfied without construction
	ErrorRate   float64 `json:"error_rate"`  // validation errors per operation
	Utilization float64 `json:"utilization"` // active / total
}

// ewmaAlpha weights new latency samples in the running average. Chosen so
// roughly the last ~16 samples dominate while memory stays one word.
const ewmaAlpha = 0.125

// recorder accumulates per-pool counters with atomic, non-blocking updates
// on the hot path and produces snapshot values on demand. It is independent
// of the idle-collection lock, so statistics reads never block get/return.
type recorder struct {
	gets             int64
	returns          int64
	creations        int64
	destructions     int64
	validationErrors int64
	hits             int64
	misses           int64
	getLatency       uint64 // float64 bits, EWMA nanoseconds
	returnLatency    uint64 // float64 bits, EWMA nanoseconds
	lastActivity     int64  // unix nanoseconds
}

func (r *recorder) recordGet(start time.Time, hit bool) {
	atomic.AddInt64(&r.gets, 1)
	if hit {
		atomic.AddInt64(&r.hits, 1)
	} else {
		atomic.AddInt64(&r.misses, 1)
	}
	observeEWMA(&r.getLatency, time.Since(start))
	atomic.StoreInt64(&r.lastActivity, time.Now().UnixNano())
}

func (r *recorder) recordReturn(start time.Time) {
	atomic.AddInt64(&r.returns, 1)
	observeEWMA(&r.returnLatency, time.Since(start))
	atomic.StoreInt64(&r.lastActivity, time.Now().UnixNano())
}

func (r *recorder) recordCreation() {
	atomic.AddInt64(&r.creations, 1)
}

func (r *recorder) recordDestruction() {
	atomic.AddInt64(&r.destructions, 1)
}

func (r *recorder) recordValidationError() {
	atomic.AddInt64(&r.validationErrors, 1)
}

// snapshotInto fills the cumulative and derived fields of s from the
// recorder. The caller supplies the current counts.
func (r *recorder) snapshotInto(s *Stats) {
	s.Gets = atomic.LoadInt64(&r.gets)
	s.Returns = atomic.LoadInt64(&r.returns)
	s.Creations = atomic.LoadInt64(&r.creations)
	s.Destructions = atomic.LoadInt64(&r.destructions)
	s.ValidationErrors = atomic.LoadInt64(&r.validationErrors)
	s.Hits = atomic.LoadInt64(&r.hits)
	s.Misses = atomic.LoadInt64(&r.misses)
	s.AvgGetLatency = loadEWMA(&r.getLatency)
	s.AvgReturnLatency = loadEWMA(&r.returnLatency)
	if ns := atomic.LoadInt64(&r.lastActivity); ns > 0 {
		s.LastActivity = time.Unix(0, ns)
	}

	if s.Gets > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Gets)
	}
	if ops := s.Gets + s.Returns; ops > 0 {
		s.ErrorRate = float64(s.ValidationErrors) / float64(ops)
	}
	if s.Total > 0 {
		s.Utilization = float64(s.Active) / float64(s.Total)
	}
}

// observeEWMA folds a new sample into the running average with a CAS loop.
// The first sample seeds the average directly.
func observeEWMA(bits *uint64, d time.Duration) {
	sample := float64(d.Nanoseconds())
	for {
		old := atomic.LoadUint64(bits)
		cur := math.Float64frombits(old)
		next := sample
		if old != 0 {
			next = cur + ewmaAlpha*(sample-cur)
		}
		if atomic.CompareAndSwapUint64(bits, old, math.Float64bits(next)) {
			return
		}
	}
}

func loadEWMA(bits *uint64) time.Duration {
	return time.Duration(math.Float64frombits(atomic.LoadUint64(bits)))
}
