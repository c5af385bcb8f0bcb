// Package workload drives synthetic get/return traffic against a pool.
// The CLI uses it for benchmarking; it doubles as a concurrency soak that
// checks the capacity bound from the outside.
package workload

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/poolkit/pkg/pool"
	"github.com/ajitpratap0/poolkit/pkg/poolerrors"
)

// Payload is the object type benched by the CLI.
type Payload struct {
	Data []byte
}

// NewPayloadFactory returns a factory building payloads of the given size.
func NewPayloadFactory(size int) func() (*Payload, error) {
	return func() (*Payload, error) {
		return &Payload{Data: make([]byte, 0, size)}, nil
	}
}

// ResetPayload clears a payload for reuse.
func ResetPayload(p *Payload) { p.Data = p.Data[:0] }

// Options control a workload run.
type Options struct {
	// Workers is the number of concurrent goroutines.
	Workers int

	// Cycles is the number of get/return cycles per worker.
	Cycles int

	// Hold is how long each worker keeps its lease before returning it.
	Hold time.Duration

	// Touch writes into the payload while held, so the run exercises the
	// memory and not just the bookkeeping.
	Touch bool
}

// Result summarizes a workload run.
type Result struct {
	Workers   int           `json:"workers"`
	Cycles    int           `json:"cycles"`
	Duration  time.Duration `json:"duration"`
	Completed int64         `json:"completed"`
	Exhausted int64         `json:"exhausted"`
	MaxActive int64         `json:"max_active"`

	// CyclesPerSecond is completed cycles over wall time.
	CyclesPerSecond float64 `json:"cycles_per_second"`

	Stats pool.Stats `json:"stats"`
}

// Run executes the workload against p. Exhaustion errors are counted and
// the cycle retried after a short backoff; any other error aborts the run.
// Cancelling ctx stops the workers at the next cycle boundary.
func Run(ctx context.Context, p *pool.Pool[*Payload], opts Options, log *zap.Logger) (Result, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Cycles <= 0 {
		opts.Cycles = 1
	}

	var (
		completed int64
		exhausted int64
		active    int64
		maxActive int64

		mu       sync.Mutex
		fatalErr error
	)

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < opts.Cycles; i++ {
				if ctx.Err() != nil {
					return
				}

				lease, err := p.Get()
				if err != nil {
					if poolerrors.IsRetryable(err) {
						atomic.AddInt64(&exhausted, 1)
						time.Sleep(50 * time.Microsecond)
						i--
						continue
					}
					mu.Lock()
					if fatalErr == nil {
						fatalErr = err
					}
					mu.Unlock()
					return
				}

				cur := atomic.AddInt64(&active, 1)
				for {
					prev := atomic.LoadInt64(&maxActive)
					if cur <= prev || atomic.CompareAndSwapInt64(&maxActive, prev, cur) {
						break
					}
				}

				if opts.Touch {
					lease.Value.Data = append(lease.Value.Data, byte(i))
				}
				if opts.Hold > 0 {
					time.Sleep(opts.Hold)
				}

				atomic.AddInt64(&active, -1)
				if err := p.Return(lease); err != nil {
					mu.Lock()
					if fatalErr == nil {
						fatalErr = err
					}
					mu.Unlock()
					return
				}
				atomic.AddInt64(&completed, 1)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	if fatalErr != nil {
		return Result{}, fatalErr
	}

	res := Result{
		Workers:   opts.Workers,
		Cycles:    opts.Cycles,
		Duration:  elapsed,
		Completed: atomic.LoadInt64(&completed),
		Exhausted: atomic.LoadInt64(&exhausted),
		MaxActive: atomic.LoadInt64(&maxActive),
		Stats:     p.Statistics(),
	}
	if elapsed > 0 {
		res.CyclesPerSecond = float64(res.Completed) / elapsed.Seconds()
	}

	if log != nil {
		log.Info("workload complete",
			zap.Int64("completed", res.Completed),
			zap.Int64("exhausted", res.Exhausted),
			zap.Int64("max_active", res.MaxActive),
			zap.Duration("duration", res.Duration),
			zap.Float64("cycles_per_second", res.CyclesPerSecond))
	}
	return res, nil
}
