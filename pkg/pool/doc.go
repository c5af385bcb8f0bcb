// Package pool provides bounded, type-safe object pooling for poolkit.
// It hands out pre-constructed instances under a lease abstraction,
// recycling them instead of freeing and reconstructing, which eliminates
// allocation churn under sustained high-frequency workloads.
//
// The package provides:
//   - Generic bounded pooling with Pool[T] and value-type leases
//   - Pluggable sizing strategies (fixed, dynamic, time-based eviction)
//   - Lock-free statistics recording with immutable snapshots
//   - Ownership tracking that rejects foreign and double returns
//   - Synchronous lifecycle observers (created/returned/destroyed)
//
// Example usage:
//
//	p, err := pool.New(pool.Config[*Frame]{
//	    Name:            "frames",
//	    InitialCapacity: 8,
//	    MaxCapacity:     64,
//	    Factory:         func() (*Frame, error) { return NewFrame(), nil },
//	    Reset:           func(f *Frame) { f.Reset() },
//	})
//	if err != nil {
//	    return err
//	}
//
//	lease, err := p.Get()
//	if err != nil {
//	    return err
//	}
//	defer p.Return(lease)
//
//	use(lease.Value)
//
// Get never blocks waiting for capacity: it either satisfies the request
// from the idle set, constructs a new instance if the strategy and the
// capacity bound allow it, or fails fast with an exhausted error. Callers
// distinguish failure modes with poolerrors.IsType.
package pool
