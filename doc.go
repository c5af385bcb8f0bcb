// Package poolkit provides a bounded, observable object-pool toolkit for
// expensive-to-construct objects: connections, codec contexts, scratch
// buffers, render frames.
//
// Unlike sync.Pool, poolkit pools are bounded, never lose objects to GC
// pressure, track ownership of every instance they hand out, and report
// detailed statistics. Acquisition is fail-fast: when a pool is at
// capacity, Get returns a retryable exhaustion error instead of blocking
// or allocating past the bound.
//
// # Architecture
//
// The library is organized around a few small pieces:
//
// 1. Pool[T] (pkg/pool): the bounded pool itself. Instances are handed
// out as leases carrying a hidden identity tag; only leases the pool
// issued can be returned, so foreign and double returns are rejected.
//
// 2. Strategy (pkg/pool): pluggable sizing policy. FixedStrategy holds a
// pool at its initial capacity; DynamicStrategy grows under pressure and
// shrinks when utilization drops; TimeEvictionStrategy layers idle-age
// eviction over either.
//
// 3. Registry (pkg/registry): an explicit, injectable directory of pools
// keyed by name, with typed access through generic package functions and
// fan-out maintenance operations.
//
// 4. Scheduler (pkg/maintenance): a stoppable background loop that trims
// and validates every registered pool, escalating to a full clear under
// system memory pressure.
//
// # Quick Start
//
//	import (
//	    "github.com/ajitpratap0/poolkit/pkg/pool"
//	    "github.com/ajitpratap0/poolkit/pkg/registry"
//	)
//
//	reg := registry.New(nil)
//	defer reg.Shutdown()
//
//	_, err := registry.Register(reg, pool.Config[*Conn]{
//	    Name:        "connections",
//	    MaxCapacity: 64,
//	    Factory:     dial,
//	    Reset:       func(c *Conn) { c.Reset() },
//	    Validate:    func(c *Conn) bool { return c.Alive() },
//	})
//
//	lease, err := registry.Acquire[*Conn](reg, "connections")
//	if err != nil {
//	    return err
//	}
//	defer registry.Release(reg, "connections", lease)
//
//	use(lease.Value)
//
// # Key Packages
//
//	pkg/pool        - Bounded generic pool, leases, sizing strategies, statistics
//	pkg/registry    - Named pool directory with global statistics
//	pkg/maintenance - Background trim/validate scheduler
//	pkg/bufpool     - Ready-made pooled byte-buffer builder
//	pkg/poolerrors  - Structured error taxonomy
//	pkg/config      - YAML/viper settings for pools and maintenance
//	pkg/metrics     - Prometheus exporter over pool statistics
//	pkg/health      - Threshold-driven health reporting
//	pkg/logger      - Structured logging setup
//
// # Observability
//
// Every pool keeps atomic counters for gets, returns, creations,
// destructions, validation failures, and hit/miss classification, plus
// exponentially weighted latency averages. Snapshots are immutable;
// pkg/metrics turns them into Prometheus metrics per scrape and
// pkg/health derives a coarse healthy/degraded/unhealthy verdict.
//
// # Configuration
//
// Pools and the maintenance loop can be declared in YAML:
//
//	log_level: info
//	maintenance:
//	  interval: 1m
//	  memory_watermark: 0.9
//	pools:
//	  - name: buffers
//	    initial_capacity: 4
//	    max_capacity: 64
//	    prewarm: true
//	    strategy:
//	      kind: dynamic
//
// Environment variables are supported with ${VAR_NAME} syntax, and
// POOLKIT_-prefixed variables override individual keys.
package poolkit
