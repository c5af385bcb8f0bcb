// Package maintenance provides the periodic background driver that trims
// and validates every pool in a registry. Each pass is independent: a
// failure in one pool never prevents other pools from being serviced in
// the same or subsequent passes.
package maintenance

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/poolkit/pkg/logger"
	"github.com/ajitpratap0/poolkit/pkg/metrics"
	"github.com/ajitpratap0/poolkit/pkg/registry"
)

// DefaultInterval is the pass interval used when none is configured.
const DefaultInterval = time.Minute

// Config holds scheduler settings.
type Config struct {
	// Interval between maintenance passes. Defaults to DefaultInterval.
	Interval time.Duration

	// MemoryWatermark is the fraction of system memory (0..1) above which
	// a pass escalates from trimming to clearing all idle instances.
	// Zero disables pressure handling.
	MemoryWatermark float64
}

// Scheduler runs trim and validate passes over a registry on a fixed
// interval. It is stoppable without leaking the timer: an in-flight pass
// is allowed to complete, Stop waits for the loop to exit, and no pass
// starts after Stop returns.
type Scheduler struct {
	cfg Config
	reg *registry.Registry
	log *zap.Logger

	// pressure reports system memory usage as a fraction; injectable so
	// tests don't depend on host state.
	pressure func() (float64, error)

	passes int64 // atomic

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	triggerCh chan struct{}
}

// NewScheduler constructs a scheduler over reg. A nil log defaults to the
// global logger.
func NewScheduler(reg *registry.Registry, cfg Config, log *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if log == nil {
		log = logger.Get()
	}
	return &Scheduler{
		cfg:       cfg,
		reg:       reg,
		log:       log.With(zap.String("component", "maintenance")),
		pressure:  systemMemoryUsage,
		triggerCh: make(chan struct{}, 1),
	}
}

// Start launches the background loop. It fails if the scheduler is
// already running. The loop also exits when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errAlreadyRunning
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	go s.run(ctx)
	s.log.Info("maintenance scheduler started", zap.Duration("interval", s.cfg.Interval))
	return nil
}

// Stop signals the loop to exit and waits for it. Stopping a scheduler
// that is not running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.log.Info("maintenance scheduler stopped")
}

// TriggerNow requests an immediate pass without waiting for the ticker.
// The request is dropped if one is already pending.
func (s *Scheduler) TriggerNow() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Passes returns the number of completed maintenance passes.
func (s *Scheduler) Passes() int64 {
	return atomic.LoadInt64(&s.passes)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		// Stop wins over a tick that became ready at the same time.
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-s.triggerCh:
			s.runPass()
		case <-ticker.C:
			s.runPass()
		}
	}
}

// runPass executes one trim + validate cycle across the registry.
func (s *Scheduler) runPass() {
	start := time.Now()

	destroyed := s.reg.TrimExcess()

	if err := s.reg.ValidateAll(); err != nil {
		// Per-pool findings, already reflected in statistics; the pass
		// itself carries on.
		s.log.Warn("validation pass reported failures", zap.Error(err))
	}

	if s.cfg.MemoryWatermark > 0 {
		usage, err := s.pressure()
		if err != nil {
			s.log.Warn("memory pressure probe failed", zap.Error(err))
		} else if usage >= s.cfg.MemoryWatermark {
			s.log.Warn("memory pressure above watermark, clearing idle instances",
				zap.Float64("usage", usage),
				zap.Float64("watermark", s.cfg.MemoryWatermark))
			s.reg.ClearAll()
		}
	}

	elapsed := time.Since(start)
	metrics.MaintenancePassDuration.Observe(elapsed.Seconds())
	metrics.MaintenanceDestructions.Add(float64(destroyed))
	atomic.AddInt64(&s.passes, 1)

	s.log.Debug("maintenance pass complete",
		zap.Int("destroyed", destroyed),
		zap.Duration("elapsed", elapsed))
}
