// Package health derives a coarse service health status from aggregated
// pool statistics. It sits on the consuming side of the registry's
// statistics boundary: it never reaches into pools, only into snapshots.
package health

import (
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/poolkit/pkg/logger"
	"github.com/ajitpratap0/poolkit/pkg/registry"
)

// Status is the coarse health verdict.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Thresholds define when aggregated statistics degrade the status. A zero
// field disables that check.
type Thresholds struct {
	// MaxErrorRate is the validation-error rate above which the status is
	// unhealthy; half of it marks degraded.
	MaxErrorRate float64 `json:"max_error_rate" yaml:"max_error_rate"`

	// MaxUtilization flags pools running close to exhaustion. Crossing it
	// marks degraded; a fully utilized registry with pending demand is
	// reported unhealthy by the per-pool check.
	MaxUtilization float64 `json:"max_utilization" yaml:"max_utilization"`

	// MinHitRate marks degraded when the aggregate hit rate falls below
	// it. Only applied once enough gets have been observed.
	MinHitRate float64 `json:"min_hit_rate" yaml:"min_hit_rate"`
}

// DefaultThresholds returns the limits used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxErrorRate:   0.05,
		MaxUtilization: 0.9,
		MinHitRate:     0.5,
	}
}

// hitRateMinSamples suppresses the hit-rate check until the counters carry
// enough signal. Cold pools always miss.
const hitRateMinSamples = 100

// Report is one health evaluation.
type Report struct {
	Status  Status               `json:"status"`
	Reasons []string             `json:"reasons,omitempty"`
	Stats   registry.GlobalStats `json:"stats"`
}

// StatsSource is the registry surface the reporter reads. Implemented by
// *registry.Registry.
type StatsSource interface {
	GlobalStatistics() registry.GlobalStats
}

// Reporter evaluates thresholds against registry snapshots.
type Reporter struct {
	src StatsSource
	th  Thresholds
	log *zap.Logger
}

// NewReporter constructs a reporter. Zero thresholds are replaced with
// defaults; a nil log defaults to the global logger.
func NewReporter(src StatsSource, th Thresholds, log *zap.Logger) *Reporter {
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}
	if log == nil {
		log = logger.Get()
	}
	return &Reporter{
		src: src,
		th:  th,
		log: log.With(zap.String("component", "health")),
	}
}

// Report evaluates the current snapshot.
func (r *Reporter) Report() Report {
	g := r.src.GlobalStatistics()
	rep := Report{Status: StatusHealthy, Stats: g}

	if r.th.MaxErrorRate > 0 {
		switch {
		case g.ErrorRate >= r.th.MaxErrorRate:
			rep.degrade(StatusUnhealthy, "validation error rate above limit")
		case g.ErrorRate >= r.th.MaxErrorRate/2:
			rep.degrade(StatusDegraded, "validation error rate elevated")
		}
	}

	if r.th.MaxUtilization > 0 && g.Utilization >= r.th.MaxUtilization {
		rep.degrade(StatusDegraded, "aggregate utilization above limit")
	}

	if r.th.MinHitRate > 0 && g.Gets >= hitRateMinSamples && g.HitRate < r.th.MinHitRate {
		rep.degrade(StatusDegraded, "hit rate below limit")
	}

	// A pool pinned at its capacity bound means callers are one Get away
	// from exhaustion errors.
	for name, s := range g.PerPool {
		if s.MaxCapacity > 0 && s.Active == s.MaxCapacity {
			rep.degrade(StatusUnhealthy, "pool at capacity: "+name)
		}
	}

	if rep.Status != StatusHealthy {
		r.log.Warn("health check not passing",
			zap.String("status", string(rep.Status)),
			zap.Strings("reasons", rep.Reasons))
	}
	return rep
}

// ServeHTTP exposes the report as JSON. Degraded still answers 200 so
// orchestrators keep routing; only unhealthy turns into 503.
func (r *Reporter) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	rep := r.Report()

	w.Header().Set("Content-Type", "application/json")
	if rep.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		r.log.Error("failed to encode health report", zap.Error(err))
	}
}

// degrade records a reason and lowers the status, never raising it.
func (rep *Report) degrade(to Status, reason string) {
	rep.Reasons = append(rep.Reasons, reason)
	if rep.Status == StatusUnhealthy {
		return
	}
	if to == StatusUnhealthy || rep.Status == StatusHealthy {
		rep.Status = to
	}
}
