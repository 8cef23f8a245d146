package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/metrics"
)

// RegionCounter reports how many coverage regions are alive.
type RegionCounter interface {
	Count(ctx context.Context) (int, error)
}

// Verdict is the result of one invariant check.
type Verdict struct {
	Count int
	OK    bool
	Err   error // Evaluating the check failed or panicked
}

// Watchdog verifies the coverage set still holds exactly five live regions.
type Watchdog struct {
	coverage RegionCounter
	expected int
	logger   *zap.Logger
}

// NewWatchdog creates an invariant watchdog.
func NewWatchdog(coverage RegionCounter, logger *zap.Logger) *Watchdog {
	return &Watchdog{
		coverage: coverage,
		expected: domain.CoverageRegionCount,
		logger:   logger,
	}
}

// Check evaluates the invariant once.
func (w *Watchdog) Check(ctx context.Context) (v Verdict) {
	defer func() {
		if r := recover(); r != nil {
			v = Verdict{Err: fmt.Errorf("coverage check panicked: %v", r)}
			w.record(v)
		}
	}()

	n, err := w.coverage.Count(ctx)
	if err != nil {
		v = Verdict{Err: err}
	} else {
		v = Verdict{Count: n, OK: n == w.expected}
	}
	w.record(v)
	return v
}

func (w *Watchdog) record(v Verdict) {
	switch {
	case v.Err != nil:
		metrics.WatchdogChecks.WithLabelValues("error").Inc()
		w.logger.Warn("coverage check failed", zap.Error(v.Err))
	case !v.OK:
		metrics.WatchdogChecks.WithLabelValues("violated").Inc()
		w.logger.Warn("coverage invariant violated",
			zap.Int("count", v.Count),
			zap.Int("expected", w.expected))
	default:
		metrics.WatchdogChecks.WithLabelValues("ok").Inc()
	}
}
