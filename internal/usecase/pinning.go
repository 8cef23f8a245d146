package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/geometry"
)

// PinConfig holds window pinning settings.
type PinConfig struct {
	MaxFailures int  // Consecutive failed ticks before the session ends
	Measure     bool // Measure the real window after pinning
	PadMargin   int  // Outward padding applied to a measured window
}

// DefaultPinConfig returns default pinning configuration.
func DefaultPinConfig() PinConfig {
	return PinConfig{
		MaxFailures: 5,
		Measure:     true,
		PadMargin:   4,
	}
}

// EnforceOutcome is the result of one enforcement tick.
type EnforceOutcome struct {
	WindowGone bool         // Target has no window left
	Err        error        // Query or pin failed
	Measured   *domain.Rect // Window bounds after pinning, when measured
}

// PinSupervisor keeps the target's front window locked to the opening.
// Enforce is safe to call from a worker goroutine; the failure counter is
// owned by the caller's goroutine.
type PinSupervisor struct {
	windows  domain.WindowControl
	config   PinConfig
	logger   *zap.Logger
	failures int
}

// NewPinSupervisor creates a pin supervisor.
func NewPinSupervisor(windows domain.WindowControl, config PinConfig, logger *zap.Logger) *PinSupervisor {
	return &PinSupervisor{
		windows: windows,
		config:  config,
		logger:  logger,
	}
}

// Activate brings the target app to the front.
func (p *PinSupervisor) Activate(ctx context.Context, app string) error {
	if err := p.windows.Activate(ctx, app); err != nil {
		return fmt.Errorf("activate %q: %w", app, err)
	}
	return nil
}

// HasWindow reports whether the target app has at least one window.
func (p *PinSupervisor) HasWindow(ctx context.Context, app string) (bool, error) {
	ok, err := p.windows.HasWindow(ctx, app)
	if err != nil {
		return false, fmt.Errorf("query windows of %q: %w", app, err)
	}
	return ok, nil
}

// Pin raises, un-minimizes and moves the front window into rect.
func (p *PinSupervisor) Pin(ctx context.Context, app string, rect domain.Rect) error {
	if err := p.windows.SetBounds(ctx, app, rect); err != nil {
		return fmt.Errorf("pin %q: %w", app, err)
	}
	return nil
}

// MeasureBounds returns the front window's actual bounds, nil if it has none.
func (p *PinSupervisor) MeasureBounds(ctx context.Context, app string) (*domain.Rect, error) {
	r, err := p.windows.GetBounds(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("measure %q: %w", app, err)
	}
	return r, nil
}

// Refine measures the pinned window and returns it padded outward as the
// authoritative opening. Without measurement, or when the window cannot be
// measured, opening is returned unchanged.
func (p *PinSupervisor) Refine(ctx context.Context, app string, opening, full domain.Rect) domain.Rect {
	if !p.config.Measure {
		return opening
	}

	measured, err := p.MeasureBounds(ctx, app)
	if err != nil {
		p.logger.Warn("failed to measure window, keeping computed opening", zap.Error(err))
		return opening
	}
	if measured == nil {
		p.logger.Debug("no window to measure, keeping computed opening")
		return opening
	}

	refined := geometry.PadOutward(*measured, p.config.PadMargin, full)
	if refined.Empty() {
		return opening
	}
	if refined != opening {
		p.logger.Info("opening refined from measured window",
			zap.Any("computed", opening),
			zap.Any("measured", *measured),
			zap.Any("refined", refined))
	}
	return refined
}

// Enforce runs one enforcement tick. Window existence is checked first so a
// closed target is reported as WindowGone rather than a pin failure.
func (p *PinSupervisor) Enforce(ctx context.Context, app string, opening domain.Rect) EnforceOutcome {
	ok, err := p.HasWindow(ctx, app)
	if err != nil {
		return EnforceOutcome{Err: err}
	}
	if !ok {
		return EnforceOutcome{WindowGone: true}
	}

	if err := p.Pin(ctx, app, opening); err != nil {
		return EnforceOutcome{Err: err}
	}

	if !p.config.Measure {
		return EnforceOutcome{}
	}

	measured, err := p.MeasureBounds(ctx, app)
	if err != nil {
		p.logger.Debug("failed to measure window after pin", zap.Error(err))
		return EnforceOutcome{}
	}
	if measured != nil && *measured != opening {
		p.logger.Debug("window drifted from opening",
			zap.Any("opening", opening),
			zap.Any("measured", *measured))
	}
	return EnforceOutcome{Measured: measured}
}

// RecordSuccess resets the consecutive failure counter.
func (p *PinSupervisor) RecordSuccess() {
	if p.failures > 0 {
		p.logger.Info("window pinning recovered", zap.Int("after_failures", p.failures))
	}
	p.failures = 0
}

// RecordFailure counts a failed tick and reports whether the limit is reached.
func (p *PinSupervisor) RecordFailure() (count int, exhausted bool) {
	p.failures++
	return p.failures, p.failures >= p.config.MaxFailures
}

// ResetFailures clears the counter for a new session.
func (p *PinSupervisor) ResetFailures() {
	p.failures = 0
}

// Failures returns the current consecutive failure count.
func (p *PinSupervisor) Failures() int {
	return p.failures
}
