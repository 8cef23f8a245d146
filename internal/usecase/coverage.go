// Package usecase contains the focus-lock building blocks the engine composes.
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/geometry"
	"github.com/eliteGoblin/focusd/app_lock/internal/metrics"
)

// reassertTimeout bounds a delayed AssertTopmost call.
const reassertTimeout = 2 * time.Second

// CoverageConfig holds coverage region settings.
type CoverageConfig struct {
	CapHeight      int             // Thin strip masking OS chrome seams at the top
	Overlap        int             // Pixels adjoining regions overlap by (max 3)
	Color          string          // Region fill colour
	ExitHint       string          // Label on the bottom region
	ReassertDelays []time.Duration // Delayed topmost re-assertions after show
}

// DefaultCoverageConfig returns default coverage configuration.
func DefaultCoverageConfig() CoverageConfig {
	return CoverageConfig{
		CapHeight:      6,
		Overlap:        2,
		Color:          "#000000",
		ExitHint:       "EXIT: applock end    QUIT: applock quit",
		ReassertDelays: []time.Duration{50 * time.Millisecond, 150 * time.Millisecond},
	}
}

// CoverageManager owns the set of regions covering everything outside the opening.
type CoverageManager struct {
	factory domain.SurfaceFactory
	config  CoverageConfig
	clock   clockwork.Clock
	logger  *zap.Logger

	mu      sync.Mutex
	regions []*region
}

// NewCoverageManager creates a coverage manager.
func NewCoverageManager(
	factory domain.SurfaceFactory,
	config CoverageConfig,
	clock clockwork.Clock,
	logger *zap.Logger,
) *CoverageManager {
	return &CoverageManager{
		factory: factory,
		config:  config,
		clock:   clock,
		logger:  logger,
	}
}

// Create destroys any existing set and materializes the five regions framing
// opening. On failure every region created so far is destroyed.
func (m *CoverageManager) Create(ctx context.Context, full, opening domain.Rect) error {
	if err := m.Destroy(); err != nil {
		m.logger.Warn("failed to destroy previous coverage", zap.Error(err))
	}

	specs := geometry.CoverageLayout(full, opening, m.config.CapHeight, m.config.Overlap)
	created := make([]*region, 0, len(specs))

	for _, spec := range specs {
		spec.Color = m.config.Color
		if spec.Role == domain.RegionBottom {
			spec.Label = m.config.ExitHint
		}

		r, err := m.materialize(ctx, spec)
		if err != nil {
			for _, c := range created {
				if derr := c.destroy(); derr != nil {
					m.logger.Warn("failed to destroy partial region",
						zap.String("role", string(c.spec.Role)),
						zap.Error(derr))
				}
			}
			return fmt.Errorf("create %s region: %w", spec.Role, err)
		}
		created = append(created, r)
	}

	m.mu.Lock()
	m.regions = created
	m.mu.Unlock()

	metrics.CoverageRegions.Set(float64(len(created)))
	m.logger.Info("coverage created",
		zap.Int("regions", len(created)),
		zap.Any("opening", opening))
	return nil
}

func (m *CoverageManager) materialize(ctx context.Context, spec domain.RegionSpec) (*region, error) {
	surface, err := m.factory.Create(ctx, spec)
	if err != nil {
		return nil, err
	}
	r := &region{spec: spec, surface: surface, logger: m.logger}

	// Compositors may drop the topmost flag on show or content load, so it
	// is applied before show, right after it, and again on delayed ticks.
	r.assertTopmost(ctx)
	if err := surface.Show(ctx); err != nil {
		if derr := surface.Destroy(); derr != nil {
			m.logger.Warn("failed to destroy unshown region",
				zap.String("role", string(spec.Role)),
				zap.Error(derr))
		}
		return nil, fmt.Errorf("show: %w", err)
	}
	r.assertTopmost(ctx)

	for _, d := range m.config.ReassertDelays {
		r.timers = append(r.timers, m.clock.AfterFunc(d, func() {
			rctx, cancel := context.WithTimeout(context.Background(), reassertTimeout)
			defer cancel()
			r.assertTopmost(rctx)
		}))
	}

	return r, nil
}

// Destroy stops pending re-assertions and releases every region.
// Safe to call when no coverage exists.
func (m *CoverageManager) Destroy() error {
	m.mu.Lock()
	regions := m.regions
	m.regions = nil
	m.mu.Unlock()

	if len(regions) == 0 {
		return nil
	}

	var errs error
	for _, r := range regions {
		if err := r.destroy(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("destroy %s region: %w", r.spec.Role, err))
		}
	}

	metrics.CoverageRegions.Set(0)
	m.logger.Info("coverage destroyed", zap.Int("regions", len(regions)))
	return errs
}

// Count returns how many managed regions are still alive on screen.
func (m *CoverageManager) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	regions := append([]*region(nil), m.regions...)
	m.mu.Unlock()

	alive := 0
	for _, r := range regions {
		ok, err := r.surface.Alive()
		if err != nil {
			return 0, fmt.Errorf("check %s region: %w", r.spec.Role, err)
		}
		if ok {
			alive++
		}
	}
	return alive, nil
}

// Len returns the number of managed regions without probing them.
func (m *CoverageManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.regions)
}

// Specs returns the specs of the managed regions.
func (m *CoverageManager) Specs() []domain.RegionSpec {
	m.mu.Lock()
	defer m.mu.Unlock()

	specs := make([]domain.RegionSpec, 0, len(m.regions))
	for _, r := range m.regions {
		specs = append(specs, r.spec)
	}
	return specs
}

type region struct {
	spec    domain.RegionSpec
	surface domain.Surface
	logger  *zap.Logger

	mu        sync.Mutex
	destroyed bool
	timers    []clockwork.Timer
}

// assertTopmost is a no-op once the region is destroyed.
func (r *region) assertTopmost(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return
	}
	if err := r.surface.AssertTopmost(ctx); err != nil {
		r.logger.Warn("failed to assert region topmost",
			zap.String("role", string(r.spec.Role)),
			zap.Error(err))
	}
}

func (r *region) destroy() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return nil
	}
	r.destroyed = true
	for _, t := range r.timers {
		t.Stop()
	}
	r.timers = nil
	return r.surface.Destroy()
}
