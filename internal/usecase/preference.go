package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// PreferenceConfig holds the session preference toggle settings.
type PreferenceConfig struct {
	Enabled      bool
	Key          string        // Preference key, e.g. _HIHideMenuBar
	SessionValue bool          // Value applied for the session
	SettleDelay  time.Duration // Wait after writing so the host re-lays out
}

// DefaultPreferenceConfig returns default preference configuration.
func DefaultPreferenceConfig() PreferenceConfig {
	return PreferenceConfig{
		Enabled:      true,
		Key:          "_HIHideMenuBar",
		SessionValue: true,
		SettleDelay:  600 * time.Millisecond,
	}
}

// PreferenceGuard toggles one system preference for the session and puts the
// original value back exactly once. Owned by the engine loop.
type PreferenceGuard struct {
	prefs    domain.PreferenceService
	config   PreferenceConfig
	clock    clockwork.Clock
	logger   *zap.Logger
	snapshot *domain.PrefValue
}

// NewPreferenceGuard creates a preference guard.
func NewPreferenceGuard(
	prefs domain.PreferenceService,
	config PreferenceConfig,
	clock clockwork.Clock,
	logger *zap.Logger,
) *PreferenceGuard {
	return &PreferenceGuard{
		prefs:  prefs,
		config: config,
		clock:  clock,
		logger: logger,
	}
}

// Engage snapshots the current value, applies the session value and waits
// for the host to settle. An unreadable value is snapshotted as unknown.
func (g *PreferenceGuard) Engage(ctx context.Context) error {
	if !g.config.Enabled {
		return nil
	}

	current, err := g.prefs.Read(ctx, g.config.Key)
	if err != nil {
		g.logger.Warn("failed to read preference, snapshot unknown",
			zap.String("key", g.config.Key),
			zap.Error(err))
		current = domain.PrefUnknown
	}
	g.snapshot = &current

	if err := g.prefs.Write(ctx, g.config.Key, g.config.SessionValue); err != nil {
		return fmt.Errorf("write preference %s: %w", g.config.Key, err)
	}

	g.logger.Info("preference engaged",
		zap.String("key", g.config.Key),
		zap.Stringer("previous", current),
		zap.Bool("session_value", g.config.SessionValue))

	if g.config.SettleDelay <= 0 {
		return nil
	}
	select {
	case <-g.clock.After(g.config.SettleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restore writes the snapshot back. An absent or unknown snapshot is a no-op.
// The snapshot is consumed even if the write fails.
func (g *PreferenceGuard) Restore(ctx context.Context) (restored bool, err error) {
	snap := g.snapshot
	g.snapshot = nil

	if snap == nil {
		g.logger.Debug("no preference snapshot to restore")
		return false, nil
	}
	if !snap.Known() {
		g.logger.Info("preference snapshot unknown, leaving value as is",
			zap.String("key", g.config.Key))
		return false, nil
	}

	if err := g.prefs.Write(ctx, g.config.Key, snap.Bool()); err != nil {
		return false, fmt.Errorf("restore preference %s: %w", g.config.Key, err)
	}

	g.logger.Info("preference restored",
		zap.String("key", g.config.Key),
		zap.Stringer("value", *snap))
	return true, nil
}

// Engaged reports whether a snapshot is pending restore.
func (g *PreferenceGuard) Engaged() bool {
	return g.snapshot != nil
}
