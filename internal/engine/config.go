package engine

import (
	"time"

	"github.com/eliteGoblin/focusd/app_lock/internal/usecase"
)

// Config holds engine configuration.
type Config struct {
	PinInterval      time.Duration // How often the window is re-pinned (default 600ms)
	WatchdogInterval time.Duration // How often the coverage invariant is checked (default 1s)
	CallTimeout      time.Duration // Bound on one enforcement call to the host
	TeardownTimeout  time.Duration // Bound on restoring state during teardown

	Coverage   usecase.CoverageConfig
	Pin        usecase.PinConfig
	Preference usecase.PreferenceConfig
}

// DefaultConfig returns default engine configuration.
func DefaultConfig() Config {
	return Config{
		PinInterval:      600 * time.Millisecond,
		WatchdogInterval: time.Second,
		CallTimeout:      5 * time.Second,
		TeardownTimeout:  10 * time.Second,
		Coverage:         usecase.DefaultCoverageConfig(),
		Pin:              usecase.DefaultPinConfig(),
		Preference:       usecase.DefaultPreferenceConfig(),
	}
}
