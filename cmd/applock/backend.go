package main

import (
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/config"
	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/engine"
	"github.com/eliteGoblin/focusd/app_lock/internal/infra"
)

// resolveBackend maps "auto" to the backend for this host.
func resolveBackend(name string) string {
	if name != config.BackendAuto {
		return name
	}
	switch {
	case runtime.GOOS == "darwin":
		return config.BackendDarwin
	case runtime.GOOS == "linux" && os.Getenv("DISPLAY") != "":
		return config.BackendX11
	default:
		return config.BackendHeadless
	}
}

// newServices wires the host integrations for the configured backend.
func newServices(cfg *config.Config, pm domain.ProcessManager, logger *zap.Logger) (engine.Services, string, error) {
	backend := resolveBackend(cfg.Backend)
	runner := &infra.ExecRunner{}
	surfaces := infra.NewHelperSurfaceFactory(cfg.Overlay.HelperPath, infra.ExecLauncher{}, pm, logger)

	switch backend {
	case config.BackendDarwin:
		return engine.Services{
			Display:  infra.NewFinderDisplay(runner, cfg.Display.MenuBarInset),
			Windows:  infra.NewAppleScriptWindowControl(runner, logger),
			Prefs:    infra.NewDefaultsPreference(runner, logger),
			Surfaces: surfaces,
		}, backend, nil

	case config.BackendX11:
		return engine.Services{
			Display:  infra.NewXDisplay(runner, logger),
			Windows:  infra.NewXdotoolWindowControl(runner, pm, logger),
			Prefs:    infra.NewGsettingsPreference(runner),
			Surfaces: surfaces,
		}, backend, nil

	case config.BackendHeadless:
		logger.Warn("no supported window system, using the headless desktop")
		h := infra.NewDefaultHeadless()
		return engine.Services{Display: h, Windows: h, Prefs: h, Surfaces: h}, backend, nil

	default:
		return engine.Services{}, "", fmt.Errorf("unknown backend %q", backend)
	}
}
