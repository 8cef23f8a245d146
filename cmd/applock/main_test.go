package main

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/config"
	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/engine"
	"github.com/eliteGoblin/focusd/app_lock/internal/infra"
)

func TestResolveBackend(t *testing.T) {
	assert.Equal(t, config.BackendHeadless, resolveBackend(config.BackendHeadless))
	assert.Equal(t, config.BackendX11, resolveBackend(config.BackendX11))

	if runtime.GOOS == "darwin" {
		assert.Equal(t, config.BackendDarwin, resolveBackend(config.BackendAuto))
	}

	t.Setenv("DISPLAY", "")
	if runtime.GOOS != "darwin" {
		assert.Equal(t, config.BackendHeadless, resolveBackend(config.BackendAuto))
	}
}

func TestDescribeStartError(t *testing.T) {
	noWindows := fmt.Errorf("%w: Notes has no open window", domain.ErrNoWindows)
	assert.Equal(t, "Notes isn't open yet. Open Notes first, then try again.", describeStartError("Notes", noWindows))
	assert.Contains(t, describeStartError("Notes", domain.ErrMaskMissing), "mask-missing")
	assert.Contains(t, describeStartError("Notes", domain.ErrSessionActive), "Couldn't start")
}

func TestDescribeEnd(t *testing.T) {
	assert.Equal(t, "Time's up — you made it.", describeEnd(domain.EndTimer))
	assert.Equal(t, "Session ended.", describeEnd(domain.EndManual))
	assert.Equal(t, "Session ended (watchdog).", describeEnd(domain.EndWatchdog))
}

func newHeadlessInstance(t *testing.T) (*instance, *infra.Headless) {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Backend = config.BackendHeadless

	engineCfg := cfg.Engine()
	engineCfg.Preference.SettleDelay = 0

	desk := infra.NewDefaultHeadless("Notes")
	pm := infra.NewProcessManager()
	return &instance{
		cfg:      cfg,
		logger:   zap.NewNop(),
		pm:       pm,
		registry: infra.NewFileRegistry(filepath.Join(cfg.DataDir, "instance.json"), pm),
		engine: engine.New(engineCfg, engine.Services{
			Display:  desk,
			Windows:  desk,
			Prefs:    desk,
			Surfaces: desk,
		}, clockwork.NewRealClock(), zap.NewNop()),
		reopen: make(chan struct{}, 1),
	}, desk
}

func TestInstanceRun_TearsDownOnReturn(t *testing.T) {
	in, desk := newHeadlessInstance(t)

	err := in.run(context.Background(), domain.ModeSession, func(ctx context.Context) error {
		require.NoError(t, in.engine.StartSession(ctx, "Notes", domain.Indefinite))
		assert.Len(t, desk.LiveRegions(), domain.CoverageRegionCount)
		return nil
	})
	require.NoError(t, err)

	assert.Empty(t, desk.LiveRegions())
	assert.Equal(t, domain.PrefFalse, desk.Preference("_HIHideMenuBar"))
}

func TestInstanceRun_PanicTearsDownBeforeExit(t *testing.T) {
	in, desk := newHeadlessInstance(t)

	assert.PanicsWithValue(t, "picker crashed", func() {
		_ = in.run(context.Background(), domain.ModeSession, func(ctx context.Context) error {
			require.NoError(t, in.engine.StartSession(ctx, "Notes", domain.Indefinite))
			require.Equal(t, domain.PrefTrue, desk.Preference("_HIHideMenuBar"))
			panic("picker crashed")
		})
	})

	select {
	case <-in.engine.Done():
	default:
		t.Fatal("engine still running after the panic left run")
	}
	assert.Empty(t, desk.LiveRegions())
	assert.Equal(t, domain.PrefFalse, desk.Preference("_HIHideMenuBar"))

	inst, err := in.registry.Get()
	require.NoError(t, err)
	assert.Nil(t, inst, "registry cleared")
}
