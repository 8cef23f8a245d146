package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/config"
	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/engine"
	"github.com/eliteGoblin/focusd/app_lock/internal/infra"
	"github.com/eliteGoblin/focusd/app_lock/internal/metrics"
	"github.com/eliteGoblin/focusd/app_lock/internal/picker"
)

const quitTimeout = 15 * time.Second

// instance is the running applock process: one engine, registered in the
// instance registry, controlled by signals from the hotkey commands.
type instance struct {
	cfg      *config.Config
	logger   *zap.Logger
	pm       domain.ProcessManager
	registry *infra.FileRegistry
	engine   *engine.Engine
	record   domain.Instance

	cancel context.CancelFunc
	reopen chan struct{}
}

// newInstance builds the engine for the configured backend. It does not
// register or start anything.
func newInstance(cfg *config.Config, logger *zap.Logger) (*instance, error) {
	pm := infra.NewProcessManager()
	svc, backend, err := newServices(cfg, pm, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("using backend", zap.String("backend", backend))

	return &instance{
		cfg:      cfg,
		logger:   logger,
		pm:       pm,
		registry: infra.NewFileRegistry(cfg.RegistryPath(), pm),
		engine:   engine.New(cfg.Engine(), svc, clockwork.NewRealClock(), logger),
		reopen:   make(chan struct{}, 1),
	}, nil
}

// run registers the instance, starts the engine loop, metrics and signal
// handling, then calls body. The engine is torn down before run returns.
func (in *instance) run(parent context.Context, mode domain.InstanceMode, body func(ctx context.Context) error) error {
	in.record = domain.Instance{
		PID:       in.pm.GetCurrentPID(),
		Mode:      mode,
		StartedAt: time.Now(),
		Version:   Version,
	}
	if err := in.registry.Register(in.record); err != nil {
		if errors.Is(err, domain.ErrAlreadyRunning) {
			return fmt.Errorf("%w; use \"applock end\" or \"applock quit\" first", err)
		}
		return fmt.Errorf("failed to register instance: %w", err)
	}
	defer func() {
		if err := in.registry.Clear(); err != nil {
			in.logger.Warn("failed to clear instance registry", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	in.cancel = cancel

	go func() {
		if err := in.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			in.logger.Error("engine stopped", zap.Error(err))
		}
	}()

	if in.cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, in.cfg.Metrics.Addr, in.logger); err != nil {
				in.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	sigChan := make(chan os.Signal, 4)
	signal.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go in.handleSignals(ctx, sigChan)

	defer func() {
		r := recover()
		if r != nil {
			in.logger.Error("applock panicked, tearing down", zap.Any("panic", r), zap.Stack("stack"))
		}
		in.shutdown(cancel)
		if r != nil {
			panic(r)
		}
	}()

	return body(ctx)
}

// shutdown tears down any live session and waits for the engine loop to exit.
func (in *instance) shutdown(cancel context.CancelFunc) {
	quitCtx, quitCancel := context.WithTimeout(context.Background(), quitTimeout)
	defer quitCancel()
	if err := in.engine.EmergencyQuit(quitCtx); err != nil {
		in.logger.Warn("engine did not quit cleanly", zap.Error(err))
	}
	cancel()
	<-in.engine.Done()
}

func (in *instance) handleSignals(ctx context.Context, sigChan <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			in.logger.Info("received signal", zap.String("signal", sig.String()))
			switch sig {
			case syscall.SIGUSR1:
				if err := in.engine.EndSession(ctx, domain.EndManual); err != nil {
					in.logger.Warn("failed to end session", zap.Error(err))
				}
			case syscall.SIGUSR2:
				in.requestPicker(ctx)
			default:
				quitCtx, cancel := context.WithTimeout(context.Background(), quitTimeout)
				if err := in.engine.EmergencyQuit(quitCtx); err != nil {
					in.logger.Warn("emergency quit failed", zap.Error(err))
				}
				cancel()
				in.cancel()
				return
			}
		}
	}
}

// requestPicker asks the pick loop to reopen the picker. Ignored while a
// session is running.
func (in *instance) requestPicker(ctx context.Context) {
	st, err := in.engine.Status(ctx)
	if err != nil {
		return
	}
	if st.State != domain.StateIdle {
		in.logger.Info("picker not reopened, session in progress", zap.String("state", string(st.State)))
		return
	}
	select {
	case in.reopen <- struct{}{}:
	default:
	}
}

func (in *instance) updateRecord(mode domain.InstanceMode, app string, d *domain.SessionDuration) {
	in.record.Mode = mode
	in.record.App = app
	in.record.Duration = ""
	if d != nil {
		in.record.Duration = d.String()
		in.record.StartedAt = time.Now()
	}
	if err := in.registry.Update(in.record); err != nil {
		in.logger.Warn("failed to update instance registry", zap.Error(err))
	}
}

// awaitEnd blocks until the session ends or the engine stops.
func (in *instance) awaitEnd(ctx context.Context) (domain.EndReason, bool) {
	select {
	case reason := <-in.engine.Ended():
		return reason, true
	case <-in.engine.Done():
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

func describeStartError(app string, err error) string {
	switch domain.ErrorCode(err) {
	case domain.ErrNoWindows.Error():
		return fmt.Sprintf("%s isn't open yet. Open %s first, then try again.", app, app)
	case domain.ErrMaskFailed.Error(), domain.ErrMaskMissing.Error():
		return fmt.Sprintf("Couldn't cover the screen (%s). Is the overlay helper installed?", domain.ErrorCode(err))
	default:
		return fmt.Sprintf("Couldn't start. Make sure %s is open, then try again.", app)
	}
}

func describeEnd(reason domain.EndReason) string {
	switch reason {
	case domain.EndTimer:
		return "Time's up — you made it."
	case domain.EndManual:
		return "Session ended."
	case domain.EndAppClosed:
		return "Session ended: the app has no open window."
	default:
		return fmt.Sprintf("Session ended (%s).", reason)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, createLogger(cfg), nil
}

func runStartCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	in, err := newInstance(cfg, logger)
	if err != nil {
		return err
	}

	duration := domain.ParseDuration(startMinutes)
	return in.run(cmd.Context(), domain.ModeSession, func(ctx context.Context) error {
		if err := in.engine.StartSession(ctx, startApp, duration); err != nil {
			fmt.Println(describeStartError(startApp, err))
			return err
		}
		in.updateRecord(domain.ModeSession, startApp, &duration)
		fmt.Printf("Locked onto %s (%s). End with: applock end\n", startApp, duration)

		if reason, ok := in.awaitEnd(ctx); ok {
			fmt.Println(describeEnd(reason))
		}
		return nil
	})
}

func runPick(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(cfg.RegistryPath(), pm)
	if alive, _ := registry.IsAlive(); alive {
		return signalInstance(registry, pm, syscall.SIGUSR2, "asked the running instance to reopen its picker")
	}

	in, err := newInstance(cfg, logger)
	if err != nil {
		return err
	}
	return in.run(cmd.Context(), domain.ModePicker, in.pickLoop)
}

// pickLoop shows the picker, waits out each session and shows the picker
// again. Closing the picker leaves the instance idle until it is reopened
// or quit.
func (in *instance) pickLoop(ctx context.Context) error {
	for {
		choice, ok, err := picker.Run(ctx, in.engine, tea.WithAltScreen(), tea.WithoutSignalHandler())
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if ok {
			in.updateRecord(domain.ModeSession, choice.App, &choice.Duration)
			if _, running := in.awaitEnd(ctx); !running {
				return nil
			}
			in.updateRecord(domain.ModePicker, "", nil)
			continue
		}

		fmt.Println("Picker closed. Reopen with: applock pick    Quit with: applock quit")
		select {
		case <-in.reopen:
		case <-in.engine.Done():
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func runApps(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	in, err := newInstance(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() { _ = in.engine.Run(ctx) }()
	defer func() {
		_ = in.engine.EmergencyQuit(context.Background())
		<-in.engine.Done()
	}()

	apps, err := in.engine.ListApps(ctx)
	if err != nil {
		return fmt.Errorf("failed to list apps: %w", err)
	}
	for _, app := range apps {
		fmt.Println(app)
	}
	return nil
}
