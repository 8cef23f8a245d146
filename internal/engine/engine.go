// Package engine implements the focus-lock session state machine.
//
// All session state is owned by the goroutine running Engine.Run. Public
// methods submit commands to that goroutine and wait for the reply, so no
// state is shared across goroutines except through channels.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/geometry"
	"github.com/eliteGoblin/focusd/app_lock/internal/metrics"
	"github.com/eliteGoblin/focusd/app_lock/internal/usecase"
)

// Services bundles the host integrations the engine drives.
type Services struct {
	Display  domain.DisplayService
	Windows  domain.WindowControl
	Prefs    domain.PreferenceService
	Surfaces domain.SurfaceFactory
}

// Status is a snapshot of the engine state.
type Status struct {
	State       domain.EngineState
	Session     *domain.Session
	PinFailures int
	Regions     int
}

type command struct {
	run   func(loopCtx context.Context) error
	reply chan error
}

type pinResult struct {
	generation uint64
	outcome    usecase.EnforceOutcome
	panicked   any
}

// Engine runs focus-lock sessions.
type Engine struct {
	config   Config
	display  domain.DisplayService
	windows  domain.WindowControl
	pins     *usecase.PinSupervisor
	coverage *usecase.CoverageManager
	prefs    *usecase.PreferenceGuard
	watchdog *usecase.Watchdog
	clock    clockwork.Clock
	logger   *zap.Logger

	cmds       chan command
	pinResults chan pinResult
	ended      chan domain.EndReason
	done       chan struct{}

	startMu     sync.Mutex
	startCancel context.CancelFunc

	// Owned by the loop goroutine.
	state          domain.EngineState
	session        *domain.Session
	lastEnd        *domain.EndReason
	generation     uint64
	pinInFlight    bool
	pinTicker      clockwork.Ticker
	watchdogTicker clockwork.Ticker
	sessionTimer   clockwork.Timer
	quitting       bool
}

// New creates an engine. Call Run to start its loop.
func New(config Config, svc Services, clock clockwork.Clock, logger *zap.Logger) *Engine {
	coverage := usecase.NewCoverageManager(svc.Surfaces, config.Coverage, clock, logger.Named("coverage"))
	return &Engine{
		config:     config,
		display:    svc.Display,
		windows:    svc.Windows,
		pins:       usecase.NewPinSupervisor(svc.Windows, config.Pin, logger.Named("pin")),
		coverage:   coverage,
		prefs:      usecase.NewPreferenceGuard(svc.Prefs, config.Preference, clock, logger.Named("preference")),
		watchdog:   usecase.NewWatchdog(coverage, logger.Named("watchdog")),
		clock:      clock,
		logger:     logger,
		cmds:       make(chan command),
		pinResults: make(chan pinResult, 1),
		ended:      make(chan domain.EndReason, 4),
		done:       make(chan struct{}),
		state:      domain.StateIdle,
	}
}

// Run processes commands and scheduled work until ctx is canceled or
// EmergencyQuit is called. Any live session is torn down before it returns.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine loop panicked, tearing down",
				zap.Any("panic", r),
				zap.Stack("stack"))
			e.emergencyTeardown()
			panic(r)
		}
	}()

	e.logger.Info("engine started")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping", zap.Error(ctx.Err()))
			e.emergencyTeardown()
			return ctx.Err()

		case cmd := <-e.cmds:
			cmd.reply <- cmd.run(ctx)
			if e.quitting {
				e.logger.Info("engine quit")
				return nil
			}

		case <-tickerChan(e.pinTicker):
			e.onPinTick(ctx)

		case res := <-e.pinResults:
			e.onPinResult(res)

		case <-tickerChan(e.watchdogTicker):
			e.onWatchdogTick(ctx)

		case <-timerChan(e.sessionTimer):
			e.logger.Info("session time is up")
			e.endSession(domain.EndTimer)
		}
	}
}

// Done is closed once the loop has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Ended delivers the reason each time a session ends.
func (e *Engine) Ended() <-chan domain.EndReason {
	return e.ended
}

// ListApps returns the names of running foreground apps, de-duplicated in
// order with blank names dropped.
func (e *Engine) ListApps(ctx context.Context) ([]string, error) {
	apps, err := e.windows.ListForegroundApps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}

	seen := make(map[string]bool, len(apps))
	out := make([]string, 0, len(apps))
	for _, a := range apps {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out, nil
}

// StartSession locks app into the opening for the given duration.
// Returns domain.ErrNoWindows, ErrMaskFailed or ErrMaskMissing (wrapped) on the
// tagged failures and domain.ErrSessionActive if a session is already live.
func (e *Engine) StartSession(ctx context.Context, app string, duration domain.SessionDuration) error {
	return e.do(ctx, func(loopCtx context.Context) error {
		return e.start(ctx, loopCtx, app, duration)
	})
}

// EndSession ends the live session, if any. Idempotent.
func (e *Engine) EndSession(ctx context.Context, reason domain.EndReason) error {
	return e.do(ctx, func(context.Context) error {
		e.endSession(reason)
		return nil
	})
}

// LastEndReason returns why the previous session ended and clears it.
func (e *Engine) LastEndReason(ctx context.Context) (domain.EndReason, bool) {
	var reason *domain.EndReason
	err := e.do(ctx, func(context.Context) error {
		reason = e.lastEnd
		e.lastEnd = nil
		return nil
	})
	if err != nil || reason == nil {
		return "", false
	}
	return *reason, true
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var st Status
	err := e.do(ctx, func(context.Context) error {
		st = Status{
			State:       e.state,
			PinFailures: e.pins.Failures(),
			Regions:     e.coverage.Len(),
		}
		if e.session != nil {
			s := *e.session
			st.Session = &s
		}
		return nil
	})
	return st, err
}

// EmergencyQuit cancels an in-flight start, tears everything down and stops
// the loop. Safe to call from any state and more than once.
func (e *Engine) EmergencyQuit(ctx context.Context) error {
	e.cancelStart()

	err := e.do(ctx, func(context.Context) error {
		e.logger.Warn("emergency quit requested")
		e.emergencyTeardown()
		e.quitting = true
		return nil
	})
	if errors.Is(err, domain.ErrEngineStopped) {
		return nil
	}
	return err
}

func (e *Engine) do(ctx context.Context, run func(loopCtx context.Context) error) error {
	cmd := command{run: run, reply: make(chan error, 1)}

	select {
	case e.cmds <- cmd:
	case <-e.done:
		return domain.ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-e.done:
		select {
		case err := <-cmd.reply:
			return err
		default:
			return domain.ErrEngineStopped
		}
	}
}

func (e *Engine) setStartCancel(cancel context.CancelFunc) {
	e.startMu.Lock()
	e.startCancel = cancel
	e.startMu.Unlock()
}

func (e *Engine) cancelStart() {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if e.startCancel != nil {
		e.startCancel()
	}
}

func (e *Engine) start(ctx, loopCtx context.Context, app string, duration domain.SessionDuration) error {
	if e.state != domain.StateIdle {
		return domain.ErrSessionActive
	}

	startCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(loopCtx, cancel)
	defer stop()
	e.setStartCancel(cancel)
	defer e.setStartCancel(nil)

	began := e.clock.Now()
	e.state = domain.StateStarting
	e.logger.Info("starting session",
		zap.String("app", app),
		zap.Stringer("duration", duration))

	if err := e.runStart(startCtx, app, duration); err != nil {
		e.rollback()
		result := domain.ErrorCode(err)
		if result == "" {
			result = "error"
		}
		metrics.SessionsStarted.WithLabelValues(result).Inc()
		e.logger.Warn("session start failed",
			zap.String("app", app),
			zap.String("code", result),
			zap.Error(err))
		return err
	}

	metrics.SessionsStarted.WithLabelValues("ok").Inc()
	metrics.StartDuration.Observe(e.clock.Since(began).Seconds())
	metrics.SessionActive.Set(1)
	e.logger.Info("session running",
		zap.String("app", app),
		zap.Any("opening", e.session.Opening),
		zap.Stringer("duration", duration))
	return nil
}

func (e *Engine) runStart(ctx context.Context, app string, duration domain.SessionDuration) error {
	if err := e.pins.Activate(ctx, app); err != nil {
		return err
	}
	ok, err := e.pins.HasWindow(ctx, app)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s has no open window", domain.ErrNoWindows, app)
	}

	full, err := e.display.PrimaryDisplayBounds(ctx)
	if err != nil {
		return fmt.Errorf("read display bounds: %w", err)
	}
	work, err := e.display.PrimaryDisplayWorkArea(ctx)
	if err != nil {
		return fmt.Errorf("read display work area: %w", err)
	}

	opening := geometry.ComputeOpening(work, full)
	if err := e.pins.Pin(ctx, app, opening); err != nil {
		return err
	}
	opening = e.pins.Refine(ctx, app, opening, full)

	if err := e.prefs.Engage(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Warn("failed to engage preference, continuing", zap.Error(err))
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.coverage.Create(ctx, full, opening); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMaskFailed, err)
	}

	// Coverage creation can steal focus from the target.
	if err := e.pins.Activate(ctx, app); err != nil {
		e.logger.Warn("failed to re-activate app after coverage", zap.Error(err))
	}
	if err := e.pins.Pin(ctx, app, opening); err != nil {
		e.logger.Warn("failed to re-pin window after coverage", zap.Error(err))
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := e.coverage.Count(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMaskMissing, err)
	}
	if n != domain.CoverageRegionCount {
		return fmt.Errorf("%w: %d of %d regions live", domain.ErrMaskMissing, n, domain.CoverageRegionCount)
	}

	e.session = &domain.Session{
		App:       app,
		Duration:  duration,
		StartedAt: e.clock.Now(),
		Opening:   opening,
	}
	e.pins.ResetFailures()
	e.startSchedules(duration)
	e.state = domain.StateRunning
	return nil
}

func (e *Engine) rollback() {
	e.stopSchedules()
	e.generation++
	e.session = nil
	e.teardown()
	e.state = domain.StateIdle
}

func (e *Engine) startSchedules(duration domain.SessionDuration) {
	e.pinTicker = e.clock.NewTicker(e.config.PinInterval)
	e.watchdogTicker = e.clock.NewTicker(e.config.WatchdogInterval)
	if duration.IsTimed() {
		e.sessionTimer = e.clock.NewTimer(duration.Timeout())
	}
}

func (e *Engine) stopSchedules() {
	if e.pinTicker != nil {
		e.pinTicker.Stop()
		e.pinTicker = nil
	}
	if e.watchdogTicker != nil {
		e.watchdogTicker.Stop()
		e.watchdogTicker = nil
	}
	if e.sessionTimer != nil {
		e.sessionTimer.Stop()
		e.sessionTimer = nil
	}
}

func (e *Engine) endSession(reason domain.EndReason) {
	if e.state == domain.StateIdle && e.session == nil {
		return
	}

	e.state = domain.StateEnding
	e.stopSchedules()
	e.generation++

	var app string
	if e.session != nil {
		app = e.session.App
	}
	e.session = nil
	e.teardown()

	e.lastEnd = &reason
	e.state = domain.StateIdle

	metrics.SessionActive.Set(0)
	metrics.SessionsEnded.WithLabelValues(string(reason)).Inc()
	e.logger.Info("session ended",
		zap.String("app", app),
		zap.String("reason", string(reason)))

	select {
	case e.ended <- reason:
	default:
		e.logger.Debug("end notification dropped, no listener")
	}
}

// teardown releases coverage then restores the preference. Failures are
// logged and never stop the remaining steps.
func (e *Engine) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.TeardownTimeout)
	defer cancel()

	e.safeStep("destroy-coverage", func() error {
		return e.coverage.Destroy()
	})
	e.safeStep("restore-preference", func() error {
		_, err := e.prefs.Restore(ctx)
		return err
	})
}

func (e *Engine) emergencyTeardown() {
	e.safeStep("stop-schedules", func() error {
		e.stopSchedules()
		return nil
	})
	e.safeStep("clear-state", func() error {
		e.generation++
		e.session = nil
		e.state = domain.StateIdle
		metrics.SessionActive.Set(0)
		return nil
	})
	e.teardown()
}

func (e *Engine) safeStep(step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.TeardownErrors.WithLabelValues(step).Inc()
			e.logger.Error("teardown step panicked",
				zap.String("step", step),
				zap.Any("panic", r))
		}
	}()

	if err := fn(); err != nil {
		metrics.TeardownErrors.WithLabelValues(step).Inc()
		e.logger.Warn("teardown step failed",
			zap.String("step", step),
			zap.Error(err))
	}
}

func (e *Engine) onPinTick(ctx context.Context) {
	if e.state != domain.StateRunning || e.session == nil {
		return
	}
	if e.pinInFlight {
		e.logger.Debug("previous pin tick still running, skipping")
		return
	}

	e.pinInFlight = true
	go e.runPinWorker(ctx, e.generation, e.session.App, e.session.Opening)
}

func (e *Engine) runPinWorker(ctx context.Context, generation uint64, app string, opening domain.Rect) {
	res := pinResult{generation: generation}
	defer func() {
		if r := recover(); r != nil {
			res.panicked = r
		}
		select {
		case e.pinResults <- res:
		case <-e.done:
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()
	res.outcome = e.pins.Enforce(callCtx, app, opening)
}

func (e *Engine) onPinResult(res pinResult) {
	e.pinInFlight = false

	if res.panicked != nil {
		panic(fmt.Sprintf("pin worker panicked: %v", res.panicked))
	}
	if res.generation != e.generation || e.state != domain.StateRunning {
		metrics.PinTicks.WithLabelValues("stale").Inc()
		return
	}

	out := res.outcome
	switch {
	case out.WindowGone:
		metrics.PinTicks.WithLabelValues("window_gone").Inc()
		e.logger.Info("target app has no window left", zap.String("app", e.session.App))
		e.endSession(domain.EndAppClosed)

	case out.Err != nil:
		metrics.PinTicks.WithLabelValues("failed").Inc()
		n, exhausted := e.pins.RecordFailure()
		e.logger.Warn("pin tick failed",
			zap.Int("consecutive", n),
			zap.Error(out.Err))
		if exhausted {
			e.endSession(domain.EndPinFailed)
		}

	default:
		metrics.PinTicks.WithLabelValues("ok").Inc()
		e.pins.RecordSuccess()
	}
}

func (e *Engine) onWatchdogTick(ctx context.Context) {
	if e.state != domain.StateRunning {
		return
	}

	v := e.watchdog.Check(ctx)
	switch {
	case v.Err != nil:
		e.endSession(domain.EndWatchdogError)
	case !v.OK:
		e.endSession(domain.EndWatchdog)
	}
}

func tickerChan(t clockwork.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.Chan()
}

func timerChan(t clockwork.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.Chan()
}
