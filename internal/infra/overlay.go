package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// Overlay helper stdin commands, one per line.
const (
	helperShow  = "show"
	helperRaise = "raise"
	helperQuit  = "quit"
)

// HelperProcess is a running overlay helper.
type HelperProcess interface {
	PID() int
	Send(line string) error
	Exited() bool
	Close() error
}

// HelperLauncher starts overlay helper processes.
type HelperLauncher interface {
	Launch(path string, args ...string) (HelperProcess, error)
}

// ExecLauncher launches helpers with os/exec and keeps their stdin open.
type ExecLauncher struct{}

// Launch starts the helper. The process is not tied to any context: it lives
// until quit, stdin EOF, or the death of this process.
func (ExecLauncher) Launch(path string, args ...string) (HelperProcess, error) {
	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = helperSysProcAttr()
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start overlay helper %s: %w", path, err)
	}

	p := &execHelper{cmd: cmd, stdin: stdin}
	go func() {
		_ = cmd.Wait()
		p.exited.Store(true)
	}()
	return p, nil
}

type execHelper struct {
	cmd    *exec.Cmd
	mu     sync.Mutex
	stdin  io.WriteCloser
	exited atomic.Bool
}

func (p *execHelper) PID() int { return p.cmd.Process.Pid }

func (p *execHelper) Send(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		return errors.New("overlay helper stdin closed")
	}
	_, err := io.WriteString(p.stdin, line+"\n")
	return err
}

func (p *execHelper) Exited() bool { return p.exited.Load() }

func (p *execHelper) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		return nil
	}
	err := p.stdin.Close()
	p.stdin = nil
	return err
}

// HelperSurfaceFactory implements domain.SurfaceFactory by running one
// overlay helper process per coverage region.
//
// The helper is an external program (config overlay.helper_path). It is
// started as
//
//	<helper> --role R --x X --y Y --width W --height H --color C [--label L]
//
// and must draw an opaque, non-focusable, click-through window at those
// bounds, above full-screen windows and on every virtual desktop. It reads
// one command per line on stdin: "show" re-applies the bounds and makes the
// window visible, "raise" re-asserts topmost, "quit" exits. It must also exit
// when stdin reaches EOF, which is what happens when applock dies.
type HelperSurfaceFactory struct {
	helperPath     string
	launcher       HelperLauncher
	processManager domain.ProcessManager
	logger         *zap.Logger
}

// NewHelperSurfaceFactory creates a helper-backed surface factory.
func NewHelperSurfaceFactory(
	helperPath string,
	launcher HelperLauncher,
	pm domain.ProcessManager,
	logger *zap.Logger,
) *HelperSurfaceFactory {
	return &HelperSurfaceFactory{
		helperPath:     helperPath,
		launcher:       launcher,
		processManager: pm,
		logger:         logger,
	}
}

// Create launches the helper for spec.
func (f *HelperSurfaceFactory) Create(ctx context.Context, spec domain.RegionSpec) (domain.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	args := []string{
		"--role", string(spec.Role),
		"--x", strconv.Itoa(spec.Bounds.X),
		"--y", strconv.Itoa(spec.Bounds.Y),
		"--width", strconv.Itoa(spec.Bounds.W),
		"--height", strconv.Itoa(spec.Bounds.H),
		"--color", spec.Color,
	}
	if spec.Label != "" {
		args = append(args, "--label", spec.Label)
	}

	proc, err := f.launcher.Launch(f.helperPath, args...)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("overlay helper started",
		zap.String("role", string(spec.Role)),
		zap.Int("pid", proc.PID()))

	return &helperSurface{
		spec:           spec,
		proc:           proc,
		processManager: f.processManager,
		logger:         f.logger,
	}, nil
}

type helperSurface struct {
	spec           domain.RegionSpec
	proc           HelperProcess
	processManager domain.ProcessManager
	logger         *zap.Logger

	mu        sync.Mutex
	destroyed bool
}

// Show asks the helper to re-apply its bounds and become visible.
func (s *helperSurface) Show(ctx context.Context) error {
	return s.send(helperShow)
}

// AssertTopmost re-applies always-on-top. No-op after Destroy.
func (s *helperSurface) AssertTopmost(ctx context.Context) error {
	return s.send(helperRaise)
}

func (s *helperSurface) send(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	if err := s.proc.Send(line); err != nil {
		return fmt.Errorf("overlay helper %s (pid %d): %w", s.spec.Role, s.proc.PID(), err)
	}
	return nil
}

// Alive reports whether the helper process is still running.
func (s *helperSurface) Alive() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed || s.proc.Exited() {
		return false, nil
	}
	return s.processManager.IsRunning(s.proc.PID()), nil
}

// Destroy asks the helper to quit and kills it if it is still running.
func (s *helperSurface) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	s.destroyed = true

	if err := s.proc.Send(helperQuit); err != nil {
		s.logger.Debug("overlay helper did not take quit", zap.Error(err))
	}
	if err := s.proc.Close(); err != nil {
		s.logger.Debug("failed to close overlay helper stdin", zap.Error(err))
	}

	pid := s.proc.PID()
	if !s.proc.Exited() && s.processManager.IsRunning(pid) {
		if err := s.processManager.Kill(pid); err != nil && s.processManager.IsRunning(pid) {
			return fmt.Errorf("kill overlay helper %s (pid %d): %w", s.spec.Role, pid, err)
		}
	}
	return nil
}

var (
	_ domain.SurfaceFactory = (*HelperSurfaceFactory)(nil)
	_ domain.Surface        = (*helperSurface)(nil)
	_ HelperLauncher        = ExecLauncher{}
)
