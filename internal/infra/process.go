package infra

import (
	"os"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// FindByName returns PIDs of processes whose name equals pattern
// case-insensitively. Substring matches are returned only when no process
// matches exactly.
func (pm *ProcessManagerImpl) FindByName(pattern string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	named := make([]namedProcess, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		named = append(named, namedProcess{pid: int(p.Pid), name: name})
	}
	return matchProcessName(named, pattern), nil
}

type namedProcess struct {
	pid  int
	name string
}

func matchProcessName(procs []namedProcess, pattern string) []int {
	var exact, partial []int
	patternLower := strings.ToLower(pattern)

	for _, p := range procs {
		switch {
		case strings.EqualFold(p.name, pattern):
			exact = append(exact, p.pid)
		case strings.Contains(strings.ToLower(p.name), patternLower):
			partial = append(partial, p.pid)
		}
	}

	if len(exact) > 0 {
		return exact
	}
	return partial
}

// Kill terminates a process by PID using SIGKILL.
func (pm *ProcessManagerImpl) Kill(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Kill()
}

// IsRunning checks if a PID exists and is not a zombie.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	running, err := p.IsRunning()
	if err != nil || !running {
		return false
	}
	if status, err := p.Status(); err == nil {
		for _, s := range status {
			if s == process.Zombie {
				return false
			}
		}
	}
	return true
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

// Signal delivers sig to a process.
func (pm *ProcessManagerImpl) Signal(pid int, sig syscall.Signal) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.SendSignal(sig)
}

// NameOf returns the executable name of a process.
func (pm *ProcessManagerImpl) NameOf(pid int) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}
	return p.Name()
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
