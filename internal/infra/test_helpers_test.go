package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
)

// exitStatusError is a command that ran and exited non-zero.
type exitStatusError struct{ code int }

func (e *exitStatusError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e *exitStatusError) ExitCode() int { return e.code }

var (
	errCommandFailed = &exitStatusError{code: 1}
	errCommandKilled = errors.New("signal: killed")
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	mu          sync.Mutex
	runningPIDs map[int]bool
	names       map[int]string
	byName      map[string][]int
	killedPIDs  []int
	signals     map[int][]syscall.Signal
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		names:       make(map[int]string),
		byName:      make(map[string][]int),
		signals:     make(map[int][]syscall.Signal),
	}
}

func (m *mockProcessManager) FindByName(pattern string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byName[pattern], nil
}

func (m *mockProcessManager) Kill(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killedPIDs = append(m.killedPIDs, pid)
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) Signal(pid int, sig syscall.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[pid] = append(m.signals[pid], sig)
	return nil
}

func (m *mockProcessManager) NameOf(pid int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.names[pid]
	if !ok {
		return "", fmt.Errorf("no process %d", pid)
	}
	return name, nil
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runningPIDs[pid] = running
}

// mockCommandRunner records commands and answers them from a script keyed by
// the full command line. Unscripted commands succeed with empty output.
type mockCommandRunner struct {
	mu       sync.Mutex
	calls    []string
	outputs  map[string]string
	failures map[string]error
	partial  []partialRule
}

type partialRule struct {
	substr string
	output string
	fail   bool
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{
		outputs:  make(map[string]string),
		failures: make(map[string]error),
	}
}

func commandLine(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func (m *mockCommandRunner) on(line, output string) {
	m.outputs[line] = output
}

// fail makes line exit with status 1.
func (m *mockCommandRunner) fail(line string) {
	m.failures[line] = errCommandFailed
}

// failWith makes line fail with err.
func (m *mockCommandRunner) failWith(line string, err error) {
	m.failures[line] = err
}

// onContains answers any command line containing substr. Exact entries win.
func (m *mockCommandRunner) onContains(substr, output string) {
	m.partial = append(m.partial, partialRule{substr: substr, output: output})
}

func (m *mockCommandRunner) failContains(substr string) {
	m.partial = append(m.partial, partialRule{substr: substr, fail: true})
}

func (m *mockCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := m.Output(ctx, name, args...)
	return err
}

func (m *mockCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	line := commandLine(name, args...)
	m.calls = append(m.calls, line)
	if err, ok := m.failures[line]; ok {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if out, ok := m.outputs[line]; ok {
		return []byte(out), nil
	}
	for _, r := range m.partial {
		if strings.Contains(line, r.substr) {
			if r.fail {
				return nil, fmt.Errorf("%s: %w", name, errCommandFailed)
			}
			return []byte(r.output), nil
		}
	}
	return nil, nil
}

func (m *mockCommandRunner) called(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}
