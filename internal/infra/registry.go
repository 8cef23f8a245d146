package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// FileRegistry implements domain.InstanceRegistry using a JSON file in the
// data directory, so hotkey commands can find the running instance.
type FileRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileRegistry creates a file-based instance registry at path.
func NewFileRegistry(path string, pm domain.ProcessManager) *FileRegistry {
	return &FileRegistry{
		path:           path,
		processManager: pm,
	}
}

// Path returns the registry file path.
func (r *FileRegistry) Path() string {
	return r.path
}

// Register records inst unless another live instance is recorded.
// A record left behind by a dead process is replaced.
func (r *FileRegistry) Register(inst domain.Instance) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create registry dir: %w", err)
	}

	// Use file lock so two instances starting together cannot both win
	lockPath := r.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	existing, err := r.Get()
	if err != nil {
		return err
	}
	if existing != nil && existing.PID != inst.PID && r.processManager.IsRunning(existing.PID) {
		return fmt.Errorf("%w (pid %d)", domain.ErrAlreadyRunning, existing.PID)
	}

	return r.atomicWrite(&inst)
}

// Update rewrites the record, e.g. when the instance switches between picker
// and session mode.
func (r *FileRegistry) Update(inst domain.Instance) error {
	return r.atomicWrite(&inst)
}

// Get returns the recorded instance, or nil if none.
func (r *FileRegistry) Get() (*domain.Instance, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var inst domain.Instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("corrupt registry %s: %w", r.path, err)
	}
	return &inst, nil
}

// IsAlive checks if the recorded instance is running via PID.
func (r *FileRegistry) IsAlive() (bool, error) {
	inst, err := r.Get()
	if err != nil {
		return false, err
	}
	if inst == nil {
		return false, nil
	}
	return r.processManager.IsRunning(inst.PID), nil
}

// Clear removes the registry file. Missing files are not an error.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// atomicWrite writes the record to file atomically (write + rename).
func (r *FileRegistry) atomicWrite(inst *domain.Instance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return err
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.InstanceRegistry.
var _ domain.InstanceRegistry = (*FileRegistry)(nil)
