package domain

import (
	"context"
	"syscall"
	"time"
)

// DisplayService reports the primary display geometry.
type DisplayService interface {
	// PrimaryDisplayBounds returns the full physical bounds.
	PrimaryDisplayBounds(ctx context.Context) (Rect, error)

	// PrimaryDisplayWorkArea returns the bounds minus OS chrome (menu bar, dock).
	PrimaryDisplayWorkArea(ctx context.Context) (Rect, error)
}

// WindowControl queries and mutates application windows on the host.
// Calls may block on the host and fail with a descriptive error.
type WindowControl interface {
	// ListForegroundApps returns the names of running, non-background apps.
	ListForegroundApps(ctx context.Context) ([]string, error)

	// Activate brings the app to the front.
	Activate(ctx context.Context, app string) error

	// HasWindow reports whether the app has at least one window.
	HasWindow(ctx context.Context, app string) (bool, error)

	// SetBounds raises, un-minimizes and moves/resizes the app's front window.
	SetBounds(ctx context.Context, app string, rect Rect) error

	// GetBounds returns the front window's bounds, or nil if it has none.
	GetBounds(ctx context.Context, app string) (*Rect, error)
}

// PreferenceService reads and writes one system-wide boolean preference.
type PreferenceService interface {
	// Read returns the current value, PrefUnknown if it cannot be determined.
	Read(ctx context.Context, key string) (PrefValue, error)

	// Write applies the value and makes the host pick it up.
	Write(ctx context.Context, key string, value bool) error
}

// Surface is one materialized coverage region on the display server.
type Surface interface {
	// Show makes the region visible once its content is ready.
	Show(ctx context.Context) error

	// AssertTopmost re-applies always-on-top and raises the region.
	// Idempotent; some compositors silently drop the flag after show/load.
	AssertTopmost(ctx context.Context) error

	// Alive reports whether the region still exists on screen.
	Alive() (bool, error)

	// Destroy releases the region. Safe to call more than once.
	Destroy() error
}

// SurfaceFactory creates coverage regions.
type SurfaceFactory interface {
	Create(ctx context.Context, spec RegionSpec) (Surface, error)
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int

	// Signal delivers sig to a process.
	Signal(pid int, sig syscall.Signal) error

	// NameOf returns the executable name of a process.
	NameOf(pid int) (string, error)
}

// InstanceMode describes what the running instance is doing.
type InstanceMode string

const (
	ModeSession InstanceMode = "session"
	ModePicker  InstanceMode = "picker"
)

// Instance is the registry record of the running applock process.
type Instance struct {
	PID       int          `json:"pid"`
	Mode      InstanceMode `json:"mode"`
	App       string       `json:"app,omitempty"`
	Duration  string       `json:"duration,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	Version   string       `json:"version,omitempty"`
}

// InstanceRegistry lets hotkey commands find the running instance.
// Implementation: JSON file in the data directory.
type InstanceRegistry interface {
	// Register records the current process. Returns ErrAlreadyRunning if
	// another live instance is recorded.
	Register(inst Instance) error

	// Update rewrites the record for the current process.
	Update(inst Instance) error

	// Get returns the recorded instance, or nil if none.
	Get() (*Instance, error)

	// IsAlive reports whether the recorded instance is still running.
	IsAlive() (bool, error)

	// Clear removes the record.
	Clear() error
}
