package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// appleScriptString quotes s as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// parseInts parses a comma separated list of integers such as "0, 25, 1920".
func parseInts(s string) ([]int, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("unexpected number %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

// AppleScriptWindowControl implements domain.WindowControl through System Events.
type AppleScriptWindowControl struct {
	cmdRunner CommandRunner
	logger    *zap.Logger
}

// NewAppleScriptWindowControl creates a macOS window controller.
func NewAppleScriptWindowControl(cmdRunner CommandRunner, logger *zap.Logger) *AppleScriptWindowControl {
	return &AppleScriptWindowControl{cmdRunner: cmdRunner, logger: logger}
}

func (w *AppleScriptWindowControl) osascript(ctx context.Context, script string) (string, error) {
	out, err := w.cmdRunner.Output(ctx, "osascript", "-e", script)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ListForegroundApps returns the names of visible, non-background processes.
func (w *AppleScriptWindowControl) ListForegroundApps(ctx context.Context) ([]string, error) {
	out, err := w.osascript(ctx,
		`tell application "System Events" to get name of every application process whose background only is false`)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	names := strings.Split(out, ", ")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	return names, nil
}

// Activate brings the app to the front.
func (w *AppleScriptWindowControl) Activate(ctx context.Context, app string) error {
	_, err := w.osascript(ctx, fmt.Sprintf(`tell application %s to activate`, appleScriptString(app)))
	return err
}

// HasWindow reports whether the app's process owns at least one window.
func (w *AppleScriptWindowControl) HasWindow(ctx context.Context, app string) (bool, error) {
	out, err := w.osascript(ctx, fmt.Sprintf(
		`tell application "System Events" to tell process %s to count windows`, appleScriptString(app)))
	if err != nil {
		return false, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return false, fmt.Errorf("unexpected window count %q", out)
	}
	return n > 0, nil
}

// SetBounds un-minimizes, raises and moves the front window.
func (w *AppleScriptWindowControl) SetBounds(ctx context.Context, app string, rect domain.Rect) error {
	script := fmt.Sprintf(`tell application "System Events"
	tell process %s
		set frontmost to true
		if (count of windows) is 0 then error "no windows"
		set w to window 1
		try
			set value of attribute "AXMinimized" of w to false
		end try
		try
			perform action "AXRaise" of w
		end try
		set position of w to {%d, %d}
		set size of w to {%d, %d}
	end tell
end tell`, appleScriptString(app), rect.X, rect.Y, rect.W, rect.H)

	_, err := w.osascript(ctx, script)
	return err
}

// GetBounds returns the front window bounds, nil if the app has no window.
func (w *AppleScriptWindowControl) GetBounds(ctx context.Context, app string) (*domain.Rect, error) {
	script := fmt.Sprintf(`tell application "System Events"
	tell process %s
		if (count of windows) is 0 then return ""
		set {x, y} to position of window 1
		set {ww, hh} to size of window 1
		return (x as text) & "," & (y as text) & "," & (ww as text) & "," & (hh as text)
	end tell
end tell`, appleScriptString(app))

	out, err := w.osascript(ctx, script)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	v, err := parseInts(out)
	if err != nil || len(v) != 4 {
		return nil, fmt.Errorf("unexpected window bounds %q", out)
	}
	return &domain.Rect{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}

// FinderDisplay implements domain.DisplayService using the Finder desktop bounds.
type FinderDisplay struct {
	cmdRunner    CommandRunner
	menuBarInset int
}

// NewFinderDisplay creates a macOS display service. The work area is the
// desktop bounds minus menuBarInset at the top.
func NewFinderDisplay(cmdRunner CommandRunner, menuBarInset int) *FinderDisplay {
	return &FinderDisplay{cmdRunner: cmdRunner, menuBarInset: menuBarInset}
}

// PrimaryDisplayBounds returns the desktop bounds.
func (d *FinderDisplay) PrimaryDisplayBounds(ctx context.Context) (domain.Rect, error) {
	out, err := d.cmdRunner.Output(ctx, "osascript", "-e",
		`tell application "Finder" to get bounds of window of desktop`)
	if err != nil {
		return domain.Rect{}, err
	}

	// left, top, right, bottom
	v, err := parseInts(string(out))
	if err != nil || len(v) != 4 {
		return domain.Rect{}, fmt.Errorf("unexpected desktop bounds %q", strings.TrimSpace(string(out)))
	}
	return domain.Rect{X: v[0], Y: v[1], W: v[2] - v[0], H: v[3] - v[1]}, nil
}

// PrimaryDisplayWorkArea returns the bounds below the menu bar.
func (d *FinderDisplay) PrimaryDisplayWorkArea(ctx context.Context) (domain.Rect, error) {
	full, err := d.PrimaryDisplayBounds(ctx)
	if err != nil {
		return domain.Rect{}, err
	}
	inset := min(d.menuBarInset, full.H)
	return domain.Rect{X: full.X, Y: full.Y + inset, W: full.W, H: full.H - inset}, nil
}

// DefaultsPreference implements domain.PreferenceService with the defaults tool.
// Values live in the global domain; the per-host domain is kept in sync.
type DefaultsPreference struct {
	cmdRunner CommandRunner
	logger    *zap.Logger
}

// NewDefaultsPreference creates a macOS preference service.
func NewDefaultsPreference(cmdRunner CommandRunner, logger *zap.Logger) *DefaultsPreference {
	return &DefaultsPreference{cmdRunner: cmdRunner, logger: logger}
}

// Read returns the global value, falling back to the per-host domain.
func (p *DefaultsPreference) Read(ctx context.Context, key string) (domain.PrefValue, error) {
	out, err := p.cmdRunner.Output(ctx, "defaults", "read", "-g", key)
	if err != nil {
		var hostErr error
		out, hostErr = p.cmdRunner.Output(ctx, "defaults", "-currentHost", "read", "-g", key)
		if hostErr != nil {
			return domain.PrefUnknown, fmt.Errorf("read %s: %w", key, err)
		}
	}
	return parseBoolPref(string(out))
}

// Write sets the value in both domains and restarts the UI services that
// cache it.
func (p *DefaultsPreference) Write(ctx context.Context, key string, value bool) error {
	v := strconv.FormatBool(value)
	if err := p.cmdRunner.Run(ctx, "defaults", "write", "-g", key, "-bool", v); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := p.cmdRunner.Run(ctx, "defaults", "-currentHost", "write", "-g", key, "-bool", v); err != nil {
		p.logger.Warn("failed to write per-host preference", zap.String("key", key), zap.Error(err))
	}

	for _, svc := range []string{"Dock", "SystemUIServer"} {
		if err := p.cmdRunner.Run(ctx, "killall", svc); err != nil {
			p.logger.Debug("failed to restart ui service", zap.String("service", svc), zap.Error(err))
		}
	}
	return nil
}

func parseBoolPref(s string) (domain.PrefValue, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return domain.PrefTrue, nil
	case "0", "false", "no":
		return domain.PrefFalse, nil
	default:
		return domain.PrefUnknown, fmt.Errorf("unexpected preference value %q", strings.TrimSpace(s))
	}
}

var (
	_ domain.WindowControl     = (*AppleScriptWindowControl)(nil)
	_ domain.DisplayService    = (*FinderDisplay)(nil)
	_ domain.PreferenceService = (*DefaultsPreference)(nil)
)
