package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// XdotoolWindowControl implements domain.WindowControl on X11.
// Apps are resolved to PIDs by process name, then to windows by PID.
type XdotoolWindowControl struct {
	cmdRunner      CommandRunner
	processManager domain.ProcessManager
	logger         *zap.Logger
}

// NewXdotoolWindowControl creates an X11 window controller.
func NewXdotoolWindowControl(cmdRunner CommandRunner, pm domain.ProcessManager, logger *zap.Logger) *XdotoolWindowControl {
	return &XdotoolWindowControl{cmdRunner: cmdRunner, processManager: pm, logger: logger}
}

// xdotoolNoMatch is the exit status xdotool search uses when nothing matches.
const xdotoolNoMatch = 1

// searchWindows runs an xdotool search. A search that matches nothing is
// reported as no windows; any other failure is returned.
func (x *XdotoolWindowControl) searchWindows(ctx context.Context, args ...string) ([]string, error) {
	out, err := x.cmdRunner.Output(ctx, "xdotool", append([]string{"search"}, args...)...)
	if err != nil {
		if ExitCode(err) == xdotoolNoMatch {
			return nil, nil
		}
		return nil, fmt.Errorf("xdotool search: %w", err)
	}
	return strings.Fields(string(out)), nil
}

func (x *XdotoolWindowControl) windowsOf(ctx context.Context, app string) ([]string, error) {
	pids, err := x.processManager.FindByName(app)
	if err != nil {
		return nil, fmt.Errorf("find processes of %q: %w", app, err)
	}

	var ids []string
	for _, pid := range pids {
		found, err := x.searchWindows(ctx, "--onlyvisible", "--pid", strconv.Itoa(pid))
		if err != nil {
			return nil, err
		}
		ids = append(ids, found...)
	}
	return ids, nil
}

// ListForegroundApps returns the process names owning visible windows.
func (x *XdotoolWindowControl) ListForegroundApps(ctx context.Context) ([]string, error) {
	ids, err := x.searchWindows(ctx, "--onlyvisible", "--name", ".")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, id := range ids {
		out, err := x.cmdRunner.Output(ctx, "xdotool", "getwindowpid", id)
		if err != nil {
			continue // Window without _NET_WM_PID
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
		if err != nil {
			continue
		}
		name, err := x.processManager.NameOf(pid)
		if err != nil {
			x.logger.Debug("failed to resolve window owner", zap.Int("pid", pid), zap.Error(err))
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Activate focuses the app's first window. An app without windows is left alone.
func (x *XdotoolWindowControl) Activate(ctx context.Context, app string) error {
	ids, err := x.windowsOf(ctx, app)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return x.cmdRunner.Run(ctx, "xdotool", "windowactivate", "--sync", ids[0])
}

// HasWindow reports whether the app has a visible window.
func (x *XdotoolWindowControl) HasWindow(ctx context.Context, app string) (bool, error) {
	ids, err := x.windowsOf(ctx, app)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// SetBounds maps, raises and moves the app's first window.
func (x *XdotoolWindowControl) SetBounds(ctx context.Context, app string, rect domain.Rect) error {
	ids, err := x.windowsOf(ctx, app)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%q has no window", app)
	}

	id := ids[0]
	return x.cmdRunner.Run(ctx, "xdotool",
		"windowmap", id,
		"windowactivate", id,
		"windowsize", id, strconv.Itoa(rect.W), strconv.Itoa(rect.H),
		"windowmove", id, strconv.Itoa(rect.X), strconv.Itoa(rect.Y))
}

// GetBounds returns the first window's geometry, nil if the app has no window.
func (x *XdotoolWindowControl) GetBounds(ctx context.Context, app string) (*domain.Rect, error) {
	ids, err := x.windowsOf(ctx, app)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	out, err := x.cmdRunner.Output(ctx, "xdotool", "getwindowgeometry", "--shell", ids[0])
	if err != nil {
		return nil, err
	}
	vals := parseShellVars(string(out))

	var r domain.Rect
	for key, dst := range map[string]*int{"X": &r.X, "Y": &r.Y, "WIDTH": &r.W, "HEIGHT": &r.H} {
		n, err := strconv.Atoi(vals[key])
		if err != nil {
			return nil, fmt.Errorf("unexpected window geometry %q", strings.TrimSpace(string(out)))
		}
		*dst = n
	}
	return &r, nil
}

// parseShellVars parses KEY=value lines.
func parseShellVars(s string) map[string]string {
	vals := make(map[string]string)
	for _, line := range strings.Split(s, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if ok {
			vals[k] = v
		}
	}
	return vals
}

// XDisplay implements domain.DisplayService on X11.
type XDisplay struct {
	cmdRunner CommandRunner
	logger    *zap.Logger
}

// NewXDisplay creates an X11 display service.
func NewXDisplay(cmdRunner CommandRunner, logger *zap.Logger) *XDisplay {
	return &XDisplay{cmdRunner: cmdRunner, logger: logger}
}

// PrimaryDisplayBounds returns the root window size.
func (d *XDisplay) PrimaryDisplayBounds(ctx context.Context) (domain.Rect, error) {
	out, err := d.cmdRunner.Output(ctx, "xdotool", "getdisplaygeometry")
	if err != nil {
		return domain.Rect{}, err
	}
	f := strings.Fields(string(out))
	if len(f) != 2 {
		return domain.Rect{}, fmt.Errorf("unexpected display geometry %q", strings.TrimSpace(string(out)))
	}
	w, errW := strconv.Atoi(f[0])
	h, errH := strconv.Atoi(f[1])
	if errW != nil || errH != nil {
		return domain.Rect{}, fmt.Errorf("unexpected display geometry %q", strings.TrimSpace(string(out)))
	}
	return domain.Rect{W: w, H: h}, nil
}

// PrimaryDisplayWorkArea returns the first _NET_WORKAREA entry, or the full
// bounds when the window manager does not publish one.
func (d *XDisplay) PrimaryDisplayWorkArea(ctx context.Context) (domain.Rect, error) {
	full, err := d.PrimaryDisplayBounds(ctx)
	if err != nil {
		return domain.Rect{}, err
	}

	out, err := d.cmdRunner.Output(ctx, "xprop", "-root", "_NET_WORKAREA")
	if err != nil {
		d.logger.Debug("no work area published, using full bounds", zap.Error(err))
		return full, nil
	}

	// _NET_WORKAREA(CARDINAL) = 0, 27, 1920, 1053, ...
	_, list, ok := strings.Cut(string(out), "=")
	if !ok {
		return full, nil
	}
	v, err := parseInts(list)
	if err != nil || len(v) < 4 {
		d.logger.Debug("unreadable work area, using full bounds", zap.String("raw", strings.TrimSpace(string(out))))
		return full, nil
	}
	return domain.Rect{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}

// gsettingsAliases maps preference keys used on macOS to their GNOME equivalent.
var gsettingsAliases = map[string]string{
	"_HIHideMenuBar": "org.gnome.shell.extensions.dash-to-dock:autohide",
}

// GsettingsPreference implements domain.PreferenceService with gsettings.
// Keys are "schema:key".
type GsettingsPreference struct {
	cmdRunner CommandRunner
}

// NewGsettingsPreference creates a GNOME preference service.
func NewGsettingsPreference(cmdRunner CommandRunner) *GsettingsPreference {
	return &GsettingsPreference{cmdRunner: cmdRunner}
}

func splitGsettingsKey(key string) (schema, name string, err error) {
	if alias, ok := gsettingsAliases[key]; ok {
		key = alias
	}
	schema, name, ok := strings.Cut(key, ":")
	if !ok || schema == "" || name == "" {
		return "", "", fmt.Errorf("preference key %q is not schema:key", key)
	}
	return schema, name, nil
}

// Read returns the current value.
func (p *GsettingsPreference) Read(ctx context.Context, key string) (domain.PrefValue, error) {
	schema, name, err := splitGsettingsKey(key)
	if err != nil {
		return domain.PrefUnknown, err
	}
	out, err := p.cmdRunner.Output(ctx, "gsettings", "get", schema, name)
	if err != nil {
		return domain.PrefUnknown, fmt.Errorf("read %s: %w", key, err)
	}
	return parseBoolPref(string(out))
}

// Write sets the value.
func (p *GsettingsPreference) Write(ctx context.Context, key string, value bool) error {
	schema, name, err := splitGsettingsKey(key)
	if err != nil {
		return err
	}
	if err := p.cmdRunner.Run(ctx, "gsettings", "set", schema, name, strconv.FormatBool(value)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

var (
	_ domain.WindowControl     = (*XdotoolWindowControl)(nil)
	_ domain.DisplayService    = (*XDisplay)(nil)
	_ domain.PreferenceService = (*GsettingsPreference)(nil)
)
