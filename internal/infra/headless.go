package infra

import (
	"context"
	"fmt"
	"sync"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// Headless is an in-memory desktop implementing every host service. It backs
// dry runs on machines without a supported window system and drives the
// engine in integration tests.
type Headless struct {
	mu      sync.Mutex
	full    domain.Rect
	work    domain.Rect
	apps    []*headlessApp
	prefs   map[string]domain.PrefValue
	regions []*headlessRegion
}

type headlessApp struct {
	name    string
	windows bool
	bounds  *domain.Rect
}

// NewHeadless creates a headless desktop with the given geometry and running apps.
func NewHeadless(full, work domain.Rect, apps ...string) *Headless {
	h := &Headless{
		full:  full,
		work:  work,
		prefs: make(map[string]domain.PrefValue),
	}
	for _, a := range apps {
		h.apps = append(h.apps, &headlessApp{name: a, windows: true})
	}
	return h
}

// NewDefaultHeadless creates a 1920x1080 desktop with a 25px menu bar.
func NewDefaultHeadless(apps ...string) *Headless {
	return NewHeadless(
		domain.Rect{W: 1920, H: 1080},
		domain.Rect{Y: 25, W: 1920, H: 1055},
		apps...)
}

func (h *Headless) app(name string) *headlessApp {
	for _, a := range h.apps {
		if a.name == name {
			return a
		}
	}
	return nil
}

// OpenApp starts an app with a window, or gives a running app its window back.
func (h *Headless) OpenApp(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a := h.app(name); a != nil {
		a.windows = true
		return
	}
	h.apps = append(h.apps, &headlessApp{name: name, windows: true})
}

// CloseWindows closes every window of the app while it keeps running.
func (h *Headless) CloseWindows(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a := h.app(name); a != nil {
		a.windows = false
		a.bounds = nil
	}
}

// SetPreference seeds a preference; PrefUnknown makes it unreadable.
func (h *Headless) SetPreference(key string, v domain.PrefValue) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prefs[key] = v
}

// Preference returns the stored preference value.
func (h *Headless) Preference(key string) domain.PrefValue {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.prefs[key]
}

// KillRegion destroys live regions with role out-of-band, as a crashing
// overlay or a window manager would.
func (h *Headless) KillRegion(role domain.RegionRole) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.regions {
		if r.spec.Role == role && r.alive {
			r.alive = false
			n++
		}
	}
	return n
}

// LiveRegions returns the specs of regions currently on screen.
func (h *Headless) LiveRegions() []domain.RegionSpec {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domain.RegionSpec
	for _, r := range h.regions {
		if r.alive && r.shown {
			out = append(out, r.spec)
		}
	}
	return out
}

// WindowBounds returns the app's window bounds, nil if it has no window.
func (h *Headless) WindowBounds(app string) *domain.Rect {
	h.mu.Lock()
	defer h.mu.Unlock()
	a := h.app(app)
	if a == nil || a.bounds == nil {
		return nil
	}
	r := *a.bounds
	return &r
}

// PrimaryDisplayBounds implements domain.DisplayService.
func (h *Headless) PrimaryDisplayBounds(ctx context.Context) (domain.Rect, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.full, nil
}

// PrimaryDisplayWorkArea implements domain.DisplayService.
func (h *Headless) PrimaryDisplayWorkArea(ctx context.Context) (domain.Rect, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.work, nil
}

// ListForegroundApps implements domain.WindowControl.
func (h *Headless) ListForegroundApps(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.apps))
	for _, a := range h.apps {
		names = append(names, a.name)
	}
	return names, nil
}

// Activate implements domain.WindowControl.
func (h *Headless) Activate(ctx context.Context, app string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.app(app) == nil {
		return fmt.Errorf("application %q is not running", app)
	}
	return nil
}

// HasWindow implements domain.WindowControl.
func (h *Headless) HasWindow(ctx context.Context, app string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	a := h.app(app)
	return a != nil && a.windows, nil
}

// SetBounds implements domain.WindowControl.
func (h *Headless) SetBounds(ctx context.Context, app string, rect domain.Rect) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	a := h.app(app)
	if a == nil || !a.windows {
		return fmt.Errorf("%q has no window", app)
	}
	r := rect
	a.bounds = &r
	return nil
}

// GetBounds implements domain.WindowControl.
func (h *Headless) GetBounds(ctx context.Context, app string) (*domain.Rect, error) {
	return h.WindowBounds(app), nil
}

// Read implements domain.PreferenceService.
func (h *Headless) Read(ctx context.Context, key string) (domain.PrefValue, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.prefs[key]
	if !ok {
		return domain.PrefFalse, nil
	}
	if !v.Known() {
		return domain.PrefUnknown, fmt.Errorf("preference %s is unreadable", key)
	}
	return v, nil
}

// Write implements domain.PreferenceService.
func (h *Headless) Write(ctx context.Context, key string, value bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prefs[key] = domain.PrefFromBool(value)
	return nil
}

// Create implements domain.SurfaceFactory.
func (h *Headless) Create(ctx context.Context, spec domain.RegionSpec) (domain.Surface, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := &headlessRegion{desk: h, spec: spec, alive: true}
	h.regions = append(h.regions, r)
	return r, nil
}

type headlessRegion struct {
	desk  *Headless
	spec  domain.RegionSpec
	alive bool
	shown bool
}

func (r *headlessRegion) Show(ctx context.Context) error {
	r.desk.mu.Lock()
	defer r.desk.mu.Unlock()
	if !r.alive {
		return fmt.Errorf("%s region is gone", r.spec.Role)
	}
	r.shown = true
	return nil
}

func (r *headlessRegion) AssertTopmost(ctx context.Context) error { return nil }

func (r *headlessRegion) Alive() (bool, error) {
	r.desk.mu.Lock()
	defer r.desk.mu.Unlock()
	return r.alive, nil
}

func (r *headlessRegion) Destroy() error {
	r.desk.mu.Lock()
	defer r.desk.mu.Unlock()
	r.alive = false
	return nil
}

var (
	_ domain.DisplayService    = (*Headless)(nil)
	_ domain.WindowControl     = (*Headless)(nil)
	_ domain.PreferenceService = (*Headless)(nil)
	_ domain.SurfaceFactory    = (*Headless)(nil)
)
