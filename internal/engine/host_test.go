package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

var errInjected = errors.New("injected failure")

// fakeHost implements every host service the engine drives
type fakeHost struct {
	mu sync.Mutex

	full, work domain.Rect
	displayErr error

	apps      []string
	hasWindow bool
	hasErr    error
	setErr    error
	setPanic  any
	window    *domain.Rect
	pinCalls  int
	pinGate   chan struct{}
	activated int

	pref        domain.PrefValue
	prefReadErr error
	prefWrites  []bool

	surfaces     []*hostSurface
	createCalls  int
	createFailAt int // 1-based Create call that fails, 0 never
	deadOnCreate domain.RegionRole
	aliveErr     error
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		full:      domain.Rect{X: 0, Y: 0, W: 1920, H: 1080},
		work:      domain.Rect{X: 0, Y: 25, W: 1920, H: 1055},
		apps:      []string{"Notes"},
		hasWindow: true,
		pref:      domain.PrefFalse,
	}
}

func (h *fakeHost) services() Services {
	return Services{Display: h, Windows: h, Prefs: h, Surfaces: h}
}

func (h *fakeHost) PrimaryDisplayBounds(ctx context.Context) (domain.Rect, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.full, h.displayErr
}

func (h *fakeHost) PrimaryDisplayWorkArea(ctx context.Context) (domain.Rect, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.work, h.displayErr
}

func (h *fakeHost) ListForegroundApps(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.apps...), nil
}

func (h *fakeHost) Activate(ctx context.Context, app string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activated++
	return nil
}

func (h *fakeHost) HasWindow(ctx context.Context, app string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasWindow, h.hasErr
}

func (h *fakeHost) SetBounds(ctx context.Context, app string, rect domain.Rect) error {
	h.mu.Lock()
	h.pinCalls++
	gate := h.pinGate
	h.pinGate = nil
	err := h.setErr
	p := h.setPanic
	h.mu.Unlock()

	if p != nil {
		panic(p)
	}

	// A gated call holds the outcome it saw on entry.
	if gate != nil {
		<-gate
	}
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	r := rect
	h.window = &r
	return nil
}

func (h *fakeHost) GetBounds(ctx context.Context, app string) (*domain.Rect, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.window == nil {
		return nil, nil
	}
	r := *h.window
	return &r, nil
}

func (h *fakeHost) Read(ctx context.Context, key string) (domain.PrefValue, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.prefReadErr != nil {
		return domain.PrefUnknown, h.prefReadErr
	}
	return h.pref, nil
}

func (h *fakeHost) Write(ctx context.Context, key string, value bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prefWrites = append(h.prefWrites, value)
	h.pref = domain.PrefFromBool(value)
	return nil
}

func (h *fakeHost) Create(ctx context.Context, spec domain.RegionSpec) (domain.Surface, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.createCalls++
	if h.createFailAt != 0 && h.createCalls == h.createFailAt {
		return nil, errInjected
	}
	s := &hostSurface{host: h, spec: spec, alive: spec.Role != h.deadOnCreate}
	h.surfaces = append(h.surfaces, s)
	return s, nil
}

func (h *fakeHost) set(fn func(h *fakeHost)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h)
}

func (h *fakeHost) snapshot() (pinCalls int, writes []bool, surfaces []*hostSurface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pinCalls, append([]bool(nil), h.prefWrites...), append([]*hostSurface(nil), h.surfaces...)
}

func (h *fakeHost) kill(role domain.RegionRole) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.surfaces {
		if s.spec.Role == role && s.destroyed == 0 {
			s.alive = false
		}
	}
}

func (h *fakeHost) liveSurfaces() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, s := range h.surfaces {
		if s.alive && s.destroyed == 0 {
			n++
		}
	}
	return n
}

type hostSurface struct {
	host      *fakeHost
	spec      domain.RegionSpec
	alive     bool
	destroyed int
}

func (s *hostSurface) Show(ctx context.Context) error          { return nil }
func (s *hostSurface) AssertTopmost(ctx context.Context) error { return nil }

func (s *hostSurface) Alive() (bool, error) {
	s.host.mu.Lock()
	defer s.host.mu.Unlock()
	if s.host.aliveErr != nil {
		return false, s.host.aliveErr
	}
	return s.alive && s.destroyed == 0, nil
}

func (s *hostSurface) Destroy() error {
	s.host.mu.Lock()
	defer s.host.mu.Unlock()
	s.destroyed++
	return nil
}

func (s *hostSurface) destroyCount() int {
	s.host.mu.Lock()
	defer s.host.mu.Unlock()
	return s.destroyed
}
