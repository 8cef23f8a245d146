package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

var errInjected = errors.New("injected failure")

// fakeSurface implements domain.Surface for testing
type fakeSurface struct {
	mu         sync.Mutex
	spec       domain.RegionSpec
	shown      int
	topmost    int
	destroyed  int
	killed     bool
	showErr    error
	aliveErr   error
	destroyErr error
}

func (s *fakeSurface) Show(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.showErr != nil {
		return s.showErr
	}
	s.shown++
	return nil
}

func (s *fakeSurface) AssertTopmost(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topmost++
	return nil
}

func (s *fakeSurface) Alive() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aliveErr != nil {
		return false, s.aliveErr
	}
	return s.destroyed == 0 && !s.killed, nil
}

func (s *fakeSurface) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed++
	return s.destroyErr
}

func (s *fakeSurface) topmostCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topmost
}

func (s *fakeSurface) destroyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// fakeSurfaceFactory implements domain.SurfaceFactory for testing
type fakeSurfaceFactory struct {
	mu       sync.Mutex
	surfaces []*fakeSurface
	failAt   int // 1-based Create call that fails, 0 never
	showErr  error
	calls    int
}

func (f *fakeSurfaceFactory) Create(ctx context.Context, spec domain.RegionSpec) (domain.Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAt != 0 && f.calls == f.failAt {
		return nil, errInjected
	}
	s := &fakeSurface{spec: spec, showErr: f.showErr}
	f.surfaces = append(f.surfaces, s)
	return s, nil
}

func (f *fakeSurfaceFactory) created() []*fakeSurface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSurface(nil), f.surfaces...)
}

// mockWindowControl implements domain.WindowControl for testing
type mockWindowControl struct {
	apps        []string
	hasWindow   bool
	hasErr      error
	activateErr error
	setErr      error
	bounds      *domain.Rect
	getErr      error
	activated   []string
	pinned      []domain.Rect
}

func (m *mockWindowControl) ListForegroundApps(ctx context.Context) ([]string, error) {
	return m.apps, nil
}

func (m *mockWindowControl) Activate(ctx context.Context, app string) error {
	if m.activateErr != nil {
		return m.activateErr
	}
	m.activated = append(m.activated, app)
	return nil
}

func (m *mockWindowControl) HasWindow(ctx context.Context, app string) (bool, error) {
	return m.hasWindow, m.hasErr
}

func (m *mockWindowControl) SetBounds(ctx context.Context, app string, rect domain.Rect) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.pinned = append(m.pinned, rect)
	return nil
}

func (m *mockWindowControl) GetBounds(ctx context.Context, app string) (*domain.Rect, error) {
	return m.bounds, m.getErr
}

// mockPreferences implements domain.PreferenceService for testing
type mockPreferences struct {
	value    domain.PrefValue
	readErr  error
	writeErr error
	writes   []bool
}

func (m *mockPreferences) Read(ctx context.Context, key string) (domain.PrefValue, error) {
	if m.readErr != nil {
		return domain.PrefUnknown, m.readErr
	}
	return m.value, nil
}

func (m *mockPreferences) Write(ctx context.Context, key string, value bool) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, value)
	m.value = domain.PrefFromBool(value)
	return nil
}

// stubCounter implements RegionCounter for testing
type stubCounter struct {
	n       int
	err     error
	panicky bool
}

func (s *stubCounter) Count(ctx context.Context) (int, error) {
	if s.panicky {
		panic("surface table corrupted")
	}
	return s.n, s.err
}
