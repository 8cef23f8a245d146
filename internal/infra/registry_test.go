package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

func newTestRegistry(t *testing.T) (*FileRegistry, *mockProcessManager) {
	t.Helper()
	pm := newMockProcessManager()
	return NewFileRegistry(filepath.Join(t.TempDir(), "data", "instance.json"), pm), pm
}

func TestFileRegistry_RegisterAndGet(t *testing.T) {
	registry, _ := newTestRegistry(t)

	inst := domain.Instance{
		PID:       12345,
		Mode:      domain.ModePicker,
		StartedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Version:   "0.1.0",
	}
	require.NoError(t, registry.Register(inst))

	got, err := registry.Get()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 12345, got.PID)
	assert.Equal(t, domain.ModePicker, got.Mode)
	assert.True(t, inst.StartedAt.Equal(got.StartedAt))

	info, err := os.Stat(registry.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileRegistry_GetMissing(t *testing.T) {
	registry, _ := newTestRegistry(t)

	got, err := registry.Get()
	require.NoError(t, err)
	assert.Nil(t, got)

	alive, err := registry.IsAlive()
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestFileRegistry_RejectsSecondLiveInstance(t *testing.T) {
	registry, pm := newTestRegistry(t)

	require.NoError(t, registry.Register(domain.Instance{PID: 100, Mode: domain.ModeSession}))
	pm.SetRunning(100, true)

	err := registry.Register(domain.Instance{PID: 200, Mode: domain.ModePicker})
	assert.ErrorIs(t, err, domain.ErrAlreadyRunning)

	got, _ := registry.Get()
	assert.Equal(t, 100, got.PID, "live record is kept")
}

func TestFileRegistry_ReplacesStaleRecord(t *testing.T) {
	registry, pm := newTestRegistry(t)

	require.NoError(t, registry.Register(domain.Instance{PID: 100}))
	pm.SetRunning(100, false)

	require.NoError(t, registry.Register(domain.Instance{PID: 200}))

	got, _ := registry.Get()
	assert.Equal(t, 200, got.PID)
}

func TestFileRegistry_ReRegisterSamePID(t *testing.T) {
	registry, pm := newTestRegistry(t)
	pm.SetRunning(100, true)

	require.NoError(t, registry.Register(domain.Instance{PID: 100, Mode: domain.ModePicker}))
	require.NoError(t, registry.Register(domain.Instance{PID: 100, Mode: domain.ModeSession, App: "Notes"}))

	got, _ := registry.Get()
	assert.Equal(t, domain.ModeSession, got.Mode)
}

func TestFileRegistry_UpdateAndIsAlive(t *testing.T) {
	registry, pm := newTestRegistry(t)
	require.NoError(t, registry.Register(domain.Instance{PID: 100, Mode: domain.ModePicker}))

	require.NoError(t, registry.Update(domain.Instance{PID: 100, Mode: domain.ModeSession, App: "Notes"}))
	got, _ := registry.Get()
	assert.Equal(t, "Notes", got.App)

	alive, err := registry.IsAlive()
	require.NoError(t, err)
	assert.False(t, alive)

	pm.SetRunning(100, true)
	alive, err = registry.IsAlive()
	require.NoError(t, err)
	assert.True(t, alive)
}

func TestFileRegistry_Clear(t *testing.T) {
	registry, _ := newTestRegistry(t)
	require.NoError(t, registry.Register(domain.Instance{PID: 100}))

	require.NoError(t, registry.Clear())
	_, err := os.Stat(registry.Path())
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, registry.Clear(), "clearing twice is fine")
}

func TestFileRegistry_CorruptFile(t *testing.T) {
	registry, _ := newTestRegistry(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(registry.Path()), 0700))
	require.NoError(t, os.WriteFile(registry.Path(), []byte("{not json"), 0600))

	_, err := registry.Get()
	assert.Error(t, err)
}
