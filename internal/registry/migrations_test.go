package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/kacceld/internal/storage"
)

func TestMigrateServiceGroups(t *testing.T) {
	store, err := storage.Open("")
	require.NoError(t, err)

	g := store.Group("org.kde.foo.desktop")
	g.WriteEntry("_k_friendly_name", "Foo")
	g.WriteEntry("Toggle", "Ctrl+T\tCtrl+T\tToggle")
	g.WriteEntry("Rebound", "Meta+R\tCtrl+R\tRebound")
	store.Group("org.kde.keep").WriteEntry("Action", "Ctrl+A\tCtrl+A\tAction")

	MigrateServiceGroups(store, zerolog.Nop())

	assert.False(t, store.Group("org.kde.foo.desktop").Exists())
	svc := store.Group(ServicesGroup, "org.kde.foo.desktop")
	// Only entries differing from their stored default survive, in the
	// compacted keys-only encoding.
	assert.False(t, svc.HasKey("Toggle"))
	assert.Equal(t, "Meta+R", svc.ReadEntry("Rebound"))
	// Non-desktop groups stay untouched.
	assert.True(t, store.Group("org.kde.keep").HasKey("Action"))

	// Idempotent: nothing left to move.
	MigrateServiceGroups(store, zerolog.Nop())
	assert.Equal(t, "Meta+R", svc.ReadEntry("Rebound"))
}

func TestMigrateHotkeys(t *testing.T) {
	dataDir := t.TempDir()
	hotkeysPath := filepath.Join(t.TempDir(), "khotkeysrc")
	hotkeys := `[Data]
DataCount=1

[Data_1]
Name=Launch Terminal
Type=SIMPLE_ACTION_DATA

[Data_1Actions0]
CommandURL=xterm
Type=COMMAND_URL

[Data_1Triggers0]
Key=Ctrl+Alt+T
Type=SHORTCUT
Uuid={6a2f8c0e-0001-0002-0003-000000000004}
`
	require.NoError(t, os.WriteFile(hotkeysPath, []byte(hotkeys), 0o644))

	store, err := storage.Open("")
	require.NoError(t, err)
	store.Group(hotkeysGroup).WriteEntry(
		"{6a2f8c0e-0001-0002-0003-000000000004}",
		"Meta+Return\tCtrl+Alt+T\tLaunch Terminal",
	)

	require.NoError(t, MigrateHotkeys(store, hotkeysPath, dataDir, zerolog.Nop()))

	fileName := "6a2f8c0e-0001-0002-0003-000000000004.desktop"
	content, err := os.ReadFile(filepath.Join(dataDir, fileName))
	require.NoError(t, err)
	assert.Contains(t, string(content), "Name=Launch Terminal")
	assert.Contains(t, string(content), "Exec=xterm")
	assert.Contains(t, string(content), "X-KDE-Shortcuts=Ctrl+Alt+T")

	// The rebound shortcut moved into the services layout; the
	// indirection group is gone.
	assert.Equal(t, "Meta+Return", store.Group(ServicesGroup, fileName).ReadEntry("_launch"))
	assert.False(t, store.Group(hotkeysGroup).Exists())

	// Safe to run again: the desktop file already exists.
	require.NoError(t, MigrateHotkeys(store, hotkeysPath, dataDir, zerolog.Nop()))
	assert.Equal(t, "Meta+Return", store.Group(ServicesGroup, fileName).ReadEntry("_launch"))
}

func TestMigrateHotkeysDBus(t *testing.T) {
	dataDir := t.TempDir()
	hotkeysPath := filepath.Join(t.TempDir(), "khotkeysrc")
	hotkeys := `[Data_1]
Name=Toggle Thing
Type=SIMPLE_ACTION_DATA

[Data_1Actions0]
RemoteApp=org.kde.thing
RemoteObj=/Thing
Call=toggle
Type=DBUS

[Data_1Triggers0]
Key=Meta+T
Type=SHORTCUT
Uuid={11111111-2222-3333-4444-555555555555}
`
	require.NoError(t, os.WriteFile(hotkeysPath, []byte(hotkeys), 0o644))

	store, err := storage.Open("")
	require.NoError(t, err)
	require.NoError(t, MigrateHotkeys(store, hotkeysPath, dataDir, zerolog.Nop()))

	content, err := os.ReadFile(filepath.Join(dataDir, "11111111-2222-3333-4444-555555555555.desktop"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "Exec=qdbus org.kde.thing /Thing toggle")
}

func TestMigrateHotkeysMissingFile(t *testing.T) {
	store, err := storage.Open("")
	require.NoError(t, err)
	assert.NoError(t, MigrateHotkeys(store, filepath.Join(t.TempDir(), "absent"), t.TempDir(), zerolog.Nop()))
}
