package ipc

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/kacceld/internal/capture"
	"github.com/llehouerou/kacceld/internal/registry"
	"github.com/llehouerou/kacceld/internal/storage"
)

// newTestObject wires a daemon object to a fresh registry with a
// same-goroutine loop, bypassing the bus.
func newTestObject(t *testing.T) (*daemonObject, *registry.Registry) {
	t.Helper()
	store, err := storage.Open("")
	require.NoError(t, err)
	reg := registry.New(store, zerolog.Nop())
	reg.SetBackend(capture.NewDummy(reg))
	svc := New(reg, func(fn func()) { fn() }, zerolog.Nop())
	return &daemonObject{svc: svc}, reg
}

func TestDoRegisterAndSetShortcut(t *testing.T) {
	obj, reg := newTestObject(t)

	ok, derr := obj.DoRegister("org.kde.konsole", "NewTab", "New Tab", "")
	require.Nil(t, derr)
	assert.True(t, ok)

	c := reg.GetComponent("org.kde.konsole")
	require.NotNil(t, c)
	s := c.FindShortcut("NewTab")
	require.NotNil(t, s)
	assert.True(t, s.IsFresh(), "registration alone does not bind")
	assert.True(t, s.IsPresent())

	ok, derr = obj.SetShortcut("org.kde.konsole", "NewTab", "Ctrl+Shift+T")
	require.Nil(t, derr)
	assert.True(t, ok)
	assert.False(t, s.IsFresh())

	got, derr := obj.GetShortcut("org.kde.konsole", "NewTab")
	require.Nil(t, derr)
	assert.Equal(t, "Ctrl+Shift+T", got)
}

func TestSetShortcutConflict(t *testing.T) {
	obj, _ := newTestObject(t)

	ok, _ := obj.DoRegister("c1", "A", "A", "")
	require.True(t, ok)
	ok, _ = obj.SetShortcut("c1", "A", "Ctrl+X")
	require.True(t, ok)

	ok, _ = obj.DoRegister("c2", "B", "B", "")
	require.True(t, ok)
	ok, derr := obj.SetShortcut("c2", "B", "Ctrl+X")
	require.Nil(t, derr)
	assert.False(t, ok, "conflicting binding must be reported as unavailable")
}

func TestSetShortcutMalformed(t *testing.T) {
	obj, _ := newTestObject(t)
	ok, _ := obj.DoRegister("c1", "A", "A", "")
	require.True(t, ok)

	_, derr := obj.SetShortcut("c1", "A", "Ctrl+Bogus")
	assert.NotNil(t, derr)
}

func TestRegisterWithoutGrab(t *testing.T) {
	obj, reg := newTestObject(t)

	ok, derr := obj.RegisterWithoutGrab("kwin", "Overview", "Overview", "Meta+W")
	require.Nil(t, derr)
	assert.True(t, ok)

	s := reg.GetComponent("kwin").FindShortcut("Overview")
	require.NotNil(t, s)
	assert.True(t, s.IsSessionShortcut())

	d := reg.Backend().(*capture.Dummy)
	assert.Empty(t, d.GrabLog)
}

func TestUnregister(t *testing.T) {
	obj, reg := newTestObject(t)
	ok, _ := obj.DoRegister("c1", "A", "A", "")
	require.True(t, ok)
	ok, _ = obj.SetShortcut("c1", "A", "Ctrl+X")
	require.True(t, ok)

	ok, derr := obj.Unregister("c1", "A")
	require.Nil(t, derr)
	assert.True(t, ok)
	assert.Nil(t, reg.GetComponent("c1").FindShortcut("A"))

	d := reg.Backend().(*capture.Dummy)
	assert.Empty(t, d.Grabbed)

	ok, _ = obj.Unregister("c1", "A")
	assert.False(t, ok)
}

func TestListComponentsAndActions(t *testing.T) {
	obj, _ := newTestObject(t)
	ok, _ := obj.DoRegister("c1", "A", "A", "")
	require.True(t, ok)
	ok, _ = obj.DoRegister("c1", "B", "B", "ctx")
	require.True(t, ok)
	ok, _ = obj.DoRegister("c2", "C", "C", "")
	require.True(t, ok)

	components, _ := obj.ListComponents()
	assert.Equal(t, []string{"c1", "c2"}, components)

	actions, _ := obj.ListActions("c1")
	assert.ElementsMatch(t, []string{"A", "B"}, actions)

	actions, _ = obj.ListActions("missing")
	assert.Empty(t, actions)
}

func TestIsGloballyAvailable(t *testing.T) {
	obj, _ := newTestObject(t)
	ok, _ := obj.DoRegister("c1", "A", "A", "")
	require.True(t, ok)
	ok, _ = obj.SetShortcut("c1", "A", "Ctrl+K, Ctrl+L")
	require.True(t, ok)

	available, derr := obj.IsGloballyAvailable("Ctrl+K", "c2")
	require.Nil(t, derr)
	assert.False(t, available)

	available, _ = obj.IsGloballyAvailable("Ctrl+K", "c1")
	assert.True(t, available)

	available, _ = obj.IsGloballyAvailable("Meta+Z", "c2")
	assert.True(t, available)
}

func TestBusPathDerivation(t *testing.T) {
	assert.Equal(t, "/component/org_kde_konsole", registry.BusPathFor("org.kde.konsole"))
	assert.Equal(t, "/component/plain_desktop", registry.BusPathFor("plain.desktop"))
}
