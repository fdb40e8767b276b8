package registry

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/kacceld/internal/capture"
	"github.com/llehouerou/kacceld/internal/keys"
	"github.com/llehouerou/kacceld/internal/storage"
)

func newTestRegistry(t *testing.T) (*Registry, *capture.Dummy) {
	t.Helper()
	store, err := storage.Open("")
	require.NoError(t, err)
	r := New(store, zerolog.Nop())
	d := capture.NewDummy(r)
	r.SetBackend(d)
	return r, d
}

func component(t *testing.T, r *Registry, name string) *Component {
	t.Helper()
	if c := r.GetComponent(name); c != nil {
		return c
	}
	c, err := r.AddComponent(name, name)
	require.NoError(t, err)
	return c
}

// bind registers a present shortcut bound to the given sequence list.
func bind(t *testing.T, r *Registry, componentName, action string, seqs ...string) *Shortcut {
	t.Helper()
	c := component(t, r, componentName)
	s := c.AddShortcut(action, action)
	s.setIsPresent(true)
	list := make([]keys.Sequence, 0, len(seqs))
	for _, raw := range seqs {
		seq, err := keys.ParseSequence(raw)
		require.NoError(t, err)
		list = append(list, seq)
	}
	require.True(t, s.SetKeys(list), "binding %v for %s/%s not admitted", seqs, componentName, action)
	return s
}

func chord(t *testing.T, raw string) keys.Chord {
	t.Helper()
	c, err := keys.ParseChord(raw)
	require.NoError(t, err)
	return c
}

// drain collects pending notifications without blocking.
func drain(r *Registry) []Notification {
	var out []Notification
	for {
		select {
		case n := <-r.Notifications():
			out = append(out, n)
		default:
			return out
		}
	}
}

func pressCount(notifications []Notification, action string) int {
	n := 0
	for _, note := range notifications {
		if note.Action == action && note.Pressed {
			n++
		}
	}
	return n
}

func TestDuplicateComponent(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.AddComponent("app", "App")
	require.NoError(t, err)
	_, err = r.AddComponent("app", "App")
	assert.ErrorIs(t, err, ErrDuplicateComponent)
}

func TestSimplePressRelease(t *testing.T) {
	r, d := newTestRegistry(t)
	bind(t, r, "app", "Open", "Ctrl+P")

	assert.True(t, d.CheckKeyPressed(chord(t, "Ctrl+P")))
	d.CheckKeyReleased(chord(t, "Ctrl+P"))

	notes := drain(r)
	require.Len(t, notes, 2)
	assert.Equal(t, Notification{Component: "app", Action: "Open", Pressed: true}, notes[0])
	assert.Equal(t, Notification{Component: "app", Action: "Open", Pressed: false}, notes[1])
}

// Modifier-only shortcuts trigger on release of the modifier.
func TestModifierOnlyTriggersOnRelease(t *testing.T) {
	r, d := newTestRegistry(t)
	bind(t, r, "app", "X", "Ctrl")

	assert.False(t, d.CheckKeyPressed(keys.NewChord(keys.KeyControl, 0)))
	assert.Empty(t, drain(r), "nothing may fire on press")

	d.CheckKeyReleased(keys.NewChord(keys.KeyControl, 0))
	assert.Equal(t, 1, pressCount(drain(r), "X"))
}

// A combination pressed while the modifier is held suppresses the
// modifier-only trigger.
func TestModifierOnlySuppressedByCombination(t *testing.T) {
	r, d := newTestRegistry(t)
	bind(t, r, "app", "X", "Ctrl")

	d.CheckKeyPressed(keys.NewChord(keys.KeyControl, 0))
	d.CheckKeyPressed(chord(t, "Ctrl+P"))
	d.CheckKeyReleased(chord(t, "Ctrl+P"))
	d.CheckKeyReleased(keys.NewChord(keys.KeyControl, 0))

	assert.Equal(t, 0, pressCount(drain(r), "X"))
}

// A multi-modifier binding fires once when any of its modifiers is
// released, and pressing further modifiers afterwards does not retrigger.
func TestMultiModifierFiresOnAnyRelease(t *testing.T) {
	r, d := newTestRegistry(t)
	bind(t, r, "app", "Y", "Ctrl+Shift")

	d.CheckKeyPressed(keys.NewChord(keys.KeyControl, 0))
	d.CheckKeyPressed(keys.NewChord(keys.KeyShift, keys.ModControl))
	d.CheckKeyReleased(keys.NewChord(keys.KeyShift, keys.ModControl))
	d.CheckKeyPressed(keys.NewChord(keys.KeyAlt, keys.ModControl))
	d.CheckKeyReleased(keys.NewChord(keys.KeyAlt, keys.ModControl))
	d.CheckKeyReleased(keys.NewChord(keys.KeyControl, 0))

	assert.Equal(t, 1, pressCount(drain(r), "Y"))
}

// Meta+click must not fire a bare-Meta shortcut.
func TestPointerSuppressesModifierOnly(t *testing.T) {
	r, d := newTestRegistry(t)
	bind(t, r, "app", "X", "Meta")

	d.CheckKeyPressed(keys.NewChord(keys.KeyMeta, 0))
	d.CheckPointerPressed(1)
	d.CheckKeyReleased(keys.NewChord(keys.KeyMeta, 0))
	assert.Equal(t, 0, pressCount(drain(r), "X"))

	d.CheckKeyPressed(keys.NewChord(keys.KeyMeta, 0))
	d.CheckAxisTriggered(1)
	d.CheckKeyReleased(keys.NewChord(keys.KeyMeta, 0))
	assert.Equal(t, 0, pressCount(drain(r), "X"))

	d.CheckKeyPressed(keys.NewChord(keys.KeyMeta, 0))
	r.ResetModifierOnlyState()
	d.CheckKeyReleased(keys.NewChord(keys.KeyMeta, 0))
	assert.Equal(t, 0, pressCount(drain(r), "X"))
}

// Super keys fold to Meta before entering the state machine.
func TestSuperFoldsToMeta(t *testing.T) {
	r, d := newTestRegistry(t)
	bind(t, r, "app", "X", "Meta")

	d.CheckKeyPressed(keys.NewChord(keys.KeySuperL, 0))
	d.CheckKeyReleased(keys.NewChord(keys.KeySuperL, 0))
	assert.Equal(t, 1, pressCount(drain(r), "X"))
}

// A two-stroke sequence completes across key events; a conflicting
// shorter binding is refused admission and never fires.
func TestSequenceDisambiguation(t *testing.T) {
	r, d := newTestRegistry(t)
	bind(t, r, "c1", "A", "Ctrl+K, Ctrl+L")

	c2 := component(t, r, "c2")
	b := c2.AddShortcut("B", "B")
	b.setIsPresent(true)
	seq, err := keys.ParseSequence("Ctrl+L")
	require.NoError(t, err)
	assert.False(t, b.SetKeys([]keys.Sequence{seq}), "shadowed binding must be refused")

	assert.False(t, d.CheckKeyPressed(chord(t, "Ctrl+K")))
	assert.True(t, d.CheckKeyPressed(chord(t, "Ctrl+L")))

	notes := drain(r)
	assert.Equal(t, 1, pressCount(notes, "A"))
	assert.Equal(t, 0, pressCount(notes, "B"))
}

// Prefixes of a registered sequence are unavailable to other
// components but stay available to the owner.
func TestConflictAdmission(t *testing.T) {
	r, _ := newTestRegistry(t)
	bind(t, r, "c1", "A", "Ctrl+K, Ctrl+L")
	component(t, r, "c2")

	seq, err := keys.ParseSequence("Ctrl+K")
	require.NoError(t, err)
	assert.False(t, r.IsShortcutAvailable(seq, "c2", DefaultContext))
	assert.True(t, r.IsShortcutAvailable(seq, "c1", DefaultContext))
}

func TestGrabRefcounting(t *testing.T) {
	r, d := newTestRegistry(t)
	// Two shortcuts sharing the Ctrl+K chord: one backend grab.
	bind(t, r, "c1", "A", "Ctrl+K, Ctrl+L")
	s := bind(t, r, "c1", "B", "Ctrl+K, Ctrl+M")

	grabs := 0
	for _, call := range d.GrabLog {
		if call.Chord == chord(t, "Ctrl+K") && call.On {
			grabs++
		}
	}
	assert.Equal(t, 1, grabs, "shared chord must be grabbed once")

	// Dropping one shortcut keeps the shared grab.
	require.True(t, s.SetKeys(nil))
	assert.True(t, d.Grabbed[chord(t, "Ctrl+K")])
	assert.False(t, d.Grabbed[chord(t, "Ctrl+M")])

	r.Close()
	assert.True(t, d.Balanced(), "grab/release calls must balance")
	assert.Empty(t, d.Grabbed)
}

func TestGrabRollbackOnFailure(t *testing.T) {
	r, d := newTestRegistry(t)
	d.FailChords[chord(t, "Ctrl+L")] = true

	c := component(t, r, "app")
	s := c.AddShortcut("A", "A")
	s.setIsPresent(true)
	seq, err := keys.ParseSequence("Ctrl+K, Ctrl+L")
	require.NoError(t, err)

	assert.False(t, s.SetKeys([]keys.Sequence{seq}))
	assert.Empty(t, s.Keys())
	assert.False(t, d.Grabbed[chord(t, "Ctrl+K")], "partial grab must roll back")
	assert.Empty(t, r.activeKeys)
	assert.Empty(t, r.keyRefcounts)
}

// Index consistency: every active binding is in the index, and every
// index entry points at a shortcut carrying that binding.
func TestIndexConsistency(t *testing.T) {
	r, _ := newTestRegistry(t)
	bind(t, r, "c1", "A", "Ctrl+K, Ctrl+L")
	bind(t, r, "c1", "B", "Meta+E")
	bind(t, r, "c2", "C", "Ctrl+F1")

	for id, entry := range r.activeKeys {
		s := r.resolve(entry.ref)
		require.NotNil(t, s, "index entry %s resolves", id)
		found := false
		for _, seq := range s.Keys() {
			if keys.Normalize(seq).String() == id {
				found = true
			}
		}
		assert.True(t, found, "shortcut %s carries indexed binding %s", s.UniqueName(), id)
	}

	for _, c := range r.Components() {
		for _, s := range c.AllShortcuts() {
			if !s.IsActive() || s.IsSessionShortcut() {
				continue
			}
			for _, seq := range s.Keys() {
				if seq.IsEmpty() {
					continue
				}
				_, ok := r.activeKeys[keys.Normalize(seq).String()]
				assert.True(t, ok, "active binding %s of %s is indexed", seq, s.UniqueName())
			}
		}
	}
}

func TestReleasePairingAcrossShortcuts(t *testing.T) {
	r, d := newTestRegistry(t)
	bind(t, r, "app", "First", "Ctrl+1")
	bind(t, r, "app", "Second", "Ctrl+2")

	d.CheckKeyPressed(chord(t, "Ctrl+1"))
	// No release for Ctrl+1 delivered; pressing the next shortcut must
	// emit the pending release first.
	d.CheckKeyPressed(chord(t, "Ctrl+2"))

	notes := drain(r)
	require.Len(t, notes, 3)
	assert.Equal(t, Notification{Component: "app", Action: "First", Pressed: true}, notes[0])
	assert.Equal(t, Notification{Component: "app", Action: "First", Pressed: false}, notes[1])
	assert.Equal(t, Notification{Component: "app", Action: "Second", Pressed: true}, notes[2])
}

func TestSessionShortcutNotGrabbedNotSaved(t *testing.T) {
	r, d := newTestRegistry(t)
	c := component(t, r, "kwin")
	s := c.AddShortcut("Overview", "Overview")
	s.SetSessionShortcut(true)
	s.setIsPresent(true)
	seq, err := keys.ParseSequence("Meta+W")
	require.NoError(t, err)
	require.True(t, s.SetKeys([]keys.Sequence{seq}))

	assert.Empty(t, d.GrabLog, "session shortcuts are never grabbed")

	require.NoError(t, r.WriteSettings())
	assert.False(t, r.store.Group("kwin").HasKey("Overview"))
}

func TestFreshShortcutNotSaved(t *testing.T) {
	r, _ := newTestRegistry(t)
	c := component(t, r, "app")
	c.AddShortcut("NeverBound", "Never bound")
	bind(t, r, "app", "Bound", "Ctrl+B")

	require.NoError(t, r.WriteSettings())
	g := r.store.Group("app")
	assert.False(t, g.HasKey("NeverBound"))
	assert.True(t, g.HasKey("Bound"))
}

func TestWriteSettingsDropsEmptyComponents(t *testing.T) {
	r, _ := newTestRegistry(t)
	component(t, r, "empty")
	bind(t, r, "full", "A", "Ctrl+A")

	require.NoError(t, r.WriteSettings())
	assert.Nil(t, r.GetComponent("empty"))
	assert.NotNil(t, r.GetComponent("full"))
	assert.False(t, r.store.Group("empty").Exists())
}

// Round trip: loadSettings after writeSettings reproduces the component
// set, modulo fresh and session shortcuts.
func TestRoundTripSerialization(t *testing.T) {
	r, _ := newTestRegistry(t)
	c := component(t, r, "org.kde.konsole")
	c.SetFriendlyName("Konsole")
	bind(t, r, "org.kde.konsole", "NewTab", "Ctrl+Shift+T")
	c.CreateContext("session", "Session")
	c.ActivateContext("session")
	bind(t, r, "org.kde.konsole", "Detach", "Ctrl+Shift+D")
	c.ActivateContext(DefaultContext)

	defaults, err := keys.ParseSequence("Meta+X")
	require.NoError(t, err)
	c.Context(DefaultContext).GetShortcut("NewTab").SetDefaultKeys([]keys.Sequence{defaults})

	require.NoError(t, r.WriteSettings())

	r2 := New(r.store, zerolog.Nop())
	r2.SetBackend(capture.NewDummy(r2))
	r2.LoadSettings()

	c2 := r2.GetComponent("org.kde.konsole")
	require.NotNil(t, c2)
	assert.Equal(t, "Konsole", c2.FriendlyName())

	newTab := c2.Context(DefaultContext).GetShortcut("NewTab")
	require.NotNil(t, newTab)
	assert.Equal(t, "Ctrl+Shift+T", keys.FormatList(newTab.Keys()))
	assert.Equal(t, "Meta+X", keys.FormatList(newTab.DefaultKeys()))
	assert.False(t, newTab.IsFresh())

	session := c2.Context("session")
	require.NotNil(t, session)
	detach := session.GetShortcut("Detach")
	require.NotNil(t, detach)
	assert.Equal(t, "Ctrl+Shift+D", keys.FormatList(detach.Keys()))
}

func TestAllowListBlocksGrabs(t *testing.T) {
	r, d := newTestRegistry(t)
	r.SetAllowed(func(component, action string) bool {
		return component == "app" && action == "Allowed"
	})

	bind(t, r, "app", "Allowed", "Ctrl+1")
	c := component(t, r, "app")
	s := c.AddShortcut("Blocked", "Blocked")
	s.setIsPresent(true)
	seq, err := keys.ParseSequence("Ctrl+2")
	require.NoError(t, err)
	assert.False(t, s.SetKeys([]keys.Sequence{seq}))

	assert.True(t, d.CheckKeyPressed(chord(t, "Ctrl+1")))
	assert.False(t, d.CheckKeyPressed(chord(t, "Ctrl+2")))
}

func TestBackendUnavailableShortCircuits(t *testing.T) {
	store, err := storage.Open("")
	require.NoError(t, err)
	r := New(store, zerolog.Nop())

	// Registrations are still accepted without a backend.
	s := bind(t, r, "app", "A", "Ctrl+A")
	assert.True(t, s.IsActive())

	// Input entry points short-circuit.
	assert.False(t, r.KeyPressed(chord(t, "Ctrl+A")))
	assert.False(t, r.KeyReleased(chord(t, "Ctrl+A")))
	assert.Empty(t, drain(r))
}

func TestTakeComponentReleasesGrabs(t *testing.T) {
	r, d := newTestRegistry(t)
	bind(t, r, "app", "A", "Ctrl+A")

	c := r.TakeComponent("app")
	require.NotNil(t, c)
	assert.Nil(t, r.GetComponent("app"))
	assert.Empty(t, d.Grabbed)
	assert.Empty(t, r.activeKeys)
}

func TestDeactivateTemporarilyKeepsPresence(t *testing.T) {
	r, d := newTestRegistry(t)
	s := bind(t, r, "app", "A", "Ctrl+A")

	r.DeactivateShortcuts(true)
	assert.True(t, s.IsPresent())
	assert.Empty(t, d.Grabbed)

	// Reactivating restores the grab: presence survives, so toggle off
	// and on again through the non-temporary path.
	r.DeactivateShortcuts(false)
	r.ActivateShortcuts()
	assert.True(t, d.Grabbed[chord(t, "Ctrl+A")])
}
