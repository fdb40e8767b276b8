// Package registry implements the shortcut registry and its input state
// machine: the object graph of components, contexts and shortcuts, the
// reference-counted key-grab table in front of a platform capture
// backend, the multi-stroke recognizer, persistence, and the
// availability policy for admitting new bindings.
//
// The registry is not safe for concurrent use. The daemon runs it on a
// single event-loop goroutine and marshals bus calls onto that loop;
// tests construct a fresh registry per case.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/llehouerou/kacceld/internal/capture"
	"github.com/llehouerou/kacceld/internal/desktop"
	"github.com/llehouerou/kacceld/internal/keys"
	"github.com/llehouerou/kacceld/internal/storage"
)

// ErrDuplicateComponent means a component with the same unique name
// already exists, or the unique name is empty. This indicates a
// programming error in the client.
var ErrDuplicateComponent = errors.New("component already registered")

// Notification is one pressed/released message bound for a client. The
// bus layer drains these in order, so a release never overtakes the
// press of the same activation.
type Notification struct {
	Component string
	Action    string
	Pressed   bool
}

// shortcutRef is a non-owning handle on a shortcut. Handles resolve by
// name at use time, so a removed shortcut simply stops resolving
// instead of leaving a dangling pointer in an index.
type shortcutRef struct {
	component string
	context   string
	action    string
}

// activeEntry is one registered binding in the dispatch index.
type activeEntry struct {
	seq keys.Sequence
	ref shortcutRef
}

// machineState is the modifier-only recognizer state.
type machineState int

const (
	stateNormal machineState = iota
	statePressingModifierOnly
	stateReleasingModifierOnly
)

// Registry aggregates all components and runs the input state machine.
type Registry struct {
	log zerolog.Logger

	backend capture.Backend
	store   *storage.File

	// desktopDirs are scanned for shortcut-declaring desktop entries;
	// appDirs for application entries with declared defaults.
	desktopDirs []string
	appDirs     []string

	// allowed filters grab admission when an allow-list is configured.
	// Nil admits everything.
	allowed func(component, action string) bool

	components []*Component

	// activeKeys is the inverse dispatch index, keyed by the
	// normalized sequence encoding.
	activeKeys map[string]activeEntry

	// keyRefcounts guards backend grabs: a chord is grabbed iff its
	// count is positive, and released when the last reference goes.
	keyRefcounts map[keys.Chord]int

	activeSequence   keys.Sequence
	lastShortcut     *shortcutRef
	state            machineState
	currentModifiers keys.Modifiers

	notifications chan Notification
}

// New creates an empty registry persisting to store.
func New(store *storage.File, log zerolog.Logger) *Registry {
	return &Registry{
		log:           log.With().Str("component", "registry").Logger(),
		store:         store,
		activeKeys:    make(map[string]activeEntry),
		keyRefcounts:  make(map[keys.Chord]int),
		notifications: make(chan Notification, 64),
	}
}

// SetBackend attaches the platform capture backend. Without one the
// registry still accepts registrations but never grabs anything and
// ignores input events.
func (r *Registry) SetBackend(b capture.Backend) {
	r.backend = b
	if b != nil {
		b.SetEnabled(true)
	}
}

// Backend returns the attached capture backend, if any.
func (r *Registry) Backend() capture.Backend { return r.backend }

// SetDesktopDirs configures the desktop-entry search paths used during
// load.
func (r *Registry) SetDesktopDirs(desktopDirs, appDirs []string) {
	r.desktopDirs = desktopDirs
	r.appDirs = appDirs
}

// SetAllowed installs the allow-list predicate for grab admission.
func (r *Registry) SetAllowed(fn func(component, action string) bool) {
	r.allowed = fn
}

// Notifications returns the outbound client notification stream.
func (r *Registry) Notifications() <-chan Notification { return r.notifications }

func (r *Registry) notify(n Notification) {
	select {
	case r.notifications <- n:
	default:
		r.log.Warn().Str("target", n.Component).Str("action", n.Action).Msg("notification queue full, dropping")
	}
}

// Components returns the registered components in insertion order.
func (r *Registry) Components() []*Component { return r.components }

// GetComponent returns the component with the given unique name, or
// nil.
func (r *Registry) GetComponent(uniqueName string) *Component {
	for _, c := range r.components {
		if c.uniqueName == uniqueName {
			return c
		}
	}
	return nil
}

// AddComponent registers a new component identity. Unique names are
// unique process-wide; duplicates are a client programming error.
func (r *Registry) AddComponent(uniqueName, friendlyName string) (*Component, error) {
	if uniqueName == "" {
		return nil, fmt.Errorf("%w: empty unique name", ErrDuplicateComponent)
	}
	if existing := r.GetComponent(uniqueName); existing != nil {
		r.log.Error().Str("target", uniqueName).Msg("component registered twice")
		return existing, fmt.Errorf("%w: %s", ErrDuplicateComponent, uniqueName)
	}
	c := newComponent(r, uniqueName, friendlyName)
	r.components = append(r.components, c)
	return c, nil
}

// TakeComponent removes the component from the registry, releasing its
// grabs. Returns nil when the name is unknown.
func (r *Registry) TakeComponent(uniqueName string) *Component {
	for i, c := range r.components {
		if c.uniqueName == uniqueName {
			c.DeactivateShortcuts(false)
			r.components = append(r.components[:i], r.components[i+1:]...)
			return c
		}
	}
	return nil
}

// ActivateShortcuts marks every shortcut of every component present.
func (r *Registry) ActivateShortcuts() {
	for _, c := range r.components {
		c.ActivateShortcuts()
	}
}

// DeactivateShortcuts releases all grabs, keeping presence when
// temporarily is set.
func (r *Registry) DeactivateShortcuts(temporarily bool) {
	for _, c := range r.components {
		c.DeactivateShortcuts(temporarily)
	}
}

// GetShortcutByKey returns the first active shortcut matching key
// across all components.
func (r *Registry) GetShortcutByKey(key keys.Sequence, matchType MatchType) *Shortcut {
	for _, c := range r.components {
		if s := c.GetShortcutByKey(key, matchType); s != nil {
			return s
		}
	}
	return nil
}

// GetShortcutsByKey returns the matches of the first component that has
// any.
func (r *Registry) GetShortcutsByKey(key keys.Sequence, matchType MatchType) []*Shortcut {
	for _, c := range r.components {
		if out := c.GetShortcutsByKey(key, matchType); len(out) > 0 {
			return out
		}
	}
	return nil
}

// IsShortcutAvailable reports whether seq can be admitted for the
// requesting (component, context) pair: every component must agree.
func (r *Registry) IsShortcutAvailable(seq keys.Sequence, componentName, contextName string) bool {
	for _, c := range r.components {
		if !c.IsShortcutAvailable(seq, componentName, contextName) {
			return false
		}
	}
	return true
}

// resolve turns a handle back into a live shortcut, or nil.
func (r *Registry) resolve(ref shortcutRef) *Shortcut {
	c := r.GetComponent(ref.component)
	if c == nil {
		return nil
	}
	ctx := c.Context(ref.context)
	if ctx == nil {
		return nil
	}
	return ctx.GetShortcut(ref.action)
}

// activeShortcutFor returns the shortcut currently holding seq in the
// dispatch index, or nil. Stale entries are dropped on the way.
func (r *Registry) activeShortcutFor(seq keys.Sequence) *Shortcut {
	id := keys.Normalize(seq).String()
	entry, ok := r.activeKeys[id]
	if !ok {
		return nil
	}
	s := r.resolve(entry.ref)
	if s == nil {
		delete(r.activeKeys, id)
		return nil
	}
	return s
}

// grabChord takes one reference on a chord, grabbing it in the backend
// on the zero-to-one transition. Bare modifier chords are never grabbed
// from the backend; backends observe those without a grab.
func (r *Registry) grabChord(c keys.Chord) bool {
	if n := r.keyRefcounts[c]; n > 0 {
		r.keyRefcounts[c] = n + 1
		return true
	}
	if r.backend != nil && !c.IsModifierOnly() {
		if !r.backend.Grab(c, true) {
			return false
		}
	}
	r.keyRefcounts[c] = 1
	return true
}

// releaseChord drops one reference, releasing the backend grab when the
// last one goes.
func (r *Registry) releaseChord(c keys.Chord) {
	n, ok := r.keyRefcounts[c]
	if !ok {
		return
	}
	if n > 1 {
		r.keyRefcounts[c] = n - 1
		return
	}
	delete(r.keyRefcounts, c)
	if r.backend != nil && !c.IsModifierOnly() {
		r.backend.Grab(c, false)
	}
}

// registerKey admits a sequence into the dispatch index, grabbing each
// of its chords. A sequence already registered by another shortcut is
// refused; on grab failure partway through, the chords grabbed by this
// call are rolled back.
func (r *Registry) registerKey(seq keys.Sequence, s *Shortcut) bool {
	seq = keys.Normalize(seq)
	if seq.IsEmpty() {
		r.log.Debug().Str("action", s.uniqueName).Msg("attempt to register empty sequence")
		return false
	}
	id := seq.String()
	if taken := r.activeShortcutFor(seq); taken != nil {
		if taken != s {
			r.log.Debug().
				Str("action", s.uniqueName).
				Str("keys", id).
				Str("taken_by", taken.uniqueName).
				Msg("sequence already taken")
		}
		return false
	}
	if r.allowed != nil && !r.allowed(s.context.component.uniqueName, s.uniqueName) {
		r.log.Info().
			Str("target", s.context.component.uniqueName).
			Str("action", s.uniqueName).
			Msg("binding not in allow-list, leaving inactive")
		return false
	}

	if len(seq) > 1 {
		first := seq[0]
		if first.Sym() == keys.KeyPrint && first.Mods()&keys.ModAlt != 0 {
			// The X fold of Alt+Print into SysReq makes multi-stroke
			// sequences starting with it unreliable.
			r.log.Warn().
				Str("action", s.uniqueName).
				Str("keys", id).
				Msg("multi-stroke sequence starts with Alt+Print, may not trigger")
		}
	}

	for i, chord := range seq {
		if !r.grabChord(chord) {
			for j := i - 1; j >= 0; j-- {
				r.releaseChord(seq[j])
			}
			r.log.Debug().Str("action", s.uniqueName).Str("keys", id).Msg("grab rejected, rolled back")
			return false
		}
	}

	r.activeKeys[id] = activeEntry{seq: seq, ref: s.ref()}
	return true
}

// unregisterKey removes a sequence owned by s from the dispatch index
// and drops its chord references.
func (r *Registry) unregisterKey(seq keys.Sequence, s *Shortcut) bool {
	seq = keys.Normalize(seq)
	id := seq.String()
	entry, ok := r.activeKeys[id]
	if !ok || entry.ref != s.ref() {
		return false
	}
	for _, chord := range entry.seq {
		r.releaseChord(chord)
	}
	if r.lastShortcut != nil && *r.lastShortcut == entry.ref {
		s.context.component.emitReleased(s)
		r.lastShortcut = nil
	}
	delete(r.activeKeys, id)
	return true
}

// findShortcutByKey resolves a sequence through the dispatch index.
// Only admitted bindings dispatch; a conflicting binding that was
// refused registration can never fire.
func (r *Registry) findShortcutByKey(seq keys.Sequence) *Shortcut {
	return r.activeShortcutFor(seq)
}

// AddServiceComponent instantiates the service component for a desktop
// entry name, loading its declared shortcuts. Missing entries are an
// error; existing components are returned as-is.
func (r *Registry) AddServiceComponent(name string) (*Component, error) {
	if c := r.GetComponent(name); c != nil {
		return c, nil
	}
	path, err := desktop.Locate(name, r.desktopDirs)
	if err != nil {
		return nil, err
	}
	entry, err := desktop.Parse(path)
	if err != nil {
		return nil, err
	}
	if entry.NoDisplay {
		return nil, fmt.Errorf("desktop entry %s is hidden", name)
	}
	c, err := r.AddComponent(name, entry.Name)
	if err != nil {
		return nil, err
	}
	c.entry = entry
	c.LoadFromService()
	return c, nil
}

// Close tears the registry down: every grab still recorded in the
// dispatch index is released without consulting component state, then
// the backend is disabled and closed.
func (r *Registry) Close() {
	if r.backend != nil {
		for _, entry := range r.activeKeys {
			for _, chord := range entry.seq {
				r.releaseChord(chord)
			}
		}
		r.backend.SetEnabled(false)
		if err := r.backend.Close(); err != nil {
			r.log.Warn().Err(err).Msg("closing capture backend")
		}
		r.backend = nil
	}
	r.activeKeys = make(map[string]activeEntry)
	r.keyRefcounts = make(map[keys.Chord]int)
	if r.notifications != nil {
		close(r.notifications)
		r.notifications = nil
	}
}

// componentGroup returns the configuration group a component persists
// to.
func (r *Registry) componentGroup(c *Component) storage.Group {
	if c.kind == kindService {
		return r.store.Group(ServicesGroup, c.uniqueName)
	}
	return r.store.Group(c.uniqueName)
}

// LoadSettings builds the component set from the configuration file and
// the desktop-entry directories. Called once at startup, after the
// migrations.
func (r *Registry) LoadSettings() {
	// Plain components from top-level groups. Desktop-named groups at
	// the top level belong to the pre-split layout; the migration has
	// moved them under services already.
	for _, groupName := range r.store.Groups() {
		if groupName == ServicesGroup || strings.HasSuffix(groupName, ServiceSuffix) {
			continue
		}
		if r.GetComponent(groupName) != nil {
			continue
		}
		g := r.store.Group(groupName)
		c, err := r.AddComponent(groupName, g.ReadEntry(friendlyNameEntry))
		if err != nil {
			continue
		}

		for _, contextName := range g.SubGroups() {
			if contextName == legacyFriendlyNameGroup {
				continue
			}
			sub := g.Group(contextName)
			c.CreateContext(contextName, sub.ReadEntry(friendlyNameEntry))
			c.ActivateContext(contextName)
			c.LoadSettings(sub)
		}

		c.ActivateContext(DefaultContext)
		c.LoadSettings(g)
	}

	// Service components with stored overrides.
	for _, name := range r.store.Group(ServicesGroup).SubGroups() {
		if r.GetComponent(name) != nil {
			continue
		}
		g := r.store.Group(ServicesGroup, name)
		path, err := desktop.Locate(name, r.desktopDirs)
		if err != nil {
			r.log.Warn().Str("target", name).Msg("desktop entry missing, skipping service component")
			continue
		}
		entry, err := desktop.Parse(path)
		if err != nil {
			r.log.Warn().Str("target", name).Err(err).Msg("unreadable desktop entry, skipping")
			continue
		}
		c, err := r.AddComponent(name, entry.Name)
		if err != nil {
			continue
		}
		c.entry = entry
		c.LoadServiceSettings(g)
	}

	// Shortcut-declaring desktop entries not represented yet.
	for _, name := range desktop.List(r.desktopDirs) {
		if r.GetComponent(name) != nil {
			continue
		}
		if _, err := r.AddServiceComponent(name); err != nil {
			r.log.Debug().Str("target", name).Err(err).Msg("skipping desktop entry")
		}
	}

	// Application entries declaring default shortcuts.
	for _, name := range desktop.List(r.appDirs) {
		if r.GetComponent(name) != nil {
			continue
		}
		path, err := desktop.Locate(name, r.appDirs)
		if err != nil {
			continue
		}
		entry, err := desktop.Parse(path)
		if err != nil || !declaresShortcuts(entry) {
			continue
		}
		c, err := r.AddComponent(name, entry.Name)
		if err != nil {
			continue
		}
		c.entry = entry
		c.LoadFromService()
	}
}

func declaresShortcuts(e *desktop.Entry) bool {
	if len(e.Shortcuts) > 0 {
		return true
	}
	for _, a := range e.Actions {
		if len(a.Shortcuts) > 0 {
			return true
		}
	}
	return false
}

// WriteSettings persists every component, deleting the groups of
// components that no longer own any shortcut, then syncs the file.
func (r *Registry) WriteSettings() error {
	// Iterate a copy; empty components drop out of the list.
	components := make([]*Component, len(r.components))
	copy(components, r.components)
	for _, c := range components {
		g := r.componentGroup(c)
		if len(c.AllShortcuts()) == 0 {
			g.Delete()
			r.TakeComponent(c.uniqueName)
			continue
		}
		c.WriteSettings(g)
	}
	return r.store.Sync()
}
