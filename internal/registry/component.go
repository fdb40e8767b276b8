package registry

import (
	"strings"

	"github.com/llehouerou/kacceld/internal/desktop"
	"github.com/llehouerou/kacceld/internal/keys"
	"github.com/llehouerou/kacceld/internal/storage"
)

// componentKind tags the two component variants: a live client notified
// over the bus, and a desktop-entry-backed component launched on
// trigger.
type componentKind int

const (
	kindClient componentKind = iota
	kindService
)

// ServiceSuffix marks desktop-entry-backed component names.
const ServiceSuffix = ".desktop"

// ServicesGroup is the reserved configuration group holding
// desktop-entry-backed components.
const ServicesGroup = "services"

// friendlyNameEntry stores a component's presentation name inside its
// configuration group.
const friendlyNameEntry = "_k_friendly_name"

// legacyFriendlyNameGroup is an obsolete sub-group skipped during load.
const legacyFriendlyNameGroup = "Friendly Name"

// Component is one client identity registered with the daemon. It owns
// its contexts, persists itself to one configuration group, and
// dispatches press/release notifications to its client.
type Component struct {
	registry *Registry

	uniqueName   string
	friendlyName string
	kind         componentKind

	// entry backs service components; nil for client components.
	entry *desktop.Entry

	contexts []*Context
	active   *Context
}

func newComponent(r *Registry, uniqueName, friendlyName string) *Component {
	kind := kindClient
	if strings.HasSuffix(uniqueName, ServiceSuffix) {
		kind = kindService
	}
	c := &Component{
		registry:     r,
		uniqueName:   uniqueName,
		friendlyName: friendlyName,
		kind:         kind,
	}
	c.active = c.createContext(DefaultContext, "")
	return c
}

// UniqueName returns the process-wide unique component name.
func (c *Component) UniqueName() string { return c.uniqueName }

// FriendlyName returns the presentation name.
func (c *Component) FriendlyName() string { return c.friendlyName }

// SetFriendlyName updates the presentation name.
func (c *Component) SetFriendlyName(name string) { c.friendlyName = name }

// IsService reports whether the component is backed by a desktop entry.
func (c *Component) IsService() bool { return c.kind == kindService }

// Entry returns the backing desktop entry of a service component.
func (c *Component) Entry() *desktop.Entry { return c.entry }

// BusPath derives the component's IPC object path from its unique name.
func (c *Component) BusPath() string {
	return BusPathFor(c.uniqueName)
}

// BusPathFor sanitizes a component name into an IPC object path.
func BusPathFor(uniqueName string) string {
	var sb strings.Builder
	sb.WriteString("/component/")
	for _, r := range uniqueName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// FindShortcut looks the action up across the contexts in scan order.
func (c *Component) FindShortcut(action string) *Shortcut {
	for _, ctx := range c.contextScanOrder() {
		if s := ctx.GetShortcut(action); s != nil {
			return s
		}
	}
	return nil
}

// Contexts returns the owned contexts in insertion order.
func (c *Component) Contexts() []*Context { return c.contexts }

// Context returns the named context, or nil.
func (c *Component) Context(name string) *Context {
	for _, ctx := range c.contexts {
		if ctx.uniqueName == name {
			return ctx
		}
	}
	return nil
}

// ActiveContext returns the context newly registered shortcuts land in.
func (c *Component) ActiveContext() *Context { return c.active }

func (c *Component) createContext(name, friendlyName string) *Context {
	ctx := &Context{component: c, uniqueName: name, friendlyName: friendlyName}
	c.contexts = append(c.contexts, ctx)
	return ctx
}

// CreateContext adds a named context. Context names are unique within
// the component; creating an existing one returns it unchanged.
func (c *Component) CreateContext(name, friendlyName string) *Context {
	if ctx := c.Context(name); ctx != nil {
		return ctx
	}
	return c.createContext(name, friendlyName)
}

// ActivateContext makes the named context the target for new
// registrations. Unknown names are ignored.
func (c *Component) ActivateContext(name string) bool {
	ctx := c.Context(name)
	if ctx == nil {
		return false
	}
	c.active = ctx
	return true
}

// AllShortcuts returns every shortcut of every context.
func (c *Component) AllShortcuts() []*Shortcut {
	var out []*Shortcut
	for _, ctx := range c.contexts {
		out = append(out, ctx.shortcuts...)
	}
	return out
}

// AddShortcut creates a fresh, unbound shortcut for the action in the
// active context, or returns the existing one with its friendly name
// refreshed. This is the client registration path; the shortcut stays
// fresh until keys are first set.
func (c *Component) AddShortcut(action, friendlyName string) *Shortcut {
	if s := c.active.GetShortcut(action); s != nil {
		if friendlyName != "" {
			s.friendlyName = friendlyName
		}
		return s
	}
	return c.active.addShortcut(action, friendlyName)
}

// RegisterShortcut creates or updates the action in the active context
// with explicit current and default bindings, clearing the fresh flag.
// Sequences already taken inside this context or registered elsewhere
// are dropped with a warning.
func (c *Component) RegisterShortcut(action, friendlyName string, keyList, defaultList []keys.Sequence) *Shortcut {
	s := c.active.GetShortcut(action)
	if s == nil {
		s = c.active.addShortcut(action, friendlyName)
	} else if friendlyName != "" {
		s.friendlyName = friendlyName
	}
	s.SetDefaultKeys(defaultList)

	admitted := make([]keys.Sequence, 0, len(keyList))
	for _, seq := range keyList {
		seq = keys.Normalize(seq)
		if seq.IsEmpty() {
			admitted = append(admitted, seq)
			continue
		}
		if other := c.active.GetShortcutByKey(seq, MatchEqual); other != nil && other != s {
			c.registry.log.Warn().
				Str("component", c.uniqueName).
				Str("action", action).
				Str("keys", seq.String()).
				Str("taken_by", other.uniqueName).
				Msg("binding appears twice in one context, dropping")
			continue
		}
		if taken := c.registry.activeShortcutFor(seq); taken != nil && taken != s {
			c.registry.log.Warn().
				Str("component", c.uniqueName).
				Str("action", action).
				Str("keys", seq.String()).
				Str("taken_by", taken.context.component.uniqueName+"/"+taken.uniqueName).
				Msg("binding already registered elsewhere, dropping")
			continue
		}
		admitted = append(admitted, seq)
	}

	if s.isFresh {
		s.SetKeys(admitted)
	}
	return s
}

// ActivateShortcuts marks every owned shortcut present, grabbing its
// bindings.
func (c *Component) ActivateShortcuts() {
	for _, ctx := range c.contexts {
		for _, s := range ctx.shortcuts {
			s.setIsPresent(true)
		}
	}
}

// DeactivateShortcuts releases every owned grab. With temporarily set
// only the grabs are released and the presence flags survive; because
// the shortcuts are still marked present, ActivateShortcuts does not
// grab them again. Without it the shortcuts are marked absent.
func (c *Component) DeactivateShortcuts(temporarily bool) {
	for _, ctx := range c.contexts {
		for _, s := range ctx.shortcuts {
			if temporarily {
				s.unregister()
				continue
			}
			s.setIsPresent(false)
		}
	}
}

// IsShortcutAvailable reports whether seq can be admitted as a new
// binding as far as this component is concerned. Shortcuts in the named
// requesting (component, context) pair are exempt so a client can
// replace its own binding.
func (c *Component) IsShortcutAvailable(seq keys.Sequence, requestingComponent, requestingContext string) bool {
	seq = keys.Normalize(seq)
	if c.uniqueName == requestingComponent {
		for _, ctx := range c.contexts {
			if ctx.uniqueName == requestingContext {
				continue
			}
			if keys.MatchAny(seq, ctx.allKeys()) {
				return false
			}
		}
		return true
	}
	for _, ctx := range c.contexts {
		if keys.MatchAny(seq, ctx.allKeys()) {
			return false
		}
	}
	return true
}

// contextScanOrder returns the contexts in lookup order: default first,
// then the active context, then the rest in insertion order.
func (c *Component) contextScanOrder() []*Context {
	out := make([]*Context, 0, len(c.contexts))
	appendOnce := func(ctx *Context) {
		for _, have := range out {
			if have == ctx {
				return
			}
		}
		out = append(out, ctx)
	}
	if def := c.Context(DefaultContext); def != nil {
		appendOnce(def)
	}
	if c.active != nil {
		appendOnce(c.active)
	}
	for _, ctx := range c.contexts {
		appendOnce(ctx)
	}
	return out
}

// GetShortcutByKey returns the first active shortcut matching key, or
// nil.
func (c *Component) GetShortcutByKey(key keys.Sequence, matchType MatchType) *Shortcut {
	for _, ctx := range c.contextScanOrder() {
		if s := ctx.GetShortcutByKey(key, matchType); s != nil && s.IsActive() {
			return s
		}
	}
	return nil
}

// GetShortcutsByKey returns every active shortcut matching key across
// the contexts, in scan order.
func (c *Component) GetShortcutsByKey(key keys.Sequence, matchType MatchType) []*Shortcut {
	var out []*Shortcut
	key = keys.Normalize(key)
	for _, ctx := range c.contextScanOrder() {
		for _, s := range ctx.shortcuts {
			if !s.IsActive() {
				continue
			}
			for _, bound := range s.keys {
				if matches(bound, key, matchType) {
					out = append(out, s)
					break
				}
			}
		}
	}
	return out
}

// emitPressed notifies the client of a triggered shortcut. A client
// component forwards over the bus; a service component launches the
// backing desktop entry or one of its declared actions.
func (c *Component) emitPressed(s *Shortcut) {
	if c.kind == kindService {
		c.launch(s)
		return
	}
	c.registry.notify(Notification{Component: c.uniqueName, Action: s.uniqueName, Pressed: true})
}

// emitReleased mirrors emitPressed for release. Launches have no
// release half.
func (c *Component) emitReleased(s *Shortcut) {
	if c.kind == kindService {
		return
	}
	c.registry.notify(Notification{Component: c.uniqueName, Action: s.uniqueName, Pressed: false})
}

// WriteSettings serializes the component into its configuration group.
// The group is rewritten whole. Fresh and session shortcuts are
// skipped.
func (c *Component) WriteSettings(g storage.Group) {
	g.Delete()
	if c.kind == kindService {
		c.writeServiceSettings(g)
		return
	}

	if c.friendlyName != "" {
		g.WriteEntry(friendlyNameEntry, c.friendlyName)
	}
	for _, ctx := range c.contexts {
		target := g
		if ctx.uniqueName != DefaultContext {
			target = g.Group(ctx.uniqueName)
			if ctx.friendlyName != "" {
				target.WriteEntry(friendlyNameEntry, ctx.friendlyName)
			}
		}
		for _, s := range ctx.shortcuts {
			if s.isFresh || s.isSessionShortcut {
				continue
			}
			value := keys.FormatList(s.keys) + "\t" + keys.FormatList(s.defaultKeys) + "\t" + s.friendlyName
			target.WriteEntry(s.uniqueName, value)
		}
	}
}

// writeServiceSettings uses the compacted services encoding: only the
// current keys, and only when they differ from the declared default.
func (c *Component) writeServiceSettings(g storage.Group) {
	for _, ctx := range c.contexts {
		target := g
		if ctx.uniqueName != DefaultContext {
			target = g.Group(ctx.uniqueName)
		}
		for _, s := range ctx.shortcuts {
			if s.isFresh || s.isSessionShortcut {
				continue
			}
			current := keys.FormatList(s.keys)
			if current != keys.FormatList(s.defaultKeys) {
				target.WriteEntry(s.uniqueName, current)
			}
		}
	}
}

// LoadSettings decodes one configuration group into the active context.
func (c *Component) LoadSettings(g storage.Group) {
	for _, name := range g.Keys() {
		if name == friendlyNameEntry {
			continue
		}
		value := g.ReadEntry(name)
		fields := strings.SplitN(value, "\t", 3)

		keyList, err := keys.ParseList(fields[0])
		if err != nil {
			c.registry.log.Warn().
				Str("component", c.uniqueName).
				Str("action", name).
				Err(err).
				Msg("skipping malformed binding entry")
			continue
		}
		var defaultList []keys.Sequence
		if len(fields) > 1 {
			defaultList, err = keys.ParseList(fields[1])
			if err != nil {
				c.registry.log.Warn().
					Str("component", c.uniqueName).
					Str("action", name).
					Err(err).
					Msg("skipping malformed default binding")
				defaultList = nil
			}
		}
		friendly := name
		if len(fields) > 2 && fields[2] != "" {
			friendly = fields[2]
		}
		c.RegisterShortcut(name, friendly, keyList, defaultList)
	}
}
