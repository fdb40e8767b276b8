package registry

import (
	"github.com/llehouerou/kacceld/internal/keys"
)

// Shortcut is one bound (action, current keys, default keys) record,
// owned by a Context.
type Shortcut struct {
	uniqueName   string
	friendlyName string

	keys        []keys.Sequence
	defaultKeys []keys.Sequence

	// isPresent tracks whether the owning client is connected. Only
	// present shortcuts take part in grabs and dispatch.
	isPresent bool

	// isFresh is true until the first time keys are explicitly set.
	// Fresh shortcuts are never persisted.
	isFresh bool

	// isSessionShortcut marks shortcuts registered without grab
	// persistence; they are never written to disk either.
	isSessionShortcut bool

	context *Context
}

// UniqueName returns the stable action identifier.
func (s *Shortcut) UniqueName() string { return s.uniqueName }

// FriendlyName returns the presentation name.
func (s *Shortcut) FriendlyName() string { return s.friendlyName }

// Keys returns the current bindings. May be empty, meaning "bound to
// nothing".
func (s *Shortcut) Keys() []keys.Sequence { return s.keys }

// DefaultKeys returns the factory default bindings.
func (s *Shortcut) DefaultKeys() []keys.Sequence { return s.defaultKeys }

// Context returns the owning context.
func (s *Shortcut) Context() *Context { return s.context }

// IsPresent reports whether the owning client is connected.
func (s *Shortcut) IsPresent() bool { return s.isPresent }

// IsFresh reports whether keys were never explicitly set.
func (s *Shortcut) IsFresh() bool { return s.isFresh }

// IsSessionShortcut reports whether the shortcut lives only for this
// session.
func (s *Shortcut) IsSessionShortcut() bool { return s.isSessionShortcut }

// IsActive reports whether the shortcut takes part in dispatch: present
// and bound to at least one non-empty sequence.
func (s *Shortcut) IsActive() bool {
	if !s.isPresent {
		return false
	}
	for _, seq := range s.keys {
		if !seq.IsEmpty() {
			return true
		}
	}
	return false
}

func (s *Shortcut) registry() *Registry {
	return s.context.component.registry
}

func (s *Shortcut) ref() shortcutRef {
	return shortcutRef{
		component: s.context.component.uniqueName,
		context:   s.context.uniqueName,
		action:    s.uniqueName,
	}
}

// SetDefaultKeys replaces the factory defaults.
func (s *Shortcut) SetDefaultKeys(list []keys.Sequence) {
	s.defaultKeys = normalizeList(list)
}

// SetFriendlyName updates the presentation name.
func (s *Shortcut) SetFriendlyName(name string) {
	s.friendlyName = name
}

// SetSessionShortcut flags the shortcut session-only: it is never
// persisted and its bindings are never grabbed; another process owns
// the capture. Must be set before keys are assigned.
func (s *Shortcut) SetSessionShortcut(v bool) {
	s.isSessionShortcut = v
}

// SetKeys replaces the current bindings transactionally: the new
// sequences are conflict-checked against every component (the
// shortcut's own context excepted), sequences no longer wanted are
// unregistered, new ones registered, and on grab failure the partial
// registrations are rolled back and the old keys stay committed. The
// first call clears the fresh flag.
func (s *Shortcut) SetKeys(list []keys.Sequence) bool {
	newKeys := normalizeList(list)
	r := s.registry()

	for _, seq := range diffSequences(newKeys, s.keys) {
		if other := s.context.GetShortcutByKey(seq, MatchEqual); other != nil && other != s {
			return false
		}
		if !r.IsShortcutAvailable(seq, s.context.component.uniqueName, s.context.uniqueName) {
			return false
		}
	}

	s.isFresh = false

	if !s.isPresent || s.isSessionShortcut {
		s.keys = newKeys
		return true
	}
	removed := diffSequences(s.keys, newKeys)
	added := diffSequences(newKeys, s.keys)

	for _, seq := range removed {
		r.unregisterKey(seq, s)
	}

	var done []keys.Sequence
	for _, seq := range added {
		if seq.IsEmpty() {
			continue
		}
		if !r.registerKey(seq, s) {
			for _, d := range done {
				r.unregisterKey(d, s)
			}
			for _, seq := range removed {
				r.registerKey(seq, s)
			}
			return false
		}
		done = append(done, seq)
	}

	s.keys = newKeys
	return true
}

// MarkPresent records that the owning client connected, grabbing the
// bindings.
func (s *Shortcut) MarkPresent() {
	s.setIsPresent(true)
}

// MarkAbsent records that the owning client went away, releasing the
// bindings.
func (s *Shortcut) MarkAbsent() {
	s.setIsPresent(false)
}

// setIsPresent flips presence, registering or releasing the bindings as
// a side effect. Mutation goes through the context owner.
func (s *Shortcut) setIsPresent(present bool) {
	if s.isPresent == present {
		return
	}
	if s.isSessionShortcut {
		s.isPresent = present
		return
	}
	r := s.registry()
	if present {
		s.isPresent = true
		for _, seq := range s.keys {
			if !seq.IsEmpty() {
				r.registerKey(seq, s)
			}
		}
		return
	}
	for _, seq := range s.keys {
		if !seq.IsEmpty() {
			r.unregisterKey(seq, s)
		}
	}
	s.isPresent = false
}

// unregister releases the shortcut's grabs without touching presence;
// used for temporary deactivation.
func (s *Shortcut) unregister() {
	r := s.registry()
	for _, seq := range s.keys {
		if !seq.IsEmpty() {
			r.unregisterKey(seq, s)
		}
	}
}

// normalizeList normalizes every sequence of a binding list.
func normalizeList(list []keys.Sequence) []keys.Sequence {
	if list == nil {
		return nil
	}
	out := make([]keys.Sequence, len(list))
	for i, seq := range list {
		out[i] = keys.Normalize(seq)
	}
	return out
}

// diffSequences returns the sequences of a that are not in b.
func diffSequences(a, b []keys.Sequence) []keys.Sequence {
	var out []keys.Sequence
	for _, seq := range a {
		if seq.IsEmpty() {
			continue
		}
		found := false
		for _, other := range b {
			if seq.Equal(other) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, seq)
		}
	}
	return out
}
