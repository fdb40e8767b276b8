package registry

import (
	"github.com/llehouerou/kacceld/internal/keys"
)

// DefaultContext is the mandatory context every component owns.
const DefaultContext = "default"

// MatchType selects how a lookup key relates to a shortcut's bindings.
type MatchType int

const (
	// MatchEqual requires an exact sequence match.
	MatchEqual MatchType = iota
	// MatchShadowed finds shortcuts contained in the lookup key.
	MatchShadowed
	// MatchShadows finds shortcuts containing the lookup key.
	MatchShadows
)

// Context is a named bucket of shortcuts inside a component. Shortcuts
// keep insertion order.
type Context struct {
	component    *Component
	uniqueName   string
	friendlyName string

	shortcuts []*Shortcut
}

// UniqueName returns the context name.
func (c *Context) UniqueName() string { return c.uniqueName }

// FriendlyName returns the presentation name.
func (c *Context) FriendlyName() string { return c.friendlyName }

// Component returns the owning component.
func (c *Context) Component() *Component { return c.component }

// Shortcuts returns the owned shortcuts in insertion order.
func (c *Context) Shortcuts() []*Shortcut { return c.shortcuts }

// GetShortcut looks an action up by its unique name.
func (c *Context) GetShortcut(uniqueName string) *Shortcut {
	for _, s := range c.shortcuts {
		if s.uniqueName == uniqueName {
			return s
		}
	}
	return nil
}

// addShortcut creates an empty fresh shortcut for the action. The caller
// must have checked for duplicates.
func (c *Context) addShortcut(uniqueName, friendlyName string) *Shortcut {
	s := &Shortcut{
		uniqueName:   uniqueName,
		friendlyName: friendlyName,
		isFresh:      true,
		context:      c,
	}
	c.shortcuts = append(c.shortcuts, s)
	return s
}

// RemoveShortcut drops the action, releasing its grabs.
func (c *Context) RemoveShortcut(uniqueName string) bool {
	for i, s := range c.shortcuts {
		if s.uniqueName == uniqueName {
			s.setIsPresent(false)
			c.shortcuts = append(c.shortcuts[:i], c.shortcuts[i+1:]...)
			return true
		}
	}
	return false
}

// matches reports whether a bound sequence relates to key under the
// given match policy.
func matches(bound, key keys.Sequence, matchType MatchType) bool {
	if bound.IsEmpty() {
		return false
	}
	switch matchType {
	case MatchEqual:
		return bound.Equal(key)
	case MatchShadowed:
		return keys.Contains(bound, key)
	case MatchShadows:
		return keys.Contains(key, bound)
	default:
		return false
	}
}

// GetShortcutByKey returns the first shortcut whose current bindings
// relate to key under the match policy, in insertion order.
func (c *Context) GetShortcutByKey(key keys.Sequence, matchType MatchType) *Shortcut {
	key = keys.Normalize(key)
	for _, s := range c.shortcuts {
		for _, bound := range s.keys {
			if matches(bound, key, matchType) {
				return s
			}
		}
	}
	return nil
}

// allKeys returns every bound sequence of every shortcut in the context.
func (c *Context) allKeys() []keys.Sequence {
	var out []keys.Sequence
	for _, s := range c.shortcuts {
		out = append(out, s.keys...)
	}
	return out
}
