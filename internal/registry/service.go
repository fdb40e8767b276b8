package registry

import (
	"github.com/llehouerou/kacceld/internal/desktop"
	"github.com/llehouerou/kacceld/internal/keys"
	"github.com/llehouerou/kacceld/internal/storage"
)

// launch starts the program behind a triggered service shortcut: the
// backing entry itself for the launch action, otherwise the declared
// action of the same name.
func (c *Component) launch(s *Shortcut) {
	if c.entry == nil {
		c.registry.log.Error().
			Str("component", c.uniqueName).
			Msg("service component has no desktop entry")
		return
	}
	var err error
	if s.uniqueName == desktop.LaunchAction {
		err = c.entry.Launch()
	} else {
		err = c.entry.LaunchDeclaredAction(s.uniqueName)
	}
	if err != nil {
		c.registry.log.Error().
			Str("component", c.uniqueName).
			Str("action", s.uniqueName).
			Err(err).
			Msg("launch failed")
	}
}

// parseDeclaredShortcuts turns the raw tokens of a desktop entry's
// shortcut attribute into sequences, skipping malformed ones with a
// warning.
func (c *Component) parseDeclaredShortcuts(action string, tokens []string) []keys.Sequence {
	var out []keys.Sequence
	for _, tok := range tokens {
		seq, err := keys.ParseSequence(tok)
		if err != nil {
			c.registry.log.Warn().
				Str("component", c.uniqueName).
				Str("action", action).
				Str("token", tok).
				Err(err).
				Msg("skipping malformed declared shortcut")
			continue
		}
		if !seq.IsEmpty() {
			out = append(out, seq)
		}
	}
	return out
}

// LoadFromService registers the entry's launch shortcut and each
// declared sub-action, bound to the declared defaults. Everything is
// marked present; a desktop entry needs no live client.
func (c *Component) LoadFromService() {
	if c.entry == nil {
		return
	}
	if c.entry.IsApplication() {
		defaults := c.parseDeclaredShortcuts(desktop.LaunchAction, c.entry.Shortcuts)
		s := c.RegisterShortcut(desktop.LaunchAction, c.entry.Name, defaults, defaults)
		s.setIsPresent(true)
	}
	for _, action := range c.entry.Actions {
		defaults := c.parseDeclaredShortcuts(action.ID, action.Shortcuts)
		s := c.RegisterShortcut(action.ID, action.Name, defaults, defaults)
		s.setIsPresent(true)
	}
}

// LoadServiceSettings is LoadFromService with stored overrides: the
// configuration group carries only current keys, and only for actions
// rebound away from the declared default.
func (c *Component) LoadServiceSettings(g storage.Group) {
	if c.entry == nil {
		return
	}
	load := func(action, friendly string, tokens []string) {
		defaults := c.parseDeclaredShortcuts(action, tokens)
		current := defaults
		if g.HasKey(action) {
			list, err := keys.ParseList(g.ReadEntry(action))
			if err != nil {
				c.registry.log.Warn().
					Str("component", c.uniqueName).
					Str("action", action).
					Err(err).
					Msg("skipping malformed stored binding")
			} else {
				current = list
			}
		}
		s := c.RegisterShortcut(action, friendly, current, defaults)
		s.setIsPresent(true)
	}

	for _, action := range c.entry.Actions {
		load(action.ID, action.Name, action.Shortcuts)
	}
	if c.entry.IsApplication() {
		load(desktop.LaunchAction, c.entry.Name, c.entry.Shortcuts)
	}
}

// CleanUp deactivates a service component whose backing file went away.
func (c *Component) CleanUp() {
	for _, s := range c.AllShortcuts() {
		s.setIsPresent(false)
	}
}
