// Package desktop reads desktop-entry files and launches the programs
// they describe. Only the subset of the format the shortcut daemon needs
// is modeled: names, visibility, exec lines, declared actions and their
// default shortcut lists.
package desktop

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// ErrNotFound means no desktop entry with the requested name exists in
// any of the searched directories.
var ErrNotFound = errors.New("desktop entry not found")

// ShortcutsKey is the entry attribute declaring default shortcuts.
const ShortcutsKey = "X-KDE-Shortcuts"

// LaunchAction is the reserved action id for the entry's own launcher.
const LaunchAction = "_launch"

const mainGroup = "Desktop Entry"

var desktopLoadOptions = ini.LoadOptions{
	IgnoreInlineComment:     true,
	SkipUnrecognizableLines: true,
	KeyValueDelimiters:      "=",
}

// Action is one declared desktop action.
type Action struct {
	ID        string
	Name      string
	Exec      string
	Shortcuts []string
}

// Entry is one parsed desktop-entry file.
type Entry struct {
	Path      string
	Name      string
	Exec      string
	NoDisplay bool
	// GlobalShortcutType distinguishes applications (which get a
	// launch shortcut) from plain services (which only carry actions).
	GlobalShortcutType string
	Shortcuts          []string
	Actions            []Action
}

// Parse reads the desktop entry at path.
func Parse(path string) (*Entry, error) {
	f, err := ini.LoadSources(desktopLoadOptions, path)
	if err != nil {
		return nil, fmt.Errorf("parse desktop entry %s: %w", path, err)
	}
	main, err := f.GetSection(mainGroup)
	if err != nil {
		return nil, fmt.Errorf("desktop entry %s has no [%s] group", path, mainGroup)
	}

	e := &Entry{
		Path:               path,
		Name:               main.Key("Name").String(),
		Exec:               main.Key("Exec").String(),
		NoDisplay:          main.Key("NoDisplay").MustBool(false),
		GlobalShortcutType: main.Key("X-KDE-GlobalShortcutType").String(),
		Shortcuts:          splitShortcuts(main.Key(ShortcutsKey).String()),
	}

	for _, id := range splitList(main.Key("Actions").String()) {
		sec, err := f.GetSection("Desktop Action " + id)
		if err != nil {
			continue
		}
		e.Actions = append(e.Actions, Action{
			ID:        id,
			Name:      sec.Key("Name").String(),
			Exec:      sec.Key("Exec").String(),
			Shortcuts: splitShortcuts(sec.Key(ShortcutsKey).String()),
		})
	}
	return e, nil
}

// IsApplication reports whether the entry gets a top-level launch
// shortcut. Entries without an explicit type are applications.
func (e *Entry) IsApplication() bool {
	return e.GlobalShortcutType == "" || e.GlobalShortcutType == "Application"
}

// FindAction returns the declared action with the given id, or nil.
func (e *Entry) FindAction(id string) *Action {
	for i := range e.Actions {
		if e.Actions[i].ID == id {
			return &e.Actions[i]
		}
	}
	return nil
}

// Locate finds the desktop entry with the given file name in dirs,
// returning its full path.
func Locate(name string, dirs []string) (string, error) {
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// List returns the basenames of all desktop entries found in dirs, in
// directory order, first occurrence winning.
func List(dirs []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, dir := range dirs {
		names, err := filepath.Glob(filepath.Join(dir, "*.desktop"))
		if err != nil {
			continue
		}
		for _, path := range names {
			base := filepath.Base(path)
			if !seen[base] {
				seen[base] = true
				out = append(out, base)
			}
		}
	}
	return out
}

// splitList splits a standard semicolon-terminated desktop list.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitShortcuts splits a declared shortcut list. Both separators occur
// in the wild, so accept either; a multi-stroke default cannot be
// expressed here.
func splitShortcuts(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ','
	}) {
		part = strings.TrimSpace(part)
		if part != "" && part != "none" {
			out = append(out, part)
		}
	}
	return out
}
