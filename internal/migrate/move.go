// Package migrate rewrites the persisted shortcuts configuration
// offline: its move operation relocates or renames component groups and
// single actions, converting between the triple encoding and the
// compacted services encoding on the way.
package migrate

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/llehouerou/kacceld/internal/desktop"
	"github.com/llehouerou/kacceld/internal/storage"
)

// ErrBadInput covers missing or invalid move arguments.
var ErrBadInput = errors.New("invalid move request")

const (
	friendlyNameEntry = "_k_friendly_name"
	servicesGroup     = "services"
	noneToken         = "none"
)

// MoveOptions describes one move invocation.
type MoveOptions struct {
	ConfigPath string

	// SourceComponent is a glob over a slash-separated group path.
	// SourceAction defaults to every action in the matched groups.
	SourceComponent string
	SourceAction    string

	// TargetComponent is a destination group path; a trailing slash
	// means "place under this prefix keeping the source basename".
	TargetComponent string
	TargetAction    string

	// TargetDesktopFile overrides the target group and derives default
	// shortcut and display name from the desktop entry (or one of its
	// declared actions).
	TargetDesktopFile       string
	TargetDesktopFileAction string

	// DesktopDirs resolve a relative TargetDesktopFile.
	DesktopDirs []string
}

// Move applies the options to the configuration file and syncs it. A
// source pattern matching nothing is a successful no-op.
func Move(opts MoveOptions, log zerolog.Logger) error {
	if opts.SourceComponent == "" {
		return fmt.Errorf("%w: missing source component", ErrBadInput)
	}
	if opts.TargetComponent == "" && opts.TargetDesktopFile == "" {
		return fmt.Errorf("%w: missing target component or desktop file", ErrBadInput)
	}

	store, err := storage.Open(opts.ConfigPath)
	if err != nil {
		return err
	}

	sources, err := selectGroups(store, opts.SourceComponent)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return nil // nothing to do
	}

	var (
		target          storage.Group
		keepBasename    bool
		targetAction    = opts.TargetAction
		defaultShortcut string
		displayName     string
	)
	switch {
	case opts.TargetComponent != "":
		keepBasename = strings.HasSuffix(opts.TargetComponent, "/")
		target = resolveGroup(store, opts.TargetComponent)
	default:
		if len(sources) > 1 {
			return fmt.Errorf("%w: desktop-file target needs exactly one source component", ErrBadInput)
		}
		target, targetAction, defaultShortcut, displayName, err = resolveDesktopTarget(store, opts)
		if err != nil {
			return err
		}
	}

	for _, src := range sources {
		dst := target
		if keepBasename {
			dst = target.Group(src.Name())
		}
		entries := src.Keys()
		if opts.SourceAction != "" {
			entries = []string{opts.SourceAction}
		}
		for _, entry := range entries {
			m := migration{
				source:          src,
				sourceAction:    entry,
				target:          dst,
				targetAction:    targetAction,
				defaultShortcut: defaultShortcut,
				displayName:     displayName,
			}
			m.execute(log)
		}
		dropIfEmpty(src)
	}

	return store.Sync()
}

// selectGroups matches a slash-separated glob against the group tree.
func selectGroups(store *storage.File, pattern string) ([]storage.Group, error) {
	segments := splitPath(pattern)
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: empty source pattern", ErrBadInput)
	}

	pool := make([]storage.Group, 0)
	for _, name := range store.Groups() {
		pool = append(pool, store.Group(name))
	}

	for depth, segment := range segments {
		var next []storage.Group
		for _, g := range pool {
			ok, err := path.Match(segment, g.Name())
			if err != nil {
				return nil, fmt.Errorf("%w: bad pattern %q", ErrBadInput, segment)
			}
			if ok {
				next = append(next, g)
			}
		}
		if depth == len(segments)-1 {
			pool = next
			break
		}
		var children []storage.Group
		for _, g := range next {
			for _, sub := range g.SubGroups() {
				children = append(children, g.Group(sub))
			}
		}
		pool = children
	}

	var out []storage.Group
	for _, g := range pool {
		if g.Exists() {
			out = append(out, g)
		}
	}
	return out, nil
}

func resolveGroup(store *storage.File, p string) storage.Group {
	return store.Group(splitPath(p)...)
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// resolveDesktopTarget derives the services target group plus default
// shortcut and display name from a desktop entry.
func resolveDesktopTarget(store *storage.File, opts MoveOptions) (storage.Group, string, string, string, error) {
	fileName := opts.TargetDesktopFile
	fullPath := fileName
	if !filepath.IsAbs(fileName) {
		located, err := desktop.Locate(fileName, opts.DesktopDirs)
		if err != nil {
			return storage.Group{}, "", "", "", fmt.Errorf("%w: %v", ErrBadInput, err)
		}
		fullPath = located
	}
	entry, err := desktop.Parse(fullPath)
	if err != nil {
		return storage.Group{}, "", "", "", fmt.Errorf("%w: %v", ErrBadInput, err)
	}

	target := store.Group(servicesGroup, filepath.Base(fullPath))

	if actionName := opts.TargetDesktopFileAction; actionName != "" {
		action := entry.FindAction(actionName)
		if action == nil {
			return storage.Group{}, "", "", "", fmt.Errorf("%w: desktop entry declares no action %q", ErrBadInput, actionName)
		}
		return target, actionName, strings.Join(action.Shortcuts, ";"), action.Name, nil
	}
	if len(entry.Shortcuts) > 0 {
		return target, desktop.LaunchAction, strings.Join(entry.Shortcuts, ";"), entry.Name, nil
	}
	return target, "", "", "", nil
}

// migration moves one entry.
type migration struct {
	source       storage.Group
	sourceAction string

	target          storage.Group
	targetAction    string
	defaultShortcut string
	displayName     string
}

func (m migration) execute(log zerolog.Logger) {
	if m.sourceAction == friendlyNameEntry {
		return
	}
	if !m.source.HasKey(m.sourceAction) {
		return
	}

	fields := strings.SplitN(m.source.ReadEntry(m.sourceAction), "\t", 3)
	shortcut := fields[0]
	if shortcut == "" {
		shortcut = noneToken
	}

	def := m.defaultShortcut
	if def == "" && len(fields) > 1 {
		def = fields[1]
	}
	if def == "" {
		def = noneToken
	}

	entry := m.targetAction
	if entry == "" {
		entry = m.sourceAction
	}

	m.source.DeleteEntry(m.sourceAction)

	if m.target.Parent().Name() == servicesGroup {
		// Services groups store only the shortcut, and only when it
		// differs from the default.
		if shortcut != def {
			m.target.WriteEntry(entry, shortcut)
		}
	} else {
		display := m.displayName
		if display == "" && len(fields) > 2 {
			display = fields[2]
		}
		m.target.WriteEntry(entry, shortcut+"\t"+def+"\t"+display)
	}

	log.Debug().
		Str("from", m.source.Path()+"/"+m.sourceAction).
		Str("to", m.target.Path()+"/"+entry).
		Msg("moved entry")
}

// dropIfEmpty deletes a source group that has nothing but its friendly
// name left.
func dropIfEmpty(g storage.Group) {
	for _, name := range g.Keys() {
		if name != friendlyNameEntry {
			return
		}
	}
	if len(g.SubGroups()) == 0 {
		g.Delete()
	}
}
