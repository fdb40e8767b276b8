// Package storage persists grouped key-value configuration in an INI
// file. Groups form a hierarchy addressed by slash-separated paths
// ("services/org.kde.konsole.desktop"); each path maps to one section.
// Insertion order of groups and entries is preserved across a rewrite.
package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

var loadOptions = ini.LoadOptions{
	IgnoreInlineComment:         true,
	SkipUnrecognizableLines:     true,
	SpaceBeforeInlineComment:    true,
	PreserveSurroundedQuote:     true,
	AllowPythonMultilineValues:  false,
	UnescapeValueDoubleQuotes:   false,
	UnescapeValueCommentSymbols: false,
}

// File is one grouped configuration file.
type File struct {
	path string
	f    *ini.File
}

// Open loads the file at path, or starts empty when it does not exist.
func Open(path string) (*File, error) {
	if path == "" {
		return &File{f: ini.Empty(loadOptions)}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &File{path: path, f: ini.Empty(loadOptions)}, nil
		}
		return nil, err
	}
	f, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return nil, err
	}
	return &File{path: path, f: f}, nil
}

// Path returns the backing file path; empty for an in-memory file.
func (f *File) Path() string {
	return f.path
}

// Sync writes the file back to disk atomically (write temp, rename).
// A file opened without a path syncs to nowhere.
func (f *File) Sync() error {
	if f.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	var sb strings.Builder
	if _, err := f.f.WriteTo(&sb); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Groups returns the top-level group names in file order.
func (f *File) Groups() []string {
	var out []string
	seen := make(map[string]bool)
	for _, name := range f.f.SectionStrings() {
		if name == ini.DefaultSection {
			continue
		}
		top := name
		if i := strings.Index(name, "/"); i >= 0 {
			top = name[:i]
		}
		if !seen[top] {
			seen[top] = true
			out = append(out, top)
		}
	}
	return out
}

// Group addresses the group at the given slash path. The group need not
// exist yet; writing an entry creates it.
func (f *File) Group(path ...string) Group {
	return Group{file: f, path: strings.Join(path, "/")}
}

// Group is a handle on one group inside a File.
type Group struct {
	file *File
	path string
}

// Name returns the last path segment.
func (g Group) Name() string {
	if i := strings.LastIndex(g.path, "/"); i >= 0 {
		return g.path[i+1:]
	}
	return g.path
}

// Path returns the full slash path of the group.
func (g Group) Path() string {
	return g.path
}

// Group addresses a sub-group.
func (g Group) Group(name string) Group {
	return Group{file: g.file, path: g.path + "/" + name}
}

// Parent returns the enclosing group; the parent of a top-level group is
// the zero-path group.
func (g Group) Parent() Group {
	if i := strings.LastIndex(g.path, "/"); i >= 0 {
		return Group{file: g.file, path: g.path[:i]}
	}
	return Group{file: g.file}
}

// Exists reports whether the group has a section of its own or any
// sub-group.
func (g Group) Exists() bool {
	if _, err := g.file.f.GetSection(g.path); err == nil {
		return true
	}
	return len(g.SubGroups()) > 0
}

// SubGroups returns the names of direct sub-groups in file order.
func (g Group) SubGroups() []string {
	prefix := g.path + "/"
	if g.path == "" {
		prefix = ""
	}
	var out []string
	seen := make(map[string]bool)
	for _, name := range g.file.f.SectionStrings() {
		if name == ini.DefaultSection || !strings.HasPrefix(name, prefix) || name == g.path {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" && !seen[rest] {
			seen[rest] = true
			out = append(out, rest)
		}
	}
	return out
}

// Keys returns the entry names of the group in file order.
func (g Group) Keys() []string {
	sec, err := g.file.f.GetSection(g.path)
	if err != nil {
		return nil
	}
	return sec.KeyStrings()
}

// HasKey reports whether the entry exists.
func (g Group) HasKey(name string) bool {
	sec, err := g.file.f.GetSection(g.path)
	if err != nil {
		return false
	}
	return sec.HasKey(name)
}

// ReadEntry returns the entry value, or the empty string when absent.
func (g Group) ReadEntry(name string) string {
	sec, err := g.file.f.GetSection(g.path)
	if err != nil {
		return ""
	}
	if !sec.HasKey(name) {
		return ""
	}
	return sec.Key(name).String()
}

// WriteEntry sets the entry, creating the group when needed.
func (g Group) WriteEntry(name, value string) {
	sec := g.file.f.Section(g.path)
	sec.Key(name).SetValue(value)
}

// DeleteEntry removes the entry if present.
func (g Group) DeleteEntry(name string) {
	sec, err := g.file.f.GetSection(g.path)
	if err != nil {
		return
	}
	sec.DeleteKey(name)
}

// IsEmpty reports whether the group has no entries of its own.
func (g Group) IsEmpty() bool {
	return len(g.Keys()) == 0
}

// Delete removes the group and all of its sub-groups.
func (g Group) Delete() {
	var doomed []string
	prefix := g.path + "/"
	for _, name := range g.file.f.SectionStrings() {
		if name == g.path || strings.HasPrefix(name, prefix) {
			doomed = append(doomed, name)
		}
	}
	// Delete deepest first so section bookkeeping stays consistent.
	sort.Sort(sort.Reverse(sort.StringSlice(doomed)))
	for _, name := range doomed {
		g.file.f.DeleteSection(name)
	}
}
