package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/llehouerou/kacceld/internal/desktop"
	"github.com/llehouerou/kacceld/internal/storage"
)

// MigrateServiceGroups rewrites the pre-split configuration layout:
// desktop-named groups at the top level move under the services group,
// keeping only entries whose stored shortcut differs from the stored
// default. Running it against an already-migrated file is a no-op.
func MigrateServiceGroups(store *storage.File, log zerolog.Logger) {
	for _, groupName := range store.Groups() {
		if groupName == ServicesGroup || !strings.HasSuffix(groupName, ServiceSuffix) {
			continue
		}
		src := store.Group(groupName)
		dst := store.Group(ServicesGroup, groupName)

		for _, name := range src.Keys() {
			if name == friendlyNameEntry {
				continue
			}
			fields := strings.SplitN(src.ReadEntry(name), "\t", 3)
			current := fields[0]
			if current == "" {
				current = "none"
			}
			def := "none"
			if len(fields) > 1 && fields[1] != "" {
				def = fields[1]
			}
			if current != def {
				dst.WriteEntry(name, current)
			}
		}
		src.Delete()
		log.Info().Str("target", groupName).Msg("moved desktop component under services")
	}
}

// hotkeysGroup is the indirection group legacy hot-keys stored their
// bindings under.
const hotkeysGroup = "khotkeys"

var hotkeyDataGroup = regexp.MustCompile(`^Data_[0-9]+$`)

// MigrateHotkeys converts simple legacy hot-keys into desktop entries
// under the user data directory and moves their bindings from the
// khotkeys indirection group into the services layout. Already-migrated
// entries are skipped, so the pass is safe to repeat.
func MigrateHotkeys(store *storage.File, hotkeysPath, desktopDir string, log zerolog.Logger) error {
	hotkeys, err := storage.Open(hotkeysPath)
	if err != nil {
		return err
	}

	for _, groupName := range hotkeys.Groups() {
		if !hotkeyDataGroup.MatchString(groupName) {
			continue
		}
		data := hotkeys.Group(groupName)
		if data.ReadEntry("Type") != "SIMPLE_ACTION_DATA" {
			continue
		}

		name := data.ReadEntry("Name")
		trigger := hotkeys.Group(groupName + "Triggers0")
		key := trigger.ReadEntry("Key")
		id := strings.Trim(trigger.ReadEntry("Uuid"), "{}")
		if id == "" {
			id = uuid.NewString()
		}

		execLine, ok := hotkeyExecLine(hotkeys.Group(groupName + "Actions0"))
		if !ok {
			log.Debug().Str("target", groupName).Msg("hot-key action type not migratable")
			continue
		}

		fileName := id + ServiceSuffix
		path := filepath.Join(desktopDir, fileName)
		if _, err := os.Stat(path); err == nil {
			continue // already migrated
		}

		if err := writeHotkeyDesktopFile(path, name, execLine, key); err != nil {
			log.Warn().Str("target", fileName).Err(err).Msg("writing migrated desktop entry")
			continue
		}

		moveHotkeyBinding(store, trigger.ReadEntry("Uuid"), id, key, fileName)
		log.Info().Str("target", fileName).Str("keys", key).Msg("migrated legacy hot-key")
	}

	// Drop the indirection group once nothing refers to it anymore.
	kh := store.Group(hotkeysGroup)
	if kh.Exists() {
		empty := true
		for _, name := range kh.Keys() {
			if name != friendlyNameEntry {
				empty = false
				break
			}
		}
		if empty {
			kh.Delete()
		}
	}
	return nil
}

// hotkeyExecLine derives the launch command of a legacy hot-key action.
func hotkeyExecLine(action storage.Group) (string, bool) {
	switch action.ReadEntry("Type") {
	case "COMMAND_URL":
		cmd := action.ReadEntry("CommandURL")
		return cmd, cmd != ""
	case "DBUS":
		app := action.ReadEntry("RemoteApp")
		obj := action.ReadEntry("RemoteObj")
		call := action.ReadEntry("Call")
		if call == "" {
			call = action.ReadEntry("Function")
		}
		if app == "" || obj == "" || call == "" {
			return "", false
		}
		parts := []string{"qdbus", app, obj, call}
		if args := action.ReadEntry("Arguments"); args != "" {
			parts = append(parts, args)
		}
		return strings.Join(parts, " "), true
	default:
		return "", false
	}
}

func writeHotkeyDesktopFile(path, name, execLine, key string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString("[Desktop Entry]\n")
	sb.WriteString("Type=Application\n")
	fmt.Fprintf(&sb, "Name=%s\n", name)
	fmt.Fprintf(&sb, "Exec=%s\n", execLine)
	if key != "" {
		fmt.Fprintf(&sb, "%s=%s\n", desktop.ShortcutsKey, key)
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// moveHotkeyBinding moves the stored binding for a hot-key out of the
// khotkeys indirection group into the services layout, writing it only
// when it differs from the new declared default.
func moveHotkeyBinding(store *storage.File, rawID, id, defaultKey, fileName string) {
	kh := store.Group(hotkeysGroup)
	entryName := ""
	for _, candidate := range []string{rawID, id, "{" + id + "}"} {
		if candidate != "" && kh.HasKey(candidate) {
			entryName = candidate
			break
		}
	}
	if entryName == "" {
		return
	}
	fields := strings.SplitN(kh.ReadEntry(entryName), "\t", 3)
	current := fields[0]
	kh.DeleteEntry(entryName)

	if current == "" || current == "none" || current == defaultKey {
		return
	}
	store.Group(ServicesGroup, fileName).WriteEntry(desktop.LaunchAction, current)
}
