// Package config loads the daemon's own settings. The shortcuts file the
// registry persists to is separate and handled by the storage package.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPlatform selects the capture backend, overriding the config file.
const EnvPlatform = "KACCELD_PLATFORM"

// EnvTestMode leaves the shortcuts-file path unset so tests supply their
// own through the registry.
const EnvTestMode = "KACCELD_TEST_MODE"

type Config struct {
	LogLevel string `koanf:"log_level"` // zerolog level name, default "info"
	Platform string `koanf:"platform"`  // capture backend name, default "x11"

	// Allow-list mode: when enabled, only shortcuts listed as
	// "component/action" pairs are admitted to grabs.
	UseAllowList bool     `koanf:"use_allow_list"`
	AllowList    []string `koanf:"allow_list"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		LogLevel: "info",
		Platform: "x11",
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if env := os.Getenv(EnvPlatform); env != "" {
		cfg.Platform = env
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{filepath.Join(xdg.ConfigHome, "kacceld", "config.toml")}

	// ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

// ShortcutsFilePath returns the path of the persisted shortcuts file, or
// the empty string in test mode.
func ShortcutsFilePath() string {
	if _, ok := os.LookupEnv(EnvTestMode); ok {
		return ""
	}
	return filepath.Join(xdg.ConfigHome, "kglobalshortcutsrc")
}

// HotkeysFilePath returns the legacy hot-keys file consumed by the
// startup migration.
func HotkeysFilePath() string {
	return filepath.Join(xdg.ConfigHome, "khotkeysrc")
}

// DesktopDirs returns the directories scanned for shortcut-declaring
// desktop entries, writable location first.
func DesktopDirs() []string {
	dirs := []string{filepath.Join(xdg.DataHome, "kglobalaccel")}
	for _, d := range xdg.DataDirs {
		dirs = append(dirs, filepath.Join(d, "kglobalaccel"))
	}
	return dirs
}

// ApplicationDirs returns the desktop-entry application directories
// consulted for entries declaring default shortcuts.
func ApplicationDirs() []string {
	dirs := []string{filepath.Join(xdg.DataHome, "applications")}
	for _, d := range xdg.DataDirs {
		dirs = append(dirs, filepath.Join(d, "applications"))
	}
	return dirs
}

// Allowed reports whether the allow-list admits the given component and
// action. With the allow-list disabled everything is admitted.
func (c *Config) Allowed(component, action string) bool {
	if !c.UseAllowList {
		return true
	}
	want := component + "/" + action
	for _, entry := range c.AllowList {
		if strings.EqualFold(entry, want) {
			return true
		}
	}
	return false
}
