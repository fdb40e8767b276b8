package daemon

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"

	"github.com/llehouerou/kacceld/internal/capture"
	"github.com/llehouerou/kacceld/internal/config"
	"github.com/llehouerou/kacceld/internal/ipc"
	"github.com/llehouerou/kacceld/internal/registry"
	"github.com/llehouerou/kacceld/internal/storage"
)

// Run wires the daemon together and blocks until a termination signal.
// Teardown order matters: settings are written while the components are
// still alive, then the registry releases its grabs and disables the
// backend.
func Run(cfg *config.Config, log zerolog.Logger) error {
	releaseLock, err := AcquireLock(filepath.Join(xdg.RuntimeDir, "kacceld.lock"))
	if err != nil {
		return err
	}
	defer releaseLock()

	store, err := storage.Open(config.ShortcutsFilePath())
	if err != nil {
		return fmt.Errorf("open shortcuts file: %w", err)
	}

	reg := registry.New(store, log)
	reg.SetDesktopDirs(config.DesktopDirs(), config.ApplicationDirs())
	if cfg.UseAllowList {
		reg.SetAllowed(cfg.Allowed)
	}

	loop := NewLoop()

	backend, err := capture.New(cfg.Platform, &loopHandler{loop: loop, reg: reg})
	if err != nil {
		// The registry still accepts configuration and registrations;
		// it just never grabs anything.
		log.Error().Err(err).Msg("running without capture backend")
	} else {
		reg.SetBackend(backend)
	}

	// Startup migrations, then the one-time load. Both passes are safe
	// against an already-migrated file.
	if err := registry.MigrateHotkeys(store, config.HotkeysFilePath(), filepath.Join(xdg.DataHome, "kglobalaccel"), log); err != nil {
		log.Warn().Err(err).Msg("legacy hot-key migration failed")
	}
	registry.MigrateServiceGroups(store, log)
	if err := store.Sync(); err != nil {
		log.Warn().Err(err).Msg("syncing migrated configuration")
	}

	reg.LoadSettings()
	reg.ActivateShortcuts()

	bus := ipc.New(reg, loop.Call, log)
	if err := bus.Start(); err != nil {
		return err
	}

	watcher, err := registry.WatchDesktopDirs(reg, config.DesktopDirs(), loop.Submit, log)
	if err != nil {
		log.Warn().Err(err).Msg("desktop-entry watching disabled")
	}

	go loop.Run()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	if watcher != nil {
		watcher.Close()
	}
	loop.Call(func() {
		if err := reg.WriteSettings(); err != nil {
			log.Error().Err(err).Msg("writing settings")
		}
		reg.Close()
	})
	loop.Stop()
	return bus.Close()
}
