package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/llehouerou/kacceld/internal/config"
	"github.com/llehouerou/kacceld/internal/daemon"

	// Capture backends register themselves by platform name.
	_ "github.com/llehouerou/kacceld/internal/capture/x11"
)

func main() {
	// On Wayland the compositor performs the capture itself; there is
	// nothing for this daemon to do.
	if os.Getenv("XDG_SESSION_TYPE") == "wayland" {
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kacceld: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	if err := daemon.Run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("daemon failed")
		os.Exit(1)
	}
}
