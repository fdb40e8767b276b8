// kacceld-migrate rewrites the persisted shortcuts configuration. It
// operates on the file alone; the daemon picks the result up on its
// next start.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/llehouerou/kacceld/internal/config"
	"github.com/llehouerou/kacceld/internal/migrate"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kacceld-migrate",
		Short:         "Rewrite the global shortcuts configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMoveCmd())
	return root
}

func newMoveCmd() *cobra.Command {
	opts := migrate.MoveOptions{}
	verbose := false

	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move or rename component groups and actions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.ConfigPath == "" {
				opts.ConfigPath = config.ShortcutsFilePath()
			}
			opts.DesktopDirs = config.DesktopDirs()

			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

			err := migrate.Move(opts, log)
			if err != nil {
				fmt.Fprintf(os.Stderr, "kacceld-migrate: %v\n", err)
				if errors.Is(err, migrate.ErrBadInput) {
					_ = cmd.Usage()
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to the shortcuts configuration file")
	cmd.Flags().StringVar(&opts.SourceComponent, "source-component", "", "glob over the source group path")
	cmd.Flags().StringVar(&opts.SourceAction, "source-action", "", "source action (defaults to all actions)")
	cmd.Flags().StringVar(&opts.TargetComponent, "target-component", "", "destination group path; trailing slash keeps the source basename")
	cmd.Flags().StringVar(&opts.TargetAction, "target-action", "", "rename the action on the way")
	cmd.Flags().StringVar(&opts.TargetDesktopFile, "target-desktop-file", "", "desktop entry deriving the target group and defaults")
	cmd.Flags().StringVar(&opts.TargetDesktopFileAction, "target-desktop-file-action", "", "declared action of the target desktop entry")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug output")

	return cmd
}
