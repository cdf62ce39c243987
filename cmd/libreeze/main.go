// Command libreeze is the library-management client: every route of the
// app is a subcommand guarded the same way the route is.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"libreeze/internal/config"
	"libreeze/internal/logger"

	"github.com/spf13/cobra"
)

type cli struct {
	app     *app
	verbose bool
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "libreeze",
		Short:         "Manage your library's books, members and loans",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateClient(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			level := cfg.Log.Level
			if c.verbose {
				level = "debug"
			}
			log := logger.New(logger.Config{Level: level, Format: cfg.Log.Format, Output: cfg.Log.Output})

			a, err := newApp(cmd.Context(), cfg, log, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.app != nil {
				c.app.Close()
				_ = c.app.log.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newDashboardCmd(c),
		newBooksCmd(c),
		newLendingCmd(c),
		newAuthCmd(c),
		newGoCmd(c),
	)
	return root
}

// enter runs the guards of path for cmd.
func (c *cli) enter(cmd *cobra.Command, path string) error {
	return enter(cmd.Context(), c.app.guards, path)
}

func newGoCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "go <path>",
		Short: "Check whether a route is open to you and print its command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.enter(cmd, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run `libreeze %s`\n", commandFor(args[0]))
			return nil
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(&cli{})
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errDenied) {
			fmt.Fprintln(os.Stderr, errMessage(err))
		}
		os.Exit(1)
	}
}
