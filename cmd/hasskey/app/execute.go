package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/hasskey/cmd/hasskey/cmd/devices"
	"github.com/agentstation/hasskey/cmd/hasskey/cmd/run"
	"github.com/agentstation/hasskey/cmd/hasskey/cmd/version"
	"github.com/agentstation/hasskey/pkg/constants"
)

// Execute runs the hasskey CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "hasskey",
		Short:   "Forward input device key events to Home Assistant",
		Version: a.version,
		Long: `Hasskey turns keyboards, remotes and macro pads attached to a Linux host
into Home Assistant triggers.

It selects input devices with udev property filters from the config file,
follows hotplug so devices can come and go, and fires one Home Assistant
event for each key press and release. Run without a command it behaves
like "hasskey run".`,
		Args:              cobra.NoArgs,
		PersistentPreRunE: a.setupCommand,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run.Run(cmd.Context(), a)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "tools",
		Title: "Tool Commands:",
	})

	flags := rootCmd.PersistentFlags()
	flags.String("config", constants.DefaultConfigPath, "device config file")
	flags.CountP("verbose", "v", "increase log verbosity (-v info, -vv debug, -vvv trace)")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v)")
	flags.String("log-format", "auto", "log format: auto, console, json")
	flags.String("log-output", "stderr", "log output: stderr, stdout or a file path")
	flags.Bool("no-color", false, "disable colored output")
	flags.StringP("format", "o", "", "output format: table, json, yaml")
	flags.Bool("no-grab", false, "do not take exclusive access of matched devices")

	rootCmd.SetVersionTemplate("hasskey {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	a.config.UpdateFromFlags(cmd)

	// Reinitialize logger with updated config
	logger := NewLogger(a.config)
	a.logger = &logger

	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(run.NewCommand(a))
	rootCmd.AddCommand(run.NewWatchCommand(a))

	// Tool commands
	rootCmd.AddCommand(devices.NewCommand(a))
	rootCmd.AddCommand(version.NewCommand(a))
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		//nolint:errcheck // Ignoring write error since we're exiting anyway
		_, _ = os.Stderr.WriteString("hasskey: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// mustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// mustGetCount retrieves a count flag value or panics if the flag doesn't exist.
func mustGetCount(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetCount(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
