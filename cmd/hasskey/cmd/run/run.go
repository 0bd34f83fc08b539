// Package run provides the commands that watch input devices: run, which
// forwards key events to Home Assistant, and watch, which prints them.
package run

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentstation/hasskey/internal/appcontext"
	"github.com/agentstation/hasskey/internal/config"
	"github.com/agentstation/hasskey/internal/sink"
	"github.com/agentstation/hasskey/internal/transport"
	"github.com/agentstation/hasskey/internal/watcher"
)

// NewCommand creates the run command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		GroupID: "core",
		Short:   "Forward key events to Home Assistant",
		Long: `Run opens every input device matched by the config file, follows
hotplug to pick up devices plugged in later, and fires one Home Assistant
event per key press and release.

This is also what hasskey does when started without a command.`,
		Example: `  hasskey run --config /etc/hasskey/config.yaml
  hasskey -vv                               # same as run, with debug logs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.Context(), app)
		},
	}
}

// Run loads the device file and forwards key events to Home Assistant until
// ctx is cancelled.
func Run(ctx context.Context, app appcontext.Interface) error {
	file, err := app.DeviceFile()
	if err != nil {
		return err
	}

	hass := file.HomeAssistant
	client := transport.New(&transport.BearerAuth{}, hass.Token, transport.WithTimeout(hass.Timeout))
	target, err := sink.NewHass(client, hass.URL, hass.EventType)
	if err != nil {
		return err
	}

	app.Logger().Info().
		Str("endpoint", target.URL()).
		Dur("timeout", hass.Timeout).
		Int("devices", len(file.Devices)).
		Msg("Starting")

	return watch(ctx, app, file, target)
}

func watch(ctx context.Context, app appcontext.Interface, file *config.File, target sink.Sink) error {
	devices := app.Devices()
	w := watcher.New(watcher.Options{
		Table:      file.Table(),
		Enumerator: devices,
		Monitor:    devices,
		Opener:     app.Opener(),
		Sink:       target,
	}, app.Logger())
	return w.Run(ctx)
}
