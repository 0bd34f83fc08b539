// Package devices provides the devices command, which lists the input
// devices present and which configured device each one matches.
package devices

import (
	"context"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/agentstation/hasskey/internal/appcontext"
	"github.com/agentstation/hasskey/internal/cmd/output"
	"github.com/agentstation/hasskey/internal/config"
	"github.com/agentstation/hasskey/internal/matcher"
	"github.com/agentstation/hasskey/internal/udev"
	"github.com/agentstation/hasskey/pkg/errors"
)

// NewCommand creates the devices command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "devices",
		GroupID: "tools",
		Aliases: []string{"list", "ls"},
		Short:   "List input devices and their matches",
		Long: `Devices enumerates the evdev input devices present now and shows, for
each one, the configured device it matches. For configs that do not match
it shows the first filter key that failed and why.

Without a config file only the devices are listed.`,
		Example: `  hasskey devices
  hasskey devices --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return List(cmd.Context(), app)
		},
	}
}

// List writes the device report in the configured output format.
func List(ctx context.Context, app appcontext.Interface) error {
	format, err := output.ParseFormat(app.OutputFormat())
	if err != nil {
		return err
	}
	if format == "" {
		format = output.DetectFormat("")
	}

	var table []matcher.DeviceConfig
	file, err := app.DeviceFile(config.DevicesOnly())
	switch {
	case err == nil:
		table = file.Table()
	case errors.Is(err, fs.ErrNotExist):
		app.Logger().Warn().Str("config", app.ConfigPath()).Msg("Config file not found, listing devices only")
	default:
		return err
	}

	devices, err := app.Devices().Enumerate(ctx)
	if err != nil {
		return err
	}

	return output.FormatDevices(app.Output(), Reports(devices, table), format)
}

// Reports evaluates every device against table.
func Reports(devices []udev.Device, table []matcher.DeviceConfig) []output.DeviceReport {
	reports := make([]output.DeviceReport, 0, len(devices))
	for _, d := range devices {
		r := output.DeviceReport{
			Node:    d.Node(),
			Syspath: d.Syspath(),
			Name:    udev.InputName(d),
		}
		if len(table) > 0 {
			r.Verdicts = matcher.Explain(d, table)
			if name, ok := matcher.Match(d, table); ok {
				r.Match = name
			}
		}
		reports = append(reports, r)
	}
	return reports
}
