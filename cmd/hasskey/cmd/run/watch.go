package run

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/hasskey/internal/appcontext"
	"github.com/agentstation/hasskey/internal/config"
	"github.com/agentstation/hasskey/internal/sink"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(app appcontext.Interface) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "core",
		Short:   "Print key events of matched devices",
		Long: `Watch runs the same discovery and matching as run but prints each key
event instead of sending it. The home_assistant section of the config file
is not needed. Useful while writing filters.`,
		Example: `  hasskey watch
  hasskey watch --json | jq .`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := app.DeviceFile(config.DevicesOnly())
			if err != nil {
				return err
			}
			return watch(cmd.Context(), app, file, sink.NewWriter(app.Output(), asJSON))
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the JSON body Home Assistant would receive")

	return cmd
}
