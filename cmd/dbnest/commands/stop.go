package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop a container",
		Long: `Stop a container's server process gracefully, escalating to a forced
kill after a grace period. Stopping a stopped container is a no-op.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.reg.Stop(cmd.Context(), args[0]); err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Printf("Stopped %q\n", args[0])
			}
			return nil
		},
	}

	return cmd
}
