package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbnest/dbnest/pkg/engine"
)

func newStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <name>",
		Short: "Start a container",
		Long: `Start a container's server process and wait until it is ready to serve.

The persisted port is re-validated right before the process spawns; if an
external process took it in the meantime a fresh port is allocated,
persisted, and reported. Starting a running container is a no-op.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			c, err := app.reg.Start(cmd.Context(), args[0])
			if err != nil {
				var e *engine.Error
				if errors.As(err, &e) && e.Class == engine.ErrorClassStartFailure {
					if e.Remediation != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s\n\n%s\n", e.Message, e.Remediation)
					}
					if verbose && e.Output != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "\nprocess output:\n%s\n", e.Output)
					}
				}
				return err
			}

			if jsonOutput {
				return printJSON(c)
			}
			fmt.Printf("Started %q (%s) on port %d\n", c.Name, c.Kind, c.Port)
			return nil
		},
	}

	return cmd
}
