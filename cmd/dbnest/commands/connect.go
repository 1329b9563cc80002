package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dbnest/dbnest/pkg/engine"
)

func newConnectCommand() *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "connect <name> [-- client args...]",
		Short: "Open the engine's client shell against a container",
		Long: `Launch the engine's interactive client connected to a container, with
stdin and stdout passed through. Extra arguments after -- go to the client
binary verbatim.`,
		Example: `  # Interactive psql
  dbnest connect mydb

  # Run a one-off statement
  dbnest connect mydb -- -c "select count(*) from users"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			c, err := app.reg.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			eng, err := engine.New(c.Kind)
			if err != nil {
				return err
			}

			cfg := c.Config
			if database != "" {
				cfg.Database = database
			}

			exitCode, err := eng.RunCommandStreaming(cmd.Context(), cfg, args[1:])
			if err != nil {
				return err
			}
			if exitCode != 0 {
				// Propagate the client's exit code rather than wrapping it in
				// an error message of our own.
				os.Exit(exitCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&database, "database", "d", "", "database to connect to (default: the container's default)")

	return cmd
}
