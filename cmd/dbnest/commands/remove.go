package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveCommand() *cobra.Command {
	var keepData bool

	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a container",
		Long: `Remove a container's metadata and, unless --keep-data is given, its
data directory or backing file. A running container is stopped first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.reg.Remove(cmd.Context(), args[0], keepData); err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Printf("Removed %q\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepData, "keep-data", false, "keep the data directory or backing file on disk")

	return cmd
}
