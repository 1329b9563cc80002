package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCloneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone <source> <target>",
		Short: "Clone a container",
		Long: `Clone a stopped container's data and settings under a new name.

The target gets a freshly allocated port. A running source is refused; stop
it first so the copied data is consistent.`,
		Example: `  dbnest clone mydb mydb-experiment`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			c, err := app.reg.Clone(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(c)
			}
			fmt.Printf("Cloned %q to %q", args[0], c.Name)
			if c.Port != 0 {
				fmt.Printf(" (port %d)", c.Port)
			}
			fmt.Println()
			return nil
		},
	}

	return cmd
}
