package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List containers",
		Long: `List all containers with their engine, port, and live status.

Status is derived from the actual process state at call time, so containers
killed outside dbnest show as stopped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			containers, err := app.reg.List(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(containers)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tENGINE\tSTATUS\tPORT\tLOCATION")
			for _, c := range containers {
				location := c.DataDir
				port := fmt.Sprintf("%d", c.Port)
				if c.Kind.IsFileBased() {
					location = c.FilePath
					port = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Name, c.Kind, c.Status, port, location)
			}
			return w.Flush()
		},
	}

	return cmd
}
