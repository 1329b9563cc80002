package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbnest/dbnest/pkg/engine"
	"github.com/dbnest/dbnest/pkg/registry"
)

func newCreateCommand() *cobra.Command {
	var (
		engineName string
		port       int
		httpPort   int
		user       string
		password   string
		database   string
		binDir     string
		filePath   string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new database container",
		Long: `Create a new database container with persisted metadata.

Server engines get a port allocated from the configured range unless --port
is given. File-based engines (sqlite, duckdb) take an optional --file path
instead of a port.

The container starts in the stopped state; use "dbnest start" to bring it
up.`,
		Example: `  # Postgres on an auto-allocated port
  dbnest create mydb --engine postgres

  # Redis pinned to a port with auth
  dbnest create cache --engine redis --port 6380 --password s3cret

  # SQLite backed by an explicit file
  dbnest create local --engine sqlite --file ./local.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := engine.ParseKind(engineName)
			if err != nil {
				return err
			}

			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if binDir == "" {
				binDir = app.cfg.BinDirFor(kind)
			}

			c, err := app.reg.Create(cmd.Context(), args[0], kind, registry.CreateOptions{
				Port:     port,
				HTTPPort: httpPort,
				User:     user,
				Password: password,
				Database: database,
				BinDir:   binDir,
				FilePath: filePath,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(c)
			}
			fmt.Printf("Created %s container %q", c.Kind, c.Name)
			if c.Port != 0 {
				fmt.Printf(" on port %d", c.Port)
			}
			if c.FilePath != "" {
				fmt.Printf(" at %s", c.FilePath)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVarP(&engineName, "engine", "e", "", "engine kind (required)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to bind (default: auto-allocated)")
	cmd.Flags().IntVar(&httpPort, "http-port", 0, "secondary port for clickhouse/qdrant (default: auto-allocated)")
	cmd.Flags().StringVarP(&user, "user", "u", "", "database user")
	cmd.Flags().StringVar(&password, "password", "", "database password")
	cmd.Flags().StringVarP(&database, "database", "d", "", "default database name")
	cmd.Flags().StringVar(&binDir, "bin-dir", "", "directory holding the engine binaries (default: from config, else PATH)")
	cmd.Flags().StringVar(&filePath, "file", "", "backing file path for file-based engines")
	_ = cmd.MarkFlagRequired("engine")

	return cmd
}
