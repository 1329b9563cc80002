package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbnest/dbnest/pkg/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the tool configuration",
		Long: `Inspect and edit the dbnest configuration file.

The config covers the data root, the metadata store location, the port
allocation range, and per-engine binary directories for engines that are
not on PATH.`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigDetectCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())
	cmd.AddCommand(newConfigPathCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cfg)
			}
			out, err := cfg.Render()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

func newConfigDetectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Detect engine binaries on PATH",
		Long: `Scan PATH for known engine binaries and record the directory of each
hit in the config. Engines with an explicitly configured bin_dir are left
untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			found := cfg.Detect()
			if err := cfg.Save(); err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(found)
			}
			if len(found) == 0 {
				fmt.Println("No engine binaries found on PATH")
				return nil
			}
			for _, d := range found {
				fmt.Printf("%-12s %s\n", d.Kind, d.Path)
			}
			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Example: `  dbnest config set engines.postgres.bin_dir /opt/postgres/17/bin
  dbnest config set port_range_start 6000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			return cfg.Save()
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Reset a configuration value to its default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Unset(args[0]); err != nil {
				return err
			}
			return cfg.Save()
		},
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(config.Path())
			return nil
		},
	}
}
