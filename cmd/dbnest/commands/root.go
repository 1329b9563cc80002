package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbnest/dbnest/pkg/config"
	"github.com/dbnest/dbnest/pkg/ports"
	"github.com/dbnest/dbnest/pkg/registry"
	"github.com/dbnest/dbnest/pkg/telemetry"
)

var (
	// Global flags
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dbnest",
		Short: "dbnest - Local database instance manager",
		Long: `dbnest provisions, starts, stops, clones, and syncs local database
server instances ("containers") across heterogeneous engines from one
control surface.

Supported engines: postgres, mysql, mariadb, redis, valkey, mongodb,
clickhouse, qdrant, sqlite, duckdb.

Each container wraps one native server process (or a file, for sqlite and
duckdb) bound to a local port, with persisted metadata describing how to
reach and manage it.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "info"
			if verbose {
				level = "debug"
			}
			telemetry.Configure(telemetry.LoggingConfig{Level: level, JSON: jsonOutput})
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newCreateCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newStartCommand())
	rootCmd.AddCommand(newStopCommand())
	rootCmd.AddCommand(newCloneCommand())
	rootCmd.AddCommand(newConnectCommand())
	rootCmd.AddCommand(newPullCommand())
	rootCmd.AddCommand(newRemoveCommand())
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}

// app bundles the wired components every command needs.
type app struct {
	cfg   *config.Config
	store *registry.Store
	reg   *registry.Registry
}

// openApp loads the config and opens the metadata store, running any pending
// migrations.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := registry.NewStore(registry.StoreConfig{Path: cfg.StorePath})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	alloc := &ports.Allocator{Start: cfg.PortRangeStart, End: cfg.PortRangeEnd}
	return &app{
		cfg:   cfg,
		store: store,
		reg:   registry.New(store, alloc, cfg.DataDir),
	}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
}

// printJSON renders v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
