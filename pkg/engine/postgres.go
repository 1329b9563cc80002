package engine

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// postgresEngine drives a local PostgreSQL server through postgres, initdb,
// pg_isready, psql, and pg_dump.
type postgresEngine struct {
	baseServer
}

func newPostgres() *postgresEngine {
	return &postgresEngine{baseServer{
		kind:         KindPostgres,
		serverBinary: "postgres",
		clientBinary: "psql",
	}}
}

func (e *postgresEngine) Start(ctx context.Context, cfg Config) error {
	if err := e.initDataDir(ctx, cfg); err != nil {
		return err
	}
	args := []string{
		"-D", cfg.DataDir,
		"-p", strconv.Itoa(cfg.Port),
		"-c", "listen_addresses=127.0.0.1",
		"-k", cfg.DataDir,
	}
	return e.startServer(ctx, cfg, args, e.Ready(cfg))
}

// initDataDir runs initdb on first start. A PG_VERSION file marks an
// initialized cluster.
func (e *postgresEngine) initDataDir(ctx context.Context, cfg Config) error {
	if fileExists(cfg.DataDir + "/PG_VERSION") {
		return nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	user := cfg.User
	if user == "" {
		user = "postgres"
	}
	return e.runTool(ctx, cfg, "initdb", []string{"-D", cfg.DataDir, "-U", user, "--auth=trust"})
}

func (e *postgresEngine) Stop(_ context.Context, cfg Config) error {
	return e.stopServer(cfg)
}

func (e *postgresEngine) ConnectionString(cfg Config, database string) string {
	if database == "" {
		database = cfg.Database
	}
	if database == "" {
		database = "postgres"
	}
	u := url.URL{
		Scheme: "postgresql",
		Host:   cfg.Address(),
		Path:   "/" + database,
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	return u.String()
}

func (e *postgresEngine) RunCommand(ctx context.Context, cfg Config, args []string) (CommandResult, error) {
	return e.runClient(ctx, cfg, append([]string{e.ConnectionString(cfg, "")}, args...))
}

func (e *postgresEngine) RunCommandStreaming(ctx context.Context, cfg Config, args []string) (int, error) {
	return e.runClientStreaming(ctx, cfg, append([]string{e.ConnectionString(cfg, "")}, args...))
}

// Ready probes with pg_isready: postgres binds its port before recovery
// completes, so a plain TCP connect is not a sufficient signal.
func (e *postgresEngine) Ready(cfg Config) Probe {
	return CommandProbe{
		Label: fmt.Sprintf("pg_isready %s", cfg.Address()),
		Run: func(ctx context.Context) bool {
			err := e.runTool(ctx, cfg, "pg_isready", []string{"-h", "127.0.0.1", "-p", strconv.Itoa(cfg.Port)})
			return err == nil
		},
	}
}

func (e *postgresEngine) ServerVersion(ctx context.Context, cfg Config) (string, error) {
	res, err := e.runClient(ctx, cfg, []string{e.ConnectionString(cfg, ""), "-t", "-A", "-c", "SHOW server_version"})
	if err != nil {
		return "", err
	}
	if res.Status != 0 {
		return "", fmt.Errorf("version query failed: %s", strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Dump exports via pg_dump. The database argument is only applied when the
// source URL does not already name one in its path.
func (e *postgresEngine) Dump(ctx context.Context, source, database, outFile string) error {
	dbname := source
	if database != "" {
		if u, err := url.Parse(source); err == nil && (u.Path == "" || u.Path == "/") {
			u.Path = "/" + database
			dbname = u.String()
		}
	}
	return e.runTool(ctx, Config{}, "pg_dump", []string{"--dbname=" + dbname, "--no-owner", "--file=" + outFile})
}

func (e *postgresEngine) Restore(ctx context.Context, cfg Config, _, database, dumpFile string) error {
	if err := e.ensureDatabase(ctx, cfg, database); err != nil {
		return err
	}
	return e.runTool(ctx, cfg, "psql", []string{e.ConnectionString(cfg, database), "-v", "ON_ERROR_STOP=1", "-f", dumpFile})
}

func (e *postgresEngine) CopyDatabase(ctx context.Context, cfg Config, from, to string) error {
	quotedFrom := quoteIdent(from)
	quotedTo := quoteIdent(to)
	return e.runTool(ctx, cfg, "psql", []string{
		e.ConnectionString(cfg, "postgres"),
		"-v", "ON_ERROR_STOP=1",
		"-c", fmt.Sprintf("CREATE DATABASE %s TEMPLATE %s", quotedTo, quotedFrom),
	})
}

func (e *postgresEngine) ensureDatabase(ctx context.Context, cfg Config, database string) error {
	res, err := e.runClient(ctx, cfg, []string{
		e.ConnectionString(cfg, "postgres"),
		"-t", "-A", "-c",
		fmt.Sprintf("SELECT 1 FROM pg_database WHERE datname = '%s'", strings.ReplaceAll(database, "'", "''")),
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(res.Stdout) == "1" {
		return nil
	}
	return e.runTool(ctx, cfg, "psql", []string{
		e.ConnectionString(cfg, "postgres"),
		"-c", fmt.Sprintf("CREATE DATABASE %s", quoteIdent(database)),
	})
}

// quoteIdent double-quotes a SQL identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
