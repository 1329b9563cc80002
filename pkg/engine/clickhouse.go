package engine

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// clickhouseEngine drives a local ClickHouse server through the multi-call
// clickhouse binary. ClickHouse speaks two protocols at once: the native TCP
// protocol on the primary port and HTTP on the secondary port, which also
// serves the /ping health endpoint.
type clickhouseEngine struct {
	baseServer
}

func newClickHouse() *clickhouseEngine {
	return &clickhouseEngine{baseServer{
		kind:         KindClickHouse,
		serverBinary: "clickhouse",
		clientBinary: "clickhouse",
	}}
}

func (e *clickhouseEngine) Start(ctx context.Context, cfg Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	args := []string{
		"server",
		"--",
		"--path=" + cfg.DataDir,
		"--tcp_port=" + strconv.Itoa(cfg.Port),
		"--http_port=" + strconv.Itoa(cfg.HTTPPort),
		"--listen_host=127.0.0.1",
	}
	return e.startServer(ctx, cfg, args, e.Ready(cfg))
}

func (e *clickhouseEngine) Stop(_ context.Context, cfg Config) error {
	return e.stopServer(cfg)
}

func (e *clickhouseEngine) ConnectionString(cfg Config, database string) string {
	if database == "" {
		database = cfg.Database
	}
	if database == "" {
		database = "default"
	}
	u := url.URL{Scheme: "clickhouse", Host: cfg.Address(), Path: "/" + database}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	return u.String()
}

func (e *clickhouseEngine) clientArgs(cfg Config) []string {
	args := []string{"client", "--host", "127.0.0.1", "--port", strconv.Itoa(cfg.Port)}
	if cfg.User != "" {
		args = append(args, "--user", cfg.User)
	}
	if cfg.Password != "" {
		args = append(args, "--password", cfg.Password)
	}
	return args
}

func (e *clickhouseEngine) RunCommand(ctx context.Context, cfg Config, args []string) (CommandResult, error) {
	return e.runClient(ctx, cfg, append(e.clientArgs(cfg), args...))
}

func (e *clickhouseEngine) RunCommandStreaming(ctx context.Context, cfg Config, args []string) (int, error) {
	return e.runClientStreaming(ctx, cfg, append(e.clientArgs(cfg), args...))
}

// Ready probes the HTTP /ping endpoint, which only answers Ok. once the
// server finished loading metadata.
func (e *clickhouseEngine) Ready(cfg Config) Probe {
	return HTTPProbe{URL: fmt.Sprintf("http://127.0.0.1:%d/ping", cfg.HTTPPort)}
}

func (e *clickhouseEngine) ServerVersion(ctx context.Context, cfg Config) (string, error) {
	res, err := e.runClient(ctx, cfg, append(e.clientArgs(cfg), "--query", "SELECT version()"))
	if err != nil {
		return "", err
	}
	if res.Status != 0 {
		return "", fmt.Errorf("version query failed: %s", strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Dump exports through BACKUP DATABASE, ClickHouse's native portable dump.
// The source must be reachable with the clickhouse client.
func (e *clickhouseEngine) Dump(ctx context.Context, source, database, outFile string) error {
	u, err := url.Parse(source)
	if err != nil {
		return NewValidationError("malformed source URL", err)
	}
	db := database
	if db == "" {
		db = strings.TrimPrefix(u.Path, "/")
	}
	if db == "" {
		db = "default"
	}
	args := []string{"client", "--host", u.Hostname(), "--port", u.Port()}
	if u.User != nil {
		args = append(args, "--user", u.User.Username())
		if pass, ok := u.User.Password(); ok {
			args = append(args, "--password", pass)
		}
	}
	query := fmt.Sprintf("BACKUP DATABASE %s TO File('%s')", backquoteIdent(db), outFile)
	return e.runTool(ctx, Config{}, e.serverBinary, append(args, "--query", query))
}

func (e *clickhouseEngine) Restore(ctx context.Context, cfg Config, _, database, dumpFile string) error {
	query := fmt.Sprintf("RESTORE DATABASE AS %s FROM File('%s')", backquoteIdent(database), dumpFile)
	return e.runTool(ctx, cfg, e.serverBinary, append(e.clientArgs(cfg), "--query", query))
}

// CopyDatabase chains BACKUP and RESTORE AS through a temporary location.
func (e *clickhouseEngine) CopyDatabase(ctx context.Context, cfg Config, from, to string) error {
	tmpDir, err := os.MkdirTemp("", "dbnest-copy-")
	if err != nil {
		return fmt.Errorf("failed to create temp backup dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	backup := tmpDir + "/backup"
	query := fmt.Sprintf("BACKUP DATABASE %s TO File('%s')", backquoteIdent(from), backup)
	if err := e.runTool(ctx, cfg, e.serverBinary, append(e.clientArgs(cfg), "--query", query)); err != nil {
		return err
	}
	return e.Restore(ctx, cfg, from, to, backup)
}
