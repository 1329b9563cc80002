package engine

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dbnest/dbnest/pkg/supervisor"
)

// redisEngine drives Redis-protocol servers through redis-server and
// redis-cli. Valkey shares the implementation under its own binary names.
//
// Redis has numbered databases rather than named ones, so the named-database
// operations (Restore, CopyDatabase) act on RDB snapshot files in the data
// directory, with the name as the file stem.
type redisEngine struct {
	baseServer
	scheme string
}

func newRedis() *redisEngine {
	return &redisEngine{
		baseServer: baseServer{kind: KindRedis, serverBinary: "redis-server", clientBinary: "redis-cli"},
		scheme:     "redis",
	}
}

func (e *redisEngine) Start(ctx context.Context, cfg Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	args := []string{
		"--port", strconv.Itoa(cfg.Port),
		"--bind", "127.0.0.1",
		"--dir", cfg.DataDir,
		"--daemonize", "no",
	}
	if cfg.Password != "" {
		args = append(args, "--requirepass", cfg.Password)
	}
	return e.startServer(ctx, cfg, args, e.Ready(cfg))
}

func (e *redisEngine) Stop(_ context.Context, cfg Config) error {
	return e.stopServer(cfg)
}

func (e *redisEngine) ConnectionString(cfg Config, database string) string {
	if database == "" {
		database = "0"
	}
	u := url.URL{Scheme: e.scheme, Host: cfg.Address(), Path: "/" + database}
	if cfg.Password != "" {
		u.User = url.UserPassword("default", cfg.Password)
	}
	return u.String()
}

func (e *redisEngine) clientArgs(cfg Config) []string {
	args := []string{"-h", "127.0.0.1", "-p", strconv.Itoa(cfg.Port)}
	if cfg.Password != "" {
		args = append(args, "-a", cfg.Password)
	}
	return args
}

func (e *redisEngine) RunCommand(ctx context.Context, cfg Config, args []string) (CommandResult, error) {
	return e.runClient(ctx, cfg, append(e.clientArgs(cfg), args...))
}

func (e *redisEngine) RunCommandStreaming(ctx context.Context, cfg Config, args []string) (int, error) {
	return e.runClientStreaming(ctx, cfg, append(e.clientArgs(cfg), args...))
}

// Ready pings through the client; PONG means the server is past loading its
// dataset, which a bare TCP connect cannot tell apart.
func (e *redisEngine) Ready(cfg Config) Probe {
	return CommandProbe{
		Label: fmt.Sprintf("%s ping %s", e.clientBinary, cfg.Address()),
		Run: func(ctx context.Context) bool {
			res, err := e.runClient(ctx, cfg, append(e.clientArgs(cfg), "ping"))
			return err == nil && res.Status == 0 && strings.Contains(res.Stdout, "PONG")
		},
	}
}

func (e *redisEngine) ServerVersion(ctx context.Context, cfg Config) (string, error) {
	res, err := e.runClient(ctx, cfg, append(e.clientArgs(cfg), "INFO", "server"))
	if err != nil {
		return "", err
	}
	if res.Status != 0 {
		return "", fmt.Errorf("version query failed: %s", strings.TrimSpace(res.Stderr))
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		for _, prefix := range []string{"redis_version:", "valkey_version:"} {
			if v, ok := strings.CutPrefix(line, prefix); ok {
				return v, nil
			}
		}
	}
	return "", fmt.Errorf("no version field in INFO server output")
}

// Dump snapshots the remote source into an RDB file via redis-cli --rdb.
func (e *redisEngine) Dump(ctx context.Context, source, _, outFile string) error {
	return e.runTool(ctx, Config{}, e.clientBinary, []string{"-u", source, "--rdb", outFile})
}

// Restore installs an RDB snapshot as the instance's dataset. The server
// only reads its RDB at startup, so a live instance must be stopped first.
func (e *redisEngine) Restore(_ context.Context, cfg Config, _, _, dumpFile string) error {
	if supervisor.IsPortLive(cfg.Address()) {
		return NewConflictError("instance must be stopped before an RDB restore", nil).
			WithContainer(cfg.Name).WithOperation("restore")
	}
	return copyFile(dumpFile, filepath.Join(cfg.DataDir, "dump.rdb"))
}

// CopyDatabase saves the current dataset and keeps an RDB copy under the new
// name in the data directory.
func (e *redisEngine) CopyDatabase(ctx context.Context, cfg Config, _, to string) error {
	if supervisor.IsPortLive(cfg.Address()) {
		res, err := e.runClient(ctx, cfg, append(e.clientArgs(cfg), "SAVE"))
		if err != nil {
			return err
		}
		if res.Status != 0 {
			return fmt.Errorf("SAVE failed: %s", strings.TrimSpace(res.Stderr))
		}
	}
	src := filepath.Join(cfg.DataDir, "dump.rdb")
	if !fileExists(src) {
		return NewNotFoundError("no RDB snapshot to back up", nil).WithContainer(cfg.Name)
	}
	return copyFile(src, filepath.Join(cfg.DataDir, to+".rdb"))
}
