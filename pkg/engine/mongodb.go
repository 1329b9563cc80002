package engine

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// mongoEngine drives a local MongoDB server through mongod, mongosh,
// mongodump, and mongorestore.
type mongoEngine struct {
	baseServer
}

func newMongoDB() *mongoEngine {
	return &mongoEngine{baseServer{
		kind:         KindMongoDB,
		serverBinary: "mongod",
		clientBinary: "mongosh",
	}}
}

func (e *mongoEngine) Start(ctx context.Context, cfg Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	args := []string{
		"--dbpath", cfg.DataDir,
		"--port", strconv.Itoa(cfg.Port),
		"--bind_ip", "127.0.0.1",
	}
	return e.startServer(ctx, cfg, args, e.Ready(cfg))
}

func (e *mongoEngine) Stop(_ context.Context, cfg Config) error {
	return e.stopServer(cfg)
}

func (e *mongoEngine) ConnectionString(cfg Config, database string) string {
	if database == "" {
		database = cfg.Database
	}
	u := url.URL{Scheme: "mongodb", Host: cfg.Address()}
	if database != "" {
		u.Path = "/" + database
	}
	if cfg.User != "" && cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}

func (e *mongoEngine) RunCommand(ctx context.Context, cfg Config, args []string) (CommandResult, error) {
	return e.runClient(ctx, cfg, append([]string{e.ConnectionString(cfg, ""), "--quiet"}, args...))
}

func (e *mongoEngine) RunCommandStreaming(ctx context.Context, cfg Config, args []string) (int, error) {
	return e.runClientStreaming(ctx, cfg, append([]string{e.ConnectionString(cfg, "")}, args...))
}

// Ready runs a ping command through mongosh; mongod listens before it can
// serve commands while recovering journal state.
func (e *mongoEngine) Ready(cfg Config) Probe {
	return CommandProbe{
		Label: fmt.Sprintf("mongosh ping %s", cfg.Address()),
		Run: func(ctx context.Context) bool {
			res, err := e.runClient(ctx, cfg, []string{
				e.ConnectionString(cfg, ""), "--quiet", "--eval", "db.runCommand({ping: 1}).ok",
			})
			return err == nil && res.Status == 0 && strings.Contains(res.Stdout, "1")
		},
	}
}

func (e *mongoEngine) ServerVersion(ctx context.Context, cfg Config) (string, error) {
	res, err := e.runClient(ctx, cfg, []string{e.ConnectionString(cfg, ""), "--quiet", "--eval", "db.version()"})
	if err != nil {
		return "", err
	}
	if res.Status != 0 {
		return "", fmt.Errorf("version query failed: %s", strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (e *mongoEngine) Dump(ctx context.Context, source, database, outFile string) error {
	args := []string{"--uri=" + source, "--archive=" + outFile}
	if database != "" {
		args = append(args, "--db="+database)
	}
	return e.runTool(ctx, Config{}, "mongodump", args)
}

// Restore loads an archive, remapping the dumped namespaces into the target
// database so clone-mode pulls land in the sibling rather than the original.
func (e *mongoEngine) Restore(ctx context.Context, cfg Config, from, to, dumpFile string) error {
	return e.runTool(ctx, cfg, "mongorestore", e.restoreArgs(cfg, from, to, dumpFile))
}

// restoreArgs anchors the namespace remap on the dumped database name.
// mongorestore requires nsFrom and nsTo to carry the same number of
// asterisks, so the match pattern cannot be a bare *.*.
func (e *mongoEngine) restoreArgs(cfg Config, from, to, dumpFile string) []string {
	return []string{
		"--uri=" + e.ConnectionString(cfg, ""),
		"--archive=" + dumpFile,
		"--nsFrom=" + from + ".*",
		"--nsTo=" + to + ".*",
		"--drop",
	}
}

// CopyDatabase round-trips through a temporary archive; MongoDB removed the
// server-side copydb command in 4.2.
func (e *mongoEngine) CopyDatabase(ctx context.Context, cfg Config, from, to string) error {
	tmp, err := os.CreateTemp("", "dbnest-copy-*.archive")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := e.Dump(ctx, e.ConnectionString(cfg, ""), from, tmpPath); err != nil {
		return err
	}
	return e.Restore(ctx, cfg, from, to, tmpPath)
}
