package engine

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// mysqlEngine drives MySQL-family servers. MariaDB ships the same tool
// surface under renamed binaries, so both adapters share this struct and
// differ only in binary names and URI scheme.
type mysqlEngine struct {
	baseServer
	adminBinary string
	dumpBinary  string
	scheme      string

	// installBinary, when set, names a dedicated datadir bootstrap tool
	// (mariadb-install-db); empty means mysqld --initialize-insecure.
	installBinary string
}

func newMySQL() *mysqlEngine {
	return &mysqlEngine{
		baseServer:  baseServer{kind: KindMySQL, serverBinary: "mysqld", clientBinary: "mysql"},
		adminBinary: "mysqladmin",
		dumpBinary:  "mysqldump",
		scheme:      "mysql",
	}
}

func (e *mysqlEngine) Start(ctx context.Context, cfg Config) error {
	if err := e.initDataDir(ctx, cfg); err != nil {
		return err
	}
	args := []string{
		"--datadir=" + cfg.DataDir,
		"--port=" + strconv.Itoa(cfg.Port),
		"--bind-address=127.0.0.1",
		"--socket=" + filepath.Join(cfg.DataDir, "mysql.sock"),
		"--pid-file=" + filepath.Join(cfg.DataDir, "mysqld-server.pid"),
	}
	return e.startServer(ctx, cfg, args, e.Ready(cfg))
}

func (e *mysqlEngine) initDataDir(ctx context.Context, cfg Config) error {
	if fileExists(filepath.Join(cfg.DataDir, "ibdata1")) || fileExists(filepath.Join(cfg.DataDir, "mysql", "db.opt")) {
		return nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if e.installBinary != "" {
		return e.runTool(ctx, cfg, e.installBinary, []string{
			"--datadir=" + cfg.DataDir,
			"--auth-root-authentication-method=normal",
		})
	}
	return e.runTool(ctx, cfg, e.serverBinary, []string{
		"--initialize-insecure",
		"--datadir=" + cfg.DataDir,
	})
}

func (e *mysqlEngine) Stop(_ context.Context, cfg Config) error {
	return e.stopServer(cfg)
}

func (e *mysqlEngine) ConnectionString(cfg Config, database string) string {
	if database == "" {
		database = cfg.Database
	}
	u := url.URL{Scheme: e.scheme, Host: cfg.Address()}
	if database != "" {
		u.Path = "/" + database
	}
	user := cfg.User
	if user == "" {
		user = "root"
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(user, cfg.Password)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

// clientArgs renders the host/port/credential flags shared by every
// MySQL-family tool invocation.
func (e *mysqlEngine) clientArgs(cfg Config) []string {
	user := cfg.User
	if user == "" {
		user = "root"
	}
	args := []string{
		"--host=127.0.0.1",
		"--port=" + strconv.Itoa(cfg.Port),
		"--user=" + user,
		"--protocol=TCP",
	}
	if cfg.Password != "" {
		args = append(args, "--password="+cfg.Password)
	}
	return args
}

func (e *mysqlEngine) RunCommand(ctx context.Context, cfg Config, args []string) (CommandResult, error) {
	return e.runClient(ctx, cfg, append(e.clientArgs(cfg), args...))
}

func (e *mysqlEngine) RunCommandStreaming(ctx context.Context, cfg Config, args []string) (int, error) {
	return e.runClientStreaming(ctx, cfg, append(e.clientArgs(cfg), args...))
}

// Ready pings through the admin tool; mysqld accepts TCP connections while
// still replaying redo logs, so a bare connect is not enough.
func (e *mysqlEngine) Ready(cfg Config) Probe {
	return CommandProbe{
		Label: fmt.Sprintf("%s ping %s", e.adminBinary, cfg.Address()),
		Run: func(ctx context.Context) bool {
			err := e.runTool(ctx, cfg, e.adminBinary, append(e.clientArgs(cfg), "ping"))
			return err == nil
		},
	}
}

func (e *mysqlEngine) ServerVersion(ctx context.Context, cfg Config) (string, error) {
	res, err := e.runClient(ctx, cfg, append(e.clientArgs(cfg), "--silent", "--skip-column-names", "-e", "SELECT VERSION()"))
	if err != nil {
		return "", err
	}
	if res.Status != 0 {
		return "", fmt.Errorf("version query failed: %s", strings.TrimSpace(res.Stderr))
	}
	// MariaDB reports strings like "11.4.2-MariaDB"; keep the numeric lead.
	v := strings.TrimSpace(res.Stdout)
	if i := strings.IndexByte(v, '-'); i > 0 {
		v = v[:i]
	}
	return v, nil
}

func (e *mysqlEngine) Dump(ctx context.Context, source, database, outFile string) error {
	u, err := url.Parse(source)
	if err != nil {
		return NewValidationError("malformed source URL", err)
	}
	db := database
	if db == "" {
		db = strings.TrimPrefix(u.Path, "/")
	}
	if db == "" {
		return NewValidationError("source URL does not name a database", nil)
	}
	args := []string{
		"--host=" + u.Hostname(),
		"--port=" + u.Port(),
		"--protocol=TCP",
		"--result-file=" + outFile,
	}
	if u.User != nil {
		args = append(args, "--user="+u.User.Username())
		if pass, ok := u.User.Password(); ok {
			args = append(args, "--password="+pass)
		}
	}
	return e.runTool(ctx, Config{}, e.dumpBinary, append(args, db))
}

func (e *mysqlEngine) Restore(ctx context.Context, cfg Config, _, database, dumpFile string) error {
	createArgs := append(e.clientArgs(cfg), "-e", fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", backquoteIdent(database)))
	if err := e.runTool(ctx, cfg, e.clientBinary, createArgs); err != nil {
		return err
	}
	restoreArgs := append(e.clientArgs(cfg), database, "-e", fmt.Sprintf("source %s", dumpFile))
	return e.runTool(ctx, cfg, e.clientBinary, restoreArgs)
}

// CopyDatabase has no native MySQL statement, so it round-trips through a
// temporary dump file.
func (e *mysqlEngine) CopyDatabase(ctx context.Context, cfg Config, from, to string) error {
	tmp, err := os.CreateTemp("", "dbnest-copy-*.sql")
	if err != nil {
		return fmt.Errorf("failed to create temp dump: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	dumpArgs := append(e.clientArgs(cfg), "--result-file="+tmpPath, from)
	if err := e.runTool(ctx, cfg, e.dumpBinary, dumpArgs); err != nil {
		return err
	}
	return e.Restore(ctx, cfg, from, to, tmpPath)
}

// backquoteIdent quotes a MySQL identifier, escaping embedded backquotes.
func backquoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
