package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// sqliteEngine drives SQLite database files through the sqlite3 shell. There
// is no server process: Start materializes the backing file and every
// operation shells out against it directly.
type sqliteEngine struct {
	baseFile
}

func newSQLite() *sqliteEngine {
	return &sqliteEngine{baseFile{kind: KindSQLite, clientBinary: "sqlite3"}}
}

func (e *sqliteEngine) ConnectionString(cfg Config, _ string) string {
	return cfg.FilePath
}

func (e *sqliteEngine) RunCommand(ctx context.Context, cfg Config, args []string) (CommandResult, error) {
	return runFileClient(ctx, e.baseFile, cfg, append([]string{cfg.FilePath}, args...))
}

func (e *sqliteEngine) RunCommandStreaming(ctx context.Context, cfg Config, args []string) (int, error) {
	return streamFileClient(ctx, e.baseFile, cfg, append([]string{cfg.FilePath}, args...))
}

// ServerVersion reports the client library version, which is the engine
// version for an embedded database.
func (e *sqliteEngine) ServerVersion(ctx context.Context, cfg Config) (string, error) {
	res, err := runFileClient(ctx, e.baseFile, cfg, []string{"--version"})
	if err != nil {
		return "", err
	}
	fields := strings.Fields(res.Stdout)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty version output")
	}
	return fields[0], nil
}

// Dump writes a SQL dump of the source file.
func (e *sqliteEngine) Dump(ctx context.Context, source, _, outFile string) error {
	res, err := runFileClient(ctx, e.baseFile, Config{}, []string{source, ".dump"})
	if err != nil {
		return err
	}
	if res.Status != 0 {
		return fmt.Errorf("sqlite3 dump failed: %s", strings.TrimSpace(res.Stderr))
	}
	return os.WriteFile(outFile, []byte(res.Stdout), 0o644)
}

// Restore replays a SQL dump into the backing file, replacing it.
func (e *sqliteEngine) Restore(ctx context.Context, cfg Config, _, _, dumpFile string) error {
	if fileExists(cfg.FilePath) {
		if err := os.Remove(cfg.FilePath); err != nil {
			return fmt.Errorf("failed to replace database file: %w", err)
		}
	}
	res, err := runFileClient(ctx, e.baseFile, cfg, []string{cfg.FilePath, fmt.Sprintf(".read %s", dumpFile)})
	if err != nil {
		return err
	}
	if res.Status != 0 {
		return fmt.Errorf("sqlite3 restore failed: %s", strings.TrimSpace(res.Stderr))
	}
	return nil
}

// CopyDatabase copies the backing file; for a file engine the database and
// the file are the same thing, so the copy lands next to the original with
// the new name.
func (e *sqliteEngine) CopyDatabase(_ context.Context, cfg Config, _, to string) error {
	return copyFileSibling(cfg.FilePath, to)
}

// runFileClient executes a file-engine client binary with captured output.
func runFileClient(ctx context.Context, b baseFile, cfg Config, args []string) (CommandResult, error) {
	binary, err := b.lookBinary(cfg, b.clientBinary)
	if err != nil {
		return CommandResult{}, err
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	result := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Status = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to run %s: %w", b.clientBinary, err)
	}
	return result, nil
}

// streamFileClient executes a file-engine client binary with stdio passed
// through, which gives the interactive shell.
func streamFileClient(ctx context.Context, b baseFile, cfg Config, args []string) (int, error) {
	binary, err := b.lookBinary(cfg, b.clientBinary)
	if err != nil {
		return -1, err
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("failed to run %s: %w", b.clientBinary, err)
	}
	return 0, nil
}

// copyFileSibling copies path to a sibling file named after the new database
// name, preserving the original extension.
func copyFileSibling(path, name string) error {
	if !fileExists(path) {
		return NewNotFoundError(fmt.Sprintf("database file %s does not exist", path), nil)
	}
	return copyFile(path, filepath.Join(filepath.Dir(path), name+filepath.Ext(path)))
}
