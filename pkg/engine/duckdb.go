package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// duckdbEngine drives DuckDB database files through the duckdb shell, the
// second file-based engine alongside sqlite.
type duckdbEngine struct {
	baseFile
}

func newDuckDB() *duckdbEngine {
	return &duckdbEngine{baseFile{kind: KindDuckDB, clientBinary: "duckdb"}}
}

func (e *duckdbEngine) ConnectionString(cfg Config, _ string) string {
	return cfg.FilePath
}

func (e *duckdbEngine) RunCommand(ctx context.Context, cfg Config, args []string) (CommandResult, error) {
	return runFileClient(ctx, e.baseFile, cfg, append([]string{cfg.FilePath}, args...))
}

func (e *duckdbEngine) RunCommandStreaming(ctx context.Context, cfg Config, args []string) (int, error) {
	return streamFileClient(ctx, e.baseFile, cfg, append([]string{cfg.FilePath}, args...))
}

func (e *duckdbEngine) ServerVersion(ctx context.Context, cfg Config) (string, error) {
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

func (e *duckdbEngine) Dump(ctx context.Context, source, _, outFile string) error {
	// EXPORT DATABASE writes schema and data as SQL into a directory; a
	// single-file SQL dump comes from .dump like sqlite.
	res, err := runFileClient(ctx, e.baseFile, Config{}, []string{source, ".dump"})
	if err != nil {
		return err
	}
	if res.Status != 0 {
		return fmt.Errorf("duckdb dump failed: %s", strings.TrimSpace(res.Stderr))
	}
	return os.WriteFile(outFile, []byte(res.Stdout), 0o644)
}

func (e *duckdbEngine) Restore(ctx context.Context, cfg Config, _, _, dumpFile string) error {
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
		return fmt.Errorf("duckdb restore failed: %s", strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (e *duckdbEngine) CopyDatabase(_ context.Context, cfg Config, _, to string) error {
	return copyFileSibling(cfg.FilePath, to)
}
