package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Engine is the uniform capability surface hiding each database engine's
// launch command, wire protocol, and client tooling. One adapter exists per
// Kind; all receive Config by value and must not mutate it.
type Engine interface {
	// Kind returns the engine kind this adapter drives.
	Kind() Kind

	// Start launches the native server process (or validates the backing
	// file, for file-based engines) and blocks until the readiness probe
	// succeeds or the bounded attempt budget is exhausted. A failure
	// carries captured process output for downstream classification. A
	// readiness timeout leaves the process as-is; there is no rollback.
	Start(ctx context.Context, cfg Config) error

	// Stop terminates the instance. Idempotent; stopping a stopped
	// instance is a no-op.
	Stop(ctx context.Context, cfg Config) error

	// ConnectionString renders the engine-native locator for the instance,
	// optionally overriding the database. Pure; no side effects.
	ConnectionString(cfg Config, database string) string

	// RunCommand executes a query or script against a running instance
	// using the engine's client binary, capturing output. A non-zero exit
	// status is reported in the result, not as an error.
	RunCommand(ctx context.Context, cfg Config, args []string) (CommandResult, error)

	// RunCommandStreaming executes the client binary with stdio passed
	// through, for interactive shells and long-running invocations. It
	// returns the process exit code.
	RunCommandStreaming(ctx context.Context, cfg Config, args []string) (int, error)

	// Ready returns the readiness probe for the instance. A bound port is
	// not sufficient for every engine, so each adapter supplies its own
	// predicate.
	Ready(cfg Config) Probe

	// ServerVersion queries the version string of a running instance.
	ServerVersion(ctx context.Context, cfg Config) (string, error)

	// Dump exports a database from source (an engine-native connection URL
	// or file path, local or remote) into outFile.
	Dump(ctx context.Context, source, database, outFile string) error

	// Restore loads a dump produced by Dump into database to on this
	// instance, creating it if needed. from is the database name the dump
	// was taken under; engines whose dump format embeds namespaces use it
	// to remap them onto to.
	Restore(ctx context.Context, cfg Config, from, to, dumpFile string) error

	// CopyDatabase duplicates one database of this instance under a new
	// sibling name, used for pre-overwrite backups and clone-mode pulls.
	CopyDatabase(ctx context.Context, cfg Config, from, to string) error
}

// New resolves the adapter for kind. Dispatch is a closed factory switch:
// the supported engine set is fixed and finite, so there is no runtime
// plugin registration.
func New(kind Kind) (Engine, error) {
	switch kind {
	case KindPostgres:
		return newPostgres(), nil
	case KindMySQL:
		return newMySQL(), nil
	case KindMariaDB:
		return newMariaDB(), nil
	case KindRedis:
		return newRedis(), nil
	case KindValkey:
		return newValkey(), nil
	case KindMongoDB:
		return newMongoDB(), nil
	case KindClickHouse:
		return newClickHouse(), nil
	case KindQdrant:
		return newQdrant(), nil
	case KindSQLite:
		return newSQLite(), nil
	case KindDuckDB:
		return newDuckDB(), nil
	default:
		return nil, NewValidationError(fmt.Sprintf("unknown engine kind: %q", kind), nil)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// copyFile copies src to dst, creating parent directories as needed.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Sync()
}
