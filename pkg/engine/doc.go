// Package engine defines the capability contract every supported database
// engine implements, plus the per-engine adapters that drive native server
// binaries through one uniform surface.
//
// # Overview
//
// dbnest manages local database instances ("containers") across a closed set
// of heterogeneous engines: relational servers (postgres, mysql, mariadb),
// key-value stores (redis, valkey), a document store (mongodb), an analytical
// server (clickhouse), a vector store (qdrant), and two file-based engines
// (sqlite, duckdb). Each adapter knows how to launch its server, render
// connection strings, execute client commands, and probe readiness.
//
// # Engine Contract
//
// All adapters implement the Engine interface:
//
//	type Engine interface {
//	    Kind() Kind
//	    Start(ctx context.Context, cfg Config) error
//	    Stop(ctx context.Context, cfg Config) error
//	    ConnectionString(cfg Config, database string) string
//	    RunCommand(ctx context.Context, cfg Config, args []string) (CommandResult, error)
//	    RunCommandStreaming(ctx context.Context, cfg Config, args []string) (int, error)
//	    Ready(cfg Config) Probe
//	}
//
// Adapters are resolved once by kind through New; the engine set is fixed, so
// dispatch is a closed factory switch rather than runtime plugin registration.
//
// # Readiness
//
// A bound port does not imply a server accepts queries, so readiness is a
// first-class, engine-supplied probe (TCP connect, HTTP health endpoint, or a
// client no-op command) polled by WaitForReady with a bounded attempt count.
// Exhaustion returns false rather than an error; callers decide whether a
// timeout is fatal.
//
// # Error Classification
//
// Failures carry a classification (not_found, conflict, start_failure,
// validation, incompatible_version) inspectable via the Is* helpers. Start
// failures additionally carry the captured process output and, when a known
// pattern matches, an actionable remediation hint.
package engine
