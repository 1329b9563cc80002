package engine

import (
	"fmt"
	"time"
)

// Kind identifies a supported database engine.
type Kind string

const (
	KindPostgres   Kind = "postgres"
	KindMySQL      Kind = "mysql"
	KindMariaDB    Kind = "mariadb"
	KindRedis      Kind = "redis"
	KindValkey     Kind = "valkey"
	KindMongoDB    Kind = "mongodb"
	KindClickHouse Kind = "clickhouse"
	KindQdrant     Kind = "qdrant"
	KindSQLite     Kind = "sqlite"
	KindDuckDB     Kind = "duckdb"
)

// Kinds lists every supported engine kind in display order.
var Kinds = []Kind{
	KindPostgres,
	KindMySQL,
	KindMariaDB,
	KindRedis,
	KindValkey,
	KindMongoDB,
	KindClickHouse,
	KindQdrant,
	KindSQLite,
	KindDuckDB,
}

// ParseKind converts a user-supplied string into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", NewValidationError(fmt.Sprintf("unknown engine kind: %q", s), nil)
}

// IsFileBased reports whether the kind is backed by a file path instead of a
// server process bound to a TCP port.
func (k Kind) IsFileBased() bool {
	return k == KindSQLite || k == KindDuckDB
}

// RestoresOffline reports whether the kind's restore swaps an on-disk
// snapshot the server only reads at startup. The instance must be stopped
// around the restore step and restarted afterwards.
func (k Kind) RestoresOffline() bool {
	return k == KindRedis || k == KindValkey
}

// Status is the cached lifecycle state persisted with a container. The
// authoritative answer always comes from the process supervisor; this value is
// refreshed on every transition.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
)

// Config is the subset of container metadata an engine needs to act on an
// instance. It is passed by value; engines must not mutate it. Any derived
// change (such as a reassigned port) flows back through the registry.
type Config struct {
	// Name is the container name, unique across all engines.
	Name string `json:"name" validate:"required"`

	// Kind is the engine kind backing this container.
	Kind Kind `json:"kind" validate:"required"`

	// Port is the primary TCP port. Zero for file-based engines.
	Port int `json:"port,omitempty"`

	// HTTPPort is a secondary port for engines speaking two protocols
	// (ClickHouse HTTP interface, Qdrant gRPC).
	HTTPPort int `json:"http_port,omitempty"`

	// Host is the bind address, 127.0.0.1 unless overridden.
	Host string `json:"host,omitempty"`

	// DataDir is the server engine's data directory.
	DataDir string `json:"data_dir,omitempty"`

	// FilePath is the database file location for file-based engines.
	FilePath string `json:"file_path,omitempty"`

	// User and Password are the instance credentials, where the engine has any.
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`

	// Database is the default database name.
	Database string `json:"database,omitempty"`

	// BinDir overrides the directory the engine's binaries are looked up in.
	// Empty means PATH lookup.
	BinDir string `json:"bin_dir,omitempty"`
}

// Address returns the host:port pair for the primary protocol.
func (c Config) Address() string {
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

// CommandResult captures a finished client-binary invocation. A non-zero
// Status is not itself an error at this layer; callers decide.
type CommandResult struct {
	Status int    `json:"status"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Container is the persisted record describing one managed instance.
type Container struct {
	Config

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
