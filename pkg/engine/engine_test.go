package engine

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseKind(t *testing.T) {
	for _, kind := range Kinds {
		got, err := ParseKind(string(kind))
		if err != nil {
			t.Errorf("ParseKind(%q) failed: %v", kind, err)
		}
		if got != kind {
			t.Errorf("ParseKind(%q) = %q", kind, got)
		}
	}

	if _, err := ParseKind("dbase"); !IsValidation(err) {
		t.Errorf("unknown kind should be a validation error, got %v", err)
	}
}

func TestNewCoversAllKinds(t *testing.T) {
	for _, kind := range Kinds {
		eng, err := New(kind)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", kind, err)
		}
		if eng.Kind() != kind {
			t.Errorf("New(%q).Kind() = %q", kind, eng.Kind())
		}
	}

	if _, err := New(Kind("dbase")); err == nil {
		t.Error("New should reject unknown kinds")
	}
}

func TestIsFileBased(t *testing.T) {
	fileBased := map[Kind]bool{KindSQLite: true, KindDuckDB: true}
	for _, kind := range Kinds {
		if got := kind.IsFileBased(); got != fileBased[kind] {
			t.Errorf("%s.IsFileBased() = %v, want %v", kind, got, fileBased[kind])
		}
	}
}

func TestRestoresOffline(t *testing.T) {
	offline := map[Kind]bool{KindRedis: true, KindValkey: true}
	for _, kind := range Kinds {
		if got := kind.RestoresOffline(); got != offline[kind] {
			t.Errorf("%s.RestoresOffline() = %v, want %v", kind, got, offline[kind])
		}
	}
}

func TestRedisRestore(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	dumpFile := filepath.Join(t.TempDir(), "pull.dump")
	if err := os.WriteFile(dumpFile, []byte("REDIS0011"), 0o644); err != nil {
		t.Fatalf("failed to write dump: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	cfg := Config{Name: "cache", Kind: KindRedis, Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port, DataDir: dataDir}

	// A live port means the server would never pick up the swapped file.
	if err := newRedis().Restore(ctx, cfg, "", "", dumpFile); !IsConflict(err) {
		t.Fatalf("restore against a live port should conflict, got %v", err)
	}
	_ = ln.Close()

	if err := newRedis().Restore(ctx, cfg, "", "", dumpFile); err != nil {
		t.Fatalf("restore with the port dark failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dataDir, "dump.rdb"))
	if err != nil {
		t.Fatalf("snapshot not installed: %v", err)
	}
	if string(got) != "REDIS0011" {
		t.Errorf("installed snapshot = %q, want dump contents", got)
	}
}

func TestMongoRestoreNamespaceRemap(t *testing.T) {
	cfg := Config{Name: "docs", Kind: KindMongoDB, Host: "127.0.0.1", Port: 27017}
	args := newMongoDB().restoreArgs(cfg, "app", "app_20260129_143052", "/tmp/pull.dump")

	var nsFrom, nsTo string
	for _, arg := range args {
		if v, ok := strings.CutPrefix(arg, "--nsFrom="); ok {
			nsFrom = v
		}
		if v, ok := strings.CutPrefix(arg, "--nsTo="); ok {
			nsTo = v
		}
	}
	if nsFrom != "app.*" {
		t.Errorf("nsFrom = %q, want the dumped database name", nsFrom)
	}
	if nsTo != "app_20260129_143052.*" {
		t.Errorf("nsTo = %q, want the target database name", nsTo)
	}
	// mongorestore rejects the remap when the patterns disagree on
	// asterisk count.
	if strings.Count(nsFrom, "*") != strings.Count(nsTo, "*") {
		t.Errorf("asterisk count mismatch: nsFrom=%q nsTo=%q", nsFrom, nsTo)
	}
}

func TestConnectionString(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		cfg      Config
		database string
		want     string
	}{
		{
			name: "postgres with credentials",
			kind: KindPostgres,
			cfg:  Config{Host: "127.0.0.1", Port: 5432, User: "alice", Password: "pw", Database: "app"},
			want: "postgresql://alice:pw@127.0.0.1:5432/app",
		},
		{
			name: "postgres defaults database",
			kind: KindPostgres,
			cfg:  Config{Host: "127.0.0.1", Port: 5432},
			want: "postgresql://127.0.0.1:5432/postgres",
		},
		{
			name:     "postgres database override",
			kind:     KindPostgres,
			cfg:      Config{Host: "127.0.0.1", Port: 5432, Database: "app"},
			database: "other",
			want:     "postgresql://127.0.0.1:5432/other",
		},
		{
			name: "mysql defaults root user",
			kind: KindMySQL,
			cfg:  Config{Host: "127.0.0.1", Port: 3306, Database: "app"},
			want: "mysql://root@127.0.0.1:3306/app",
		},
		{
			name: "mariadb scheme",
			kind: KindMariaDB,
			cfg:  Config{Host: "127.0.0.1", Port: 3307, User: "alice", Database: "app"},
			want: "mariadb://alice@127.0.0.1:3307/app",
		},
		{
			name: "redis with password",
			kind: KindRedis,
			cfg:  Config{Host: "127.0.0.1", Port: 6379, Password: "pw"},
			want: "redis://default:pw@127.0.0.1:6379/0",
		},
		{
			name: "valkey scheme",
			kind: KindValkey,
			cfg:  Config{Host: "127.0.0.1", Port: 6380},
			want: "valkey://127.0.0.1:6380/0",
		},
		{
			name: "mongodb without database",
			kind: KindMongoDB,
			cfg:  Config{Host: "127.0.0.1", Port: 27017},
			want: "mongodb://127.0.0.1:27017",
		},
		{
			name: "clickhouse defaults database",
			kind: KindClickHouse,
			cfg:  Config{Host: "127.0.0.1", Port: 9000},
			want: "clickhouse://127.0.0.1:9000/default",
		},
		{
			name:     "qdrant collection URL",
			kind:     KindQdrant,
			cfg:      Config{Host: "127.0.0.1", Port: 6333},
			database: "vectors",
			want:     "http://127.0.0.1:6333/collections/vectors",
		},
		{
			name: "sqlite is the file path",
			kind: KindSQLite,
			cfg:  Config{FilePath: "/data/local.db"},
			want: "/data/local.db",
		},
		{
			name: "duckdb is the file path",
			kind: KindDuckDB,
			cfg:  Config{FilePath: "/data/local.duckdb"},
			want: "/data/local.duckdb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, err := New(tt.kind)
			if err != nil {
				t.Fatalf("New(%q) failed: %v", tt.kind, err)
			}
			if got := eng.ConnectionString(tt.cfg, tt.database); got != tt.want {
				t.Errorf("ConnectionString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	err := NewStartFailureError("postgres failed to start", "dyld: Library not loaded", "install openssl", nil).
		WithContainer("mydb").WithOperation("start")

	if !IsStartFailure(err) {
		t.Error("expected start-failure class")
	}
	if IsNotFound(err) {
		t.Error("start failure must not match not-found")
	}

	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("expected *Error")
	}
	if e.Container != "mydb" || e.Operation != "start" {
		t.Errorf("context dropped: container=%q operation=%q", e.Container, e.Operation)
	}
	if e.Output == "" || e.Remediation == "" {
		t.Error("start failure must carry output and remediation")
	}
}
