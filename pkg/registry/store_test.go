package registry

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbnest/dbnest/pkg/engine"
)

// setupTestStore creates a migrated store backed by a temp file.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	store, err := NewStore(StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testContainer(name string, kind engine.Kind, port int) *engine.Container {
	now := time.Now()
	return &engine.Container{
		Config: engine.Config{
			Name: name,
			Kind: kind,
			Port: port,
			Host: "127.0.0.1",
		},
		Status:    engine.StatusStopped,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStoreContainerRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	c := testContainer("mydb", engine.KindPostgres, 5432)
	c.User = "alice"
	c.Database = "app"
	if err := store.CreateContainer(ctx, c); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := store.GetContainer(ctx, "mydb")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Kind != engine.KindPostgres || got.Port != 5432 || got.User != "alice" || got.Database != "app" {
		t.Errorf("round trip mismatch: %+v", got.Config)
	}
}

func TestStoreGetAbsent(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetContainer(context.Background(), "ghost")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestStoreUpdate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	c := testContainer("mydb", engine.KindRedis, 6379)
	if err := store.CreateContainer(ctx, c); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	c.Port = 6380
	c.Status = engine.StatusRunning
	if err := store.UpdateContainer(ctx, c); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := store.GetContainer(ctx, "mydb")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Port != 6380 || got.Status != engine.StatusRunning {
		t.Errorf("update not persisted: port=%d status=%s", got.Port, got.Status)
	}

	if err := store.UpdateContainer(ctx, testContainer("ghost", engine.KindRedis, 1)); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("updating an absent container should report sql.ErrNoRows, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.CreateContainer(ctx, testContainer("mydb", engine.KindRedis, 6379)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.DeleteContainer(ctx, "mydb"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.DeleteContainer(ctx, "mydb"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("double delete should report sql.ErrNoRows, got %v", err)
	}
}

func TestStoreFilePathIndex(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	c := testContainer("local", engine.KindSQLite, 0)
	if err := store.CreateContainer(ctx, c); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.SetFilePath(ctx, "local", "/tmp/local.db"); err != nil {
		t.Fatalf("set file path failed: %v", err)
	}

	got, err := store.GetContainer(ctx, "local")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.FilePath != "/tmp/local.db" {
		t.Errorf("file path = %q, want /tmp/local.db", got.FilePath)
	}

	// The index row cascades with the container.
	if err := store.DeleteContainer(ctx, "local"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	path, err := store.GetFilePath(ctx, "local")
	if err != nil {
		t.Fatalf("get file path failed: %v", err)
	}
	if path != "" {
		t.Errorf("file path survived container deletion: %q", path)
	}
}

func TestStoreReservedPorts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.CreateContainer(ctx, testContainer("a", engine.KindPostgres, 5432)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	ch := testContainer("b", engine.KindClickHouse, 9000)
	ch.HTTPPort = 8123
	if err := store.CreateContainer(ctx, ch); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	reserved, err := store.ReservedPorts(ctx)
	if err != nil {
		t.Fatalf("reserved ports failed: %v", err)
	}
	for _, port := range []int{5432, 9000, 8123} {
		if !reserved[port] {
			t.Errorf("port %d missing from reserved set", port)
		}
	}
	if reserved[0] {
		t.Error("zero port must never be reserved")
	}
}
