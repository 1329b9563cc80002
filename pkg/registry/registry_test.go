package registry

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/dbnest/dbnest/pkg/engine"
	"github.com/dbnest/dbnest/pkg/ports"
)

// setupRegistry builds a registry over a throwaway store with liveness
// stubbed to "everything is stopped".
func setupRegistry(t *testing.T) *Registry {
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

	reg := New(store, ports.NewAllocator(), t.TempDir())
	reg.running = func(*engine.Container) bool { return false }
	return reg
}

func TestCreate(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	c, err := reg.Create(ctx, "mydb", engine.KindPostgres, CreateOptions{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if c.Status != engine.StatusStopped {
		t.Errorf("new container status = %q, want stopped", c.Status)
	}
	if c.Port == 0 {
		t.Error("server engine must get a port allocated")
	}
	if c.DataDir == "" {
		t.Error("server engine must get a data directory")
	}
}

func TestCreateDuplicateName(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, "mydb", engine.KindPostgres, CreateOptions{}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Names are unique across engines, not per engine.
	_, err := reg.Create(ctx, "mydb", engine.KindRedis, CreateOptions{})
	if !engine.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestCreateInvalidKind(t *testing.T) {
	reg := setupRegistry(t)

	_, err := reg.Create(context.Background(), "mydb", engine.Kind("dbase"), CreateOptions{})
	if !engine.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateFileBased(t *testing.T) {
	reg := setupRegistry(t)

	c, err := reg.Create(context.Background(), "local", engine.KindSQLite, CreateOptions{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if c.Port != 0 {
		t.Errorf("file-based engine should not get a port, got %d", c.Port)
	}
	if c.FilePath == "" {
		t.Error("file-based engine must get a backing file path")
	}
}

func TestGetNotFound(t *testing.T) {
	reg := setupRegistry(t)

	_, err := reg.Get(context.Background(), "ghost")
	if !engine.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestCloneRefusesRunningSource(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, "mydb", engine.KindPostgres, CreateOptions{}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	reg.running = func(*engine.Container) bool { return true }

	_, err := reg.Clone(ctx, "mydb", "copy")
	if !engine.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	// The refused clone must leave no target record behind.
	if _, err := reg.Get(ctx, "copy"); !engine.IsNotFound(err) {
		t.Errorf("refused clone left a target record: %v", err)
	}
}

func TestCloneCopiesMetadata(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	src, err := reg.Create(ctx, "mydb", engine.KindPostgres, CreateOptions{
		User:     "alice",
		Database: "app",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	target, err := reg.Clone(ctx, "mydb", "copy")
	if err != nil {
		t.Fatalf("clone failed: %v", err)
	}
	if target.User != "alice" || target.Database != "app" {
		t.Errorf("clone dropped settings: user=%q database=%q", target.User, target.Database)
	}
	if target.Port == src.Port {
		t.Errorf("clone must get a fresh port, both on %d", src.Port)
	}
	if target.DataDir == src.DataDir {
		t.Error("clone must get its own data directory")
	}
}

func TestUpdateConfig(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, "mydb", engine.KindPostgres, CreateOptions{}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	user := "bob"
	c, err := reg.UpdateConfig(ctx, "mydb", ConfigPatch{User: &user})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if c.User != "bob" {
		t.Errorf("user = %q, want bob", c.User)
	}

	got, err := reg.Get(ctx, "mydb")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.User != "bob" {
		t.Errorf("update not persisted, user = %q", got.User)
	}
}

func TestRemove(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, "mydb", engine.KindSQLite, CreateOptions{}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := reg.Remove(ctx, "mydb", false); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := reg.Get(ctx, "mydb"); !engine.IsNotFound(err) {
		t.Fatalf("expected not-found after remove, got %v", err)
	}
}

func TestResolvePortConflicts(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	c, err := reg.Create(ctx, "mydb", engine.KindPostgres, CreateOptions{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	oldPort := c.Port

	// An external process grabs the persisted port between invocations.
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", oldPort))
	if err != nil {
		t.Fatalf("failed to occupy port %d: %v", oldPort, err)
	}
	defer ln.Close()

	if err := reg.resolvePortConflicts(ctx, c); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if c.Port == oldPort {
		t.Fatalf("port %d is taken and should have been reassigned", oldPort)
	}

	got, err := reg.Get(ctx, "mydb")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Port != c.Port {
		t.Errorf("persisted port = %d, want the reassigned %d", got.Port, c.Port)
	}
}

func TestStartFileBased(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, "local", engine.KindSQLite, CreateOptions{}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	c, err := reg.Start(ctx, "local")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := os.Stat(c.FilePath); err != nil {
		t.Fatalf("start must create the backing file: %v", err)
	}

	// No process backs a file engine, so the status cache must agree
	// with the liveness check and stay stopped.
	got, err := reg.Get(ctx, "local")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != engine.StatusStopped {
		t.Errorf("status = %q, want stopped", got.Status)
	}
}

func TestListRefreshesStatus(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, "mydb", engine.KindPostgres, CreateOptions{}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	reg.running = func(*engine.Container) bool { return true }

	containers, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(containers) != 1 {
		t.Fatalf("got %d containers, want 1", len(containers))
	}
	if containers[0].Status != engine.StatusRunning {
		t.Errorf("status = %q, want running", containers[0].Status)
	}
}
