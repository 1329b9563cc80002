package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/dbnest/dbnest/pkg/engine"
	"github.com/dbnest/dbnest/pkg/ports"
	"github.com/dbnest/dbnest/pkg/supervisor"
)

// Registry owns the persisted container records and drives lifecycle
// transitions. It is the single writer of metadata; the supervisor owns live
// processes and is the authority on whether a container is actually running.
//
// The metadata store is read-then-written without cross-invocation locking;
// concurrent invocations mutating the same container are outside the
// supported usage.
type Registry struct {
	store    *Store
	alloc    *ports.Allocator
	dataRoot string
	validate *validator.Validate

	// running decides container liveness; replaced in tests.
	running func(c *engine.Container) bool
}

// New builds a registry over an initialized store. dataRoot is the directory
// holding per-container data directories.
func New(store *Store, alloc *ports.Allocator, dataRoot string) *Registry {
	return &Registry{
		store:    store,
		alloc:    alloc,
		dataRoot: dataRoot,
		validate: validator.New(),
		running:  isProcessRunning,
	}
}

// CreateOptions carries the optional settings for a new container.
type CreateOptions struct {
	Port     int `validate:"omitempty,min=1,max=65535"`
	HTTPPort int `validate:"omitempty,min=1,max=65535"`
	User     string
	Password string
	Database string
	BinDir   string
	FilePath string
}

// Create allocates a port (server engines), writes initial metadata, and
// returns the new container with status stopped. Duplicate names conflict
// across all engines, not per engine.
func (r *Registry) Create(ctx context.Context, name string, kind engine.Kind, opts CreateOptions) (*engine.Container, error) {
	if name == "" {
		return nil, engine.NewValidationError("container name is required", nil)
	}
	if err := r.validate.Struct(opts); err != nil {
		return nil, engine.NewValidationError("invalid create options", err)
	}
	if _, err := engine.ParseKind(string(kind)); err != nil {
		return nil, err
	}

	if existing, err := r.store.GetContainer(ctx, name); err == nil && existing != nil {
		return nil, engine.NewConflictError(fmt.Sprintf("container %q already exists", name), nil).WithContainer(name)
	}

	now := time.Now()
	c := &engine.Container{
		Config: engine.Config{
			Name:     name,
			Kind:     kind,
			Host:     "127.0.0.1",
			User:     opts.User,
			Password: opts.Password,
			Database: opts.Database,
			BinDir:   opts.BinDir,
		},
		Status:    engine.StatusStopped,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if kind.IsFileBased() {
		c.FilePath = opts.FilePath
		if c.FilePath == "" {
			c.FilePath = filepath.Join(r.dataRoot, name, name+fileExtension(kind))
		}
	} else {
		c.DataDir = filepath.Join(r.dataRoot, name, "data")
		reserved, err := r.store.ReservedPorts(ctx)
		if err != nil {
			return nil, err
		}
		port, err := r.pickPort(opts.Port, reserved)
		if err != nil {
			return nil, err
		}
		c.Port = port
		reserved[port] = true
		if kind == engine.KindClickHouse || kind == engine.KindQdrant {
			httpPort, err := r.pickPort(opts.HTTPPort, reserved)
			if err != nil {
				return nil, err
			}
			c.HTTPPort = httpPort
		}
	}

	if err := r.store.CreateContainer(ctx, c); err != nil {
		return nil, err
	}
	if kind.IsFileBased() {
		if err := r.store.SetFilePath(ctx, name, c.FilePath); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("container", name).
		Str("kind", string(kind)).
		Int("port", c.Port).
		Msg("Created container")
	return c, nil
}

func (r *Registry) pickPort(requested int, reserved map[int]bool) (int, error) {
	if requested != 0 {
		if reserved[requested] || !ports.IsAvailable(requested) {
			return 0, engine.NewConflictError(fmt.Sprintf("port %d is not available", requested), nil)
		}
		return requested, nil
	}
	port, err := r.alloc.Find(reserved)
	if err != nil {
		return 0, engine.NewConflictError("no free port available", err)
	}
	return port, nil
}

// List returns all containers with their status cache refreshed from the
// supervisor.
func (r *Registry) List(ctx context.Context) ([]*engine.Container, error) {
	containers, err := r.store.ListContainers(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range containers {
		c.Status = r.liveStatus(c)
	}
	return containers, nil
}

// Get returns a container by name, status refreshed from the supervisor.
func (r *Registry) Get(ctx context.Context, name string) (*engine.Container, error) {
	c, err := r.store.GetContainer(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.NewNotFoundError(fmt.Sprintf("container %q not found", name), nil).WithContainer(name)
	}
	if err != nil {
		return nil, err
	}
	c.Status = r.liveStatus(c)
	return c, nil
}

// IsRunning answers container liveness authoritatively: a PID check guarded
// against PID reuse by a command-line signature match. The persisted status
// flag is only a cache and is never consulted.
func (r *Registry) IsRunning(c *engine.Container) bool {
	return r.running(c)
}

func isProcessRunning(c *engine.Container) bool {
	if c.Kind.IsFileBased() {
		return false
	}
	return supervisor.IsPIDLive(engine.PIDFile(c.Config), engine.ProcessSignature(c.Kind))
}

func (r *Registry) liveStatus(c *engine.Container) engine.Status {
	if r.IsRunning(c) {
		return engine.StatusRunning
	}
	return engine.StatusStopped
}

// ConfigPatch is a partial update to a container's persisted config. Nil
// fields are left untouched.
type ConfigPatch struct {
	Port     *int
	HTTPPort *int
	User     *string
	Password *string
	Database *string
	BinDir   *string
	Status   *engine.Status
}

// UpdateConfig applies a partial update and returns the updated container.
func (r *Registry) UpdateConfig(ctx context.Context, name string, patch ConfigPatch) (*engine.Container, error) {
	c, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if patch.Port != nil {
		c.Port = *patch.Port
	}
	if patch.HTTPPort != nil {
		c.HTTPPort = *patch.HTTPPort
	}
	if patch.User != nil {
		c.User = *patch.User
	}
	if patch.Password != nil {
		c.Password = *patch.Password
	}
	if patch.Database != nil {
		c.Database = *patch.Database
	}
	if patch.BinDir != nil {
		c.BinDir = *patch.BinDir
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if err := r.store.UpdateContainer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Start brings a container up. The persisted port is re-validated
// immediately before the spawn, not at config-read time: when an external
// process took it, a fresh port is allocated transparently, persisted, and
// reported, and the start proceeds. Starting a running container is a no-op.
// For file-based engines Start only ensures the backing file exists.
func (r *Registry) Start(ctx context.Context, name string) (*engine.Container, error) {
	c, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(c.Kind)
	if err != nil {
		return nil, err
	}

	if !c.Kind.IsFileBased() {
		if r.IsRunning(c) {
			log.Info().Str("container", name).Msg("Container already running")
			return c, nil
		}
		if err := r.resolvePortConflicts(ctx, c); err != nil {
			return nil, err
		}
	}

	if err := eng.Start(ctx, c.Config); err != nil {
		return nil, err
	}

	// File-based engines have no process; their status cache stays
	// stopped so it agrees with the liveness check.
	if !c.Kind.IsFileBased() {
		c.Status = engine.StatusRunning
		if err := r.store.UpdateContainer(ctx, c); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("container", name).
		Str("kind", string(c.Kind)).
		Int("port", c.Port).
		Msg("Container started")
	return c, nil
}

// resolvePortConflicts reallocates any persisted port an external process
// now holds, persisting the move before the spawn.
func (r *Registry) resolvePortConflicts(ctx context.Context, c *engine.Container) error {
	moved := false
	reserved, err := r.store.ReservedPorts(ctx)
	if err != nil {
		return err
	}

	if !ports.IsAvailable(c.Port) {
		port, err := r.alloc.Find(reserved)
		if err != nil {
			return engine.NewConflictError("no free port available", err).WithContainer(c.Name)
		}
		log.Warn().
			Str("container", c.Name).
			Int("old_port", c.Port).
			Int("new_port", port).
			Msg("Persisted port is taken, reassigning")
		c.Port = port
		reserved[port] = true
		moved = true
	}
	if c.HTTPPort != 0 && !ports.IsAvailable(c.HTTPPort) {
		port, err := r.alloc.Find(reserved)
		if err != nil {
			return engine.NewConflictError("no free port available", err).WithContainer(c.Name)
		}
		log.Warn().
			Str("container", c.Name).
			Int("old_port", c.HTTPPort).
			Int("new_port", port).
			Msg("Persisted secondary port is taken, reassigning")
		c.HTTPPort = port
		moved = true
	}

	if moved {
		return r.store.UpdateContainer(ctx, c)
	}
	return nil
}

// Stop takes a container down. Idempotent; stopping a stopped container is
// a no-op.
func (r *Registry) Stop(ctx context.Context, name string) error {
	c, err := r.Get(ctx, name)
	if err != nil {
		return err
	}

	eng, err := engine.New(c.Kind)
	if err != nil {
		return err
	}
	if err := eng.Stop(ctx, c.Config); err != nil {
		return err
	}

	c.Status = engine.StatusStopped
	if err := r.store.UpdateContainer(ctx, c); err != nil {
		return err
	}
	log.Info().Str("container", name).Msg("Container stopped")
	return nil
}

// Clone duplicates a stopped container's on-disk data and metadata under a
// new name with a freshly allocated port. A running source is refused: a
// live engine's on-disk state is not point-in-time consistent while serving
// traffic.
func (r *Registry) Clone(ctx context.Context, sourceName, targetName string) (*engine.Container, error) {
	source, err := r.Get(ctx, sourceName)
	if err != nil {
		return nil, err
	}
	if r.IsRunning(source) {
		return nil, engine.NewConflictError(
			fmt.Sprintf("container %q is running; stop it before cloning", sourceName), nil).
			WithContainer(sourceName).WithOperation("clone")
	}
	if existing, err := r.store.GetContainer(ctx, targetName); err == nil && existing != nil {
		return nil, engine.NewConflictError(fmt.Sprintf("container %q already exists", targetName), nil).WithContainer(targetName)
	}

	target, err := r.Create(ctx, targetName, source.Kind, CreateOptions{
		User:     source.User,
		Password: source.Password,
		Database: source.Database,
		BinDir:   source.BinDir,
	})
	if err != nil {
		return nil, err
	}

	if source.Kind.IsFileBased() {
		if _, statErr := os.Stat(source.FilePath); statErr == nil {
			err = copyFile(source.FilePath, target.FilePath)
		}
	} else if dirExists(source.DataDir) {
		err = copyDir(source.DataDir, target.DataDir)
	}
	if err != nil {
		// Roll the metadata back so a half-clone does not linger.
		_ = r.store.DeleteContainer(ctx, targetName)
		return nil, fmt.Errorf("failed to copy data: %w", err)
	}

	log.Info().
		Str("source", sourceName).
		Str("target", targetName).
		Msg("Cloned container")
	return target, nil
}

// Remove stops a container if needed and deletes its metadata and data.
func (r *Registry) Remove(ctx context.Context, name string, keepData bool) error {
	c, err := r.Get(ctx, name)
	if err != nil {
		return err
	}
	if r.IsRunning(c) {
		if err := r.Stop(ctx, name); err != nil {
			return err
		}
	}
	if err := r.store.DeleteContainer(ctx, name); err != nil {
		return err
	}
	if !keepData {
		if c.Kind.IsFileBased() {
			_ = os.Remove(c.FilePath)
		}
		_ = os.RemoveAll(filepath.Join(r.dataRoot, name))
	}
	log.Info().Str("container", name).Msg("Removed container")
	return nil
}

func fileExtension(kind engine.Kind) string {
	if kind == engine.KindDuckDB {
		return ".duckdb"
	}
	return ".db"
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// copyDir copies a directory tree preserving file modes.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		targetPath := filepath.Join(dst, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(targetPath, info.Mode().Perm())
		}
		if !d.Type().IsRegular() {
			// Sockets and pipes left behind by a stopped server are not
			// part of the dataset.
			return nil
		}
		return copyFile(path, targetPath)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Sync()
}
