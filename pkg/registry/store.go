package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/dbnest/dbnest/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists container metadata in SQLite, one record per container
// keyed by name.
type Store struct {
	db   *sql.DB
	path string
}

// StoreConfig holds store configuration.
type StoreConfig struct {
	Path string
}

// NewStore creates a store instance. Init must be called before use.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &Store{path: cfg.Path}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *Store) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations from the embedded source.
func (s *Store) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

const containerColumns = "name, kind, port, http_port, host, data_dir, username, password, db_name, bin_dir, status, created_at, updated_at"

// CreateContainer inserts a new container record.
func (s *Store) CreateContainer(ctx context.Context, c *engine.Container) error {
	query := `
		INSERT INTO containers (` + containerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.Name, string(c.Kind), c.Port, c.HTTPPort, c.Host, c.DataDir,
		c.User, c.Password, c.Database, c.BinDir,
		string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create container record: %w", err)
	}
	return nil
}

// GetContainer retrieves a container by name. Absence is reported as
// (nil, sql.ErrNoRows) wrapped; callers translate to the NotFound class.
func (s *Store) GetContainer(ctx context.Context, name string) (*engine.Container, error) {
	query := `SELECT ` + containerColumns + ` FROM containers WHERE name = ?`
	c, err := scanContainer(s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get container: %w", err)
	}

	if c.Kind.IsFileBased() {
		path, err := s.GetFilePath(ctx, name)
		if err != nil {
			return nil, err
		}
		c.FilePath = path
	}
	return c, nil
}

// ListContainers returns every container record ordered by name.
func (s *Store) ListContainers(ctx context.Context) ([]*engine.Container, error) {
	query := `SELECT ` + containerColumns + ` FROM containers ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	defer rows.Close()

	containers := []*engine.Container{}
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan container: %w", err)
		}
		containers = append(containers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate containers: %w", err)
	}

	for _, c := range containers {
		if c.Kind.IsFileBased() {
			path, err := s.GetFilePath(ctx, c.Name)
			if err != nil {
				return nil, err
			}
			c.FilePath = path
		}
	}
	return containers, nil
}

// UpdateContainer rewrites the mutable fields of a container record and
// bumps updated_at.
func (s *Store) UpdateContainer(ctx context.Context, c *engine.Container) error {
	c.UpdatedAt = time.Now()
	query := `
		UPDATE containers
		SET port = ?, http_port = ?, host = ?, data_dir = ?, username = ?,
		    password = ?, db_name = ?, bin_dir = ?, status = ?, updated_at = ?
		WHERE name = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		c.Port, c.HTTPPort, c.Host, c.DataDir, c.User,
		c.Password, c.Database, c.BinDir, string(c.Status), c.UpdatedAt,
		c.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to update container: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteContainer removes a container record; the file-path index row
// cascades.
func (s *Store) DeleteContainer(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM containers WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete container: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetFilePath records the backing file for a file-based container in the
// central index.
func (s *Store) SetFilePath(ctx context.Context, name, path string) error {
	query := `
		INSERT INTO file_paths (container_name, path) VALUES (?, ?)
		ON CONFLICT (container_name) DO UPDATE SET path = excluded.path
	`
	if _, err := s.db.ExecContext(ctx, query, name, path); err != nil {
		return fmt.Errorf("failed to record file path: %w", err)
	}
	return nil
}

// GetFilePath resolves the backing file for a file-based container.
func (s *Store) GetFilePath(ctx context.Context, name string) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx, `SELECT path FROM file_paths WHERE container_name = ?`, name).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get file path: %w", err)
	}
	return path, nil
}

// ReservedPorts returns every port persisted by any container, live or not.
// The allocator skips these to keep stopped containers from stealing each
// other's ports across restarts.
func (s *Store) ReservedPorts(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT port, http_port FROM containers`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reserved ports: %w", err)
	}
	defer rows.Close()

	reserved := map[int]bool{}
	for rows.Next() {
		var port, httpPort int
		if err := rows.Scan(&port, &httpPort); err != nil {
			return nil, fmt.Errorf("failed to scan ports: %w", err)
		}
		if port != 0 {
			reserved[port] = true
		}
		if httpPort != 0 {
			reserved[httpPort] = true
		}
	}
	return reserved, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContainer(row rowScanner) (*engine.Container, error) {
	c := &engine.Container{}
	var kind, status string
	err := row.Scan(
		&c.Name, &kind, &c.Port, &c.HTTPPort, &c.Host, &c.DataDir,
		&c.User, &c.Password, &c.Database, &c.BinDir,
		&status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Kind = engine.Kind(kind)
	c.Status = engine.Status(status)
	return c, nil
}
