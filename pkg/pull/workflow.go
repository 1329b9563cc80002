package pull

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dbnest/dbnest/pkg/engine"
	"github.com/dbnest/dbnest/pkg/registry"
	"github.com/dbnest/dbnest/pkg/version"
)

// Mode is the pull variant: replace overwrites the target database behind a
// mandatory backup, clone restores into a fresh sibling database.
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeClone   Mode = "clone"
)

// backupTimeFormat renders the local clock at second resolution,
// zero-padded, for deterministic backup database names.
const backupTimeFormat = "20060102_150405"

// Request describes one pull operation.
type Request struct {
	// Source is the remote connection URL (or file path, for file-based
	// engines) to pull data from.
	Source string

	// Container is the local target container name.
	Container string

	// Database is the database to pull.
	Database string

	// AsDatabase, when set, switches to clone mode: the pulled data lands
	// in this new sibling database and the original is never touched.
	AsDatabase string

	// NoBackup skips the pre-overwrite backup in replace mode. It is only
	// honored together with Force; either flag alone is rejected. The
	// double flag is deliberate friction against accidental data loss.
	NoBackup bool
	Force    bool

	// DryRun computes and returns the full result without performing any
	// dump, backup, or restore.
	DryRun bool
}

// Result reports what a pull did (or, for a dry run, would do).
type Result struct {
	// ID correlates the operation's log lines.
	ID string

	Mode      Mode
	Container string

	// Database is the database the restore targets.
	Database string

	// BackupDatabase is the sibling backup created before a replace, empty
	// when no backup was taken.
	BackupDatabase string

	// Source is the credential-redacted source locator, safe to display.
	Source string

	Message string
}

// Puller drives the pull workflow over the container registry.
type Puller struct {
	registry *registry.Registry

	// clock supplies the backup timestamp; injectable for deterministic
	// naming in tests.
	clock func() time.Time
}

// New builds a Puller using the wall clock.
func New(reg *registry.Registry) *Puller {
	return NewWithClock(reg, time.Now)
}

// NewWithClock builds a Puller with an explicit clock.
func NewWithClock(reg *registry.Registry, clock func() time.Time) *Puller {
	return &Puller{registry: reg, clock: clock}
}

// Run executes one pull. The decision steps (mode resolution, backup naming,
// redaction) happen before any I/O, so a dry run exercises exactly the logic
// a real pull would follow. In a real pull the ordering is strict: the
// source is dumped first, the target is backed up second, and only then does
// the destructive restore proceed. A backup failure aborts with nothing
// destroyed; a restore failure after a successful backup reports the backup
// name as the recovery point. Engines that only load their dataset at
// startup are stopped for the restore step and restarted afterwards.
func (p *Puller) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Source == "" {
		return nil, engine.NewValidationError("pull source is required", nil)
	}
	if req.Container == "" {
		return nil, engine.NewValidationError("target container is required", nil)
	}
	if req.Database == "" {
		return nil, engine.NewValidationError("database name is required", nil)
	}
	if req.NoBackup && !req.Force {
		return nil, engine.NewValidationError("skipping the backup requires both --no-backup and --force", nil)
	}

	c, err := p.registry.Get(ctx, req.Container)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ID:        uuid.New().String(),
		Mode:      ModeReplace,
		Container: req.Container,
		Database:  req.Database,
		Source:    RedactURL(req.Source),
	}
	if req.AsDatabase != "" {
		res.Mode = ModeClone
		res.Database = req.AsDatabase
	}
	skipBackup := req.NoBackup && req.Force
	if res.Mode == ModeReplace && !skipBackup {
		res.BackupDatabase = fmt.Sprintf("%s_%s", req.Database, p.clock().Format(backupTimeFormat))
	}

	logger := log.With().
		Str("pull_id", res.ID).
		Str("container", req.Container).
		Str("mode", string(res.Mode)).
		Logger()

	if req.DryRun {
		res.Message = fmt.Sprintf("dry run: would pull %q from %s into %s (mode %s)", req.Database, res.Source, req.Container, res.Mode)
		if res.BackupDatabase != "" {
			res.Message += fmt.Sprintf(", backing up to %q first", res.BackupDatabase)
		}
		logger.Info().Msg("Dry run, no changes made")
		return res, nil
	}

	eng, err := engine.New(c.Kind)
	if err != nil {
		return nil, err
	}

	if !c.Kind.IsFileBased() && !p.registry.IsRunning(c) {
		if _, err := p.registry.Start(ctx, c.Name); err != nil {
			return nil, fmt.Errorf("failed to start target container: %w", err)
		}
		// Re-read: the start may have moved the port.
		c, err = p.registry.Get(ctx, c.Name)
		if err != nil {
			return nil, err
		}
	}

	if err := p.checkVersions(ctx, eng, c, req.Source, logger); err != nil {
		return nil, err
	}

	dumpFile := filepath.Join(os.TempDir(), fmt.Sprintf("dbnest-pull-%s.dump", res.ID))
	defer os.Remove(dumpFile)

	logger.Info().Str("database", req.Database).Msg("Dumping source database")
	if err := eng.Dump(ctx, req.Source, req.Database, dumpFile); err != nil {
		return nil, fmt.Errorf("failed to dump source: %w", err)
	}

	if res.BackupDatabase != "" {
		logger.Info().Str("backup", res.BackupDatabase).Msg("Backing up target database")
		if err := eng.CopyDatabase(ctx, c.Config, req.Database, res.BackupDatabase); err != nil {
			return nil, fmt.Errorf("failed to back up %q, nothing was overwritten: %w", req.Database, err)
		}
	}

	if c.Kind.RestoresOffline() {
		// The server only reads its snapshot at startup, so the swap
		// needs the port dark. The backup above already ran against the
		// live instance.
		logger.Info().Msg("Stopping target for snapshot restore")
		if err := p.registry.Stop(ctx, c.Name); err != nil {
			return nil, fmt.Errorf("failed to stop target before restore: %w", err)
		}
	}

	logger.Info().Str("database", res.Database).Msg("Restoring into target")
	if err := eng.Restore(ctx, c.Config, req.Database, res.Database, dumpFile); err != nil {
		if res.BackupDatabase != "" {
			return nil, fmt.Errorf("failed to restore %q; the pre-pull state is recoverable from backup %q: %w", res.Database, res.BackupDatabase, err)
		}
		return nil, fmt.Errorf("failed to restore %q: %w", res.Database, err)
	}

	if c.Kind.RestoresOffline() {
		if _, err := p.registry.Start(ctx, c.Name); err != nil {
			return nil, fmt.Errorf("restored the data but failed to restart the target: %w", err)
		}
	}

	res.Message = fmt.Sprintf("pulled %q from %s into %s/%s", req.Database, res.Source, req.Container, res.Database)
	if res.BackupDatabase != "" {
		res.Message += fmt.Sprintf(" (previous data backed up as %q)", res.BackupDatabase)
	}
	logger.Info().Msg("Pull complete")
	return res, nil
}

// checkVersions gates the restore on the per-engine version policy. The gate
// fails open: when either side's version cannot be obtained the pull
// proceeds with a warning, but a policy refusal (major downgrade, calendar
// window exceeded) stops the operation before any data moves.
func (p *Puller) checkVersions(ctx context.Context, eng engine.Engine, c *engine.Container, source string, logger zerolog.Logger) error {
	srcCfg, ok := sourceConfig(c.Kind, source)
	if !ok {
		logger.Warn().Msg("Source is not a server URL, skipping version check")
		return nil
	}

	sourceVersion, err := eng.ServerVersion(ctx, srcCfg)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not read source server version, proceeding anyway")
		return nil
	}
	targetVersion, err := eng.ServerVersion(ctx, c.Config)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not read target server version, proceeding anyway")
		return nil
	}

	compat := version.PolicyFor(c.Kind).Compatible(sourceVersion, targetVersion)
	if !compat.OK {
		return engine.NewIncompatibleVersionError(compat.Warning, nil).WithContainer(c.Name).WithOperation("pull")
	}
	if compat.Warning != "" {
		logger.Warn().
			Str("source_version", sourceVersion).
			Str("target_version", targetVersion).
			Msg(compat.Warning)
	}
	return nil
}

// sourceConfig builds a connection config for the remote source from its
// URL. File paths and malformed URLs report false; the version gate treats
// those as unknown and fails open.
func sourceConfig(kind engine.Kind, raw string) (engine.Config, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return engine.Config{}, false
	}
	cfg := engine.Config{
		Kind:     kind,
		Host:     u.Hostname(),
		Database: strings.TrimPrefix(u.Path, "/"),
	}
	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return engine.Config{}, false
		}
		cfg.Port = n
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	return cfg, true
}
