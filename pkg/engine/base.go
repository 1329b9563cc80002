package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dbnest/dbnest/pkg/supervisor"
)

const stopGracePeriod = 10 * time.Second

// baseServer provides the implementation shared by every server-backed
// adapter: binary resolution, library-path env injection, spawn-and-wait
// startup with failure classification, idempotent stop, and client-binary
// execution in captured and streaming forms. Adapters embed it and supply
// the engine-specific pieces (launch arguments, probes, URI rendering).
type baseServer struct {
	kind         Kind
	serverBinary string
	clientBinary string
}

func (b baseServer) Kind() Kind {
	return b.kind
}

// lookBinary resolves name against cfg.BinDir when set, PATH otherwise.
func (b baseServer) lookBinary(cfg Config, name string) (string, error) {
	if cfg.BinDir != "" {
		path := filepath.Join(cfg.BinDir, name)
		if _, err := os.Stat(path); err != nil {
			return "", NewNotFoundError(fmt.Sprintf("%s not found in %s", name, cfg.BinDir), err)
		}
		return path, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", NewNotFoundError(fmt.Sprintf("%s not found in PATH", name), err)
	}
	return path, nil
}

// spawnEnv builds the extra environment for a spawned server, injecting the
// dynamic-linker search path for bundled binaries that carry private shared
// libraries next to themselves.
func (b baseServer) spawnEnv(cfg Config) map[string]string {
	env := map[string]string{}
	if key, value, ok := supervisor.LibraryEnv(cfg.BinDir); ok {
		env[key] = value
	}
	return env
}

// PIDFile returns where the supervisor records the server PID for a
// container. Exposed so liveness checks outside the adapters agree on the
// location.
func PIDFile(cfg Config) string {
	return filepath.Join(cfg.DataDir, "dbnest.pid")
}

// ProcessSignature returns the substring expected in the server process
// command line, used as the PID-reuse guard when checking liveness.
func ProcessSignature(kind Kind) string {
	switch kind {
	case KindMongoDB:
		return "mongod"
	case KindMySQL:
		return "mysqld"
	case KindMariaDB:
		return "mariadbd"
	default:
		return string(kind)
	}
}

func (b baseServer) pidFile(cfg Config) string {
	return PIDFile(cfg)
}

func (b baseServer) logFile(cfg Config) string {
	return filepath.Join(cfg.DataDir, "dbnest.log")
}

// startServer spawns the server with args, then blocks on the readiness
// probe. Early process death and readiness exhaustion both surface as
// classified start failures carrying the captured output; a still-running
// process that merely missed the readiness window is left running.
func (b baseServer) startServer(ctx context.Context, cfg Config, args []string, probe Probe) error {
	return b.startServerEnv(ctx, cfg, args, b.spawnEnv(cfg), probe)
}

// startServerEnv is startServer with a caller-supplied environment, for
// engines configured through env vars instead of flags.
func (b baseServer) startServerEnv(ctx context.Context, cfg Config, args []string, env map[string]string, probe Probe) error {
	binary, err := b.lookBinary(cfg, b.serverBinary)
	if err != nil {
		return err
	}

	proc, err := supervisor.Spawn(supervisor.SpawnSpec{
		Binary:  binary,
		Args:    args,
		Env:     env,
		PIDFile: b.pidFile(cfg),
		LogFile: b.logFile(cfg),
	})
	if err != nil {
		return NewStartFailureError(fmt.Sprintf("failed to launch %s", b.serverBinary), "", "", err).
			WithContainer(cfg.Name).WithOperation("start")
	}

	log.Debug().
		Str("container", cfg.Name).
		Str("probe", probe.Describe()).
		Msg("Waiting for readiness")

	ready := waitForReadyOrExit(ctx, proc, probe)
	if ready {
		return nil
	}

	output := proc.Output()
	remediation, _ := supervisor.DetectLibraryError(output, string(b.kind))
	message := fmt.Sprintf("%s did not become ready (%s)", b.serverBinary, probe.Describe())
	if proc.Exited() {
		message = fmt.Sprintf("%s exited during startup", b.serverBinary)
	}
	return NewStartFailureError(message, output, remediation, nil).
		WithContainer(cfg.Name).WithOperation("start")
}

// waitForReadyOrExit runs the standard readiness wait, bailing out early
// once the process is gone so a crash does not burn the full attempt budget.
func waitForReadyOrExit(ctx context.Context, proc *supervisor.Process, probe Probe) bool {
	return waitUnlessExited(ctx, probe, proc.Exited)
}

func waitUnlessExited(ctx context.Context, probe Probe, exited func() bool) bool {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return WaitForReady(ctx, exitGuardProbe{probe: probe, exited: exited, cancel: cancel}, DefaultReadyAttempts)
}

// exitGuardProbe wraps a probe and cancels the surrounding wait once the
// watched process has exited.
type exitGuardProbe struct {
	probe  Probe
	exited func() bool
	cancel context.CancelFunc
}

func (p exitGuardProbe) Check(ctx context.Context) bool {
	if p.probe.Check(ctx) {
		return true
	}
	if p.exited() {
		p.cancel()
	}
	return false
}

func (p exitGuardProbe) Describe() string {
	return p.probe.Describe()
}

// stopServer terminates the instance recorded in the PID file. The server
// binary name doubles as the PID-reuse signature.
func (b baseServer) stopServer(cfg Config) error {
	return supervisor.Terminate(b.pidFile(cfg), b.serverBinary, stopGracePeriod)
}

// runClient executes the engine's client binary with output captured. The
// exit status lands in the result; only failures to execute at all are
// errors.
func (b baseServer) runClient(ctx context.Context, cfg Config, args []string) (CommandResult, error) {
	binary, err := b.lookBinary(cfg, b.clientBinary)
	if err != nil {
		return CommandResult{}, err
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = mergeEnv(b.spawnEnv(cfg))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Status = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to run %s: %w", b.clientBinary, err)
	}
	return result, nil
}

// runClientStreaming executes the client binary with stdio passed through.
func (b baseServer) runClientStreaming(ctx context.Context, cfg Config, args []string) (int, error) {
	binary, err := b.lookBinary(cfg, b.clientBinary)
	if err != nil {
		return -1, err
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = mergeEnv(b.spawnEnv(cfg))
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("failed to run %s: %w", b.clientBinary, err)
	}
	return 0, nil
}

// runTool executes an arbitrary engine tool (dump/restore utilities) with
// output captured, returning an error on non-zero exit since these are
// internal workflow steps rather than user queries.
func (b baseServer) runTool(ctx context.Context, cfg Config, name string, args []string) error {
	binary, err := b.lookBinary(cfg, name)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = mergeEnv(b.spawnEnv(cfg))
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(out.String()))
	}
	return nil
}

func mergeEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// baseFile provides the shared implementation for file-backed engines, which
// have no server process: Start validates or creates the backing file, Stop
// is a no-op, and liveness is simply file existence.
type baseFile struct {
	kind         Kind
	clientBinary string
}

func (b baseFile) Kind() Kind {
	return b.kind
}

// Start ensures the backing file exists, creating an empty database file on
// first start. The client binary initializes real structure lazily.
func (b baseFile) Start(_ context.Context, cfg Config) error {
	if cfg.FilePath == "" {
		return NewValidationError("file-based engine requires a file path", nil).WithContainer(cfg.Name)
	}
	if fileExists(cfg.FilePath) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create database file: %w", err)
	}
	return f.Close()
}

func (b baseFile) Stop(_ context.Context, _ Config) error {
	return nil
}

func (b baseFile) Ready(cfg Config) Probe {
	return FileProbe{Path: cfg.FilePath}
}

func (b baseFile) lookBinary(cfg Config, name string) (string, error) {
	return baseServer{kind: b.kind}.lookBinary(cfg, name)
}
