package supervisor

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const liveCheckTimeout = 2 * time.Second

// SpawnSpec describes one server process to launch.
type SpawnSpec struct {
	// Binary is the absolute path to the server executable.
	Binary string

	// Args are the server arguments.
	Args []string

	// Dir is the working directory, empty for inherited.
	Dir string

	// Env are additional environment variables merged over os.Environ.
	Env map[string]string

	// PIDFile, when set, receives the spawned PID for later liveness and
	// termination checks.
	PIDFile string

	// LogFile, when set, receives a copy of the process output in addition
	// to the in-memory capture.
	LogFile string
}

// Process is a handle to a spawned server. The supervisor owns it for the
// process lifetime; callers must not retain it beyond the operation that
// created it.
type Process struct {
	cmd *JobCmd
	out *outputBuffer

	mu     sync.Mutex
	exited bool
}

// PID returns the OS process ID.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Output returns everything the process has written to stdout and stderr so
// far. Used for startup-failure classification.
func (p *Process) Output() string {
	return p.out.String()
}

// Exited reports whether the process has already terminated. It polls
// non-destructively via a liveness check rather than Wait, since the server
// is expected to outlive this invocation.
func (p *Process) Exited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return true
	}
	if !processAlive(p.cmd.Process.Pid) {
		p.exited = true
	}
	return p.exited
}

// outputBuffer is a bounded capture of process output. Startup diagnostics
// only ever need the first few kilobytes.
type outputBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

const outputCaptureLimit = 64 * 1024

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Len() < outputCaptureLimit {
		remain := outputCaptureLimit - b.buf.Len()
		if len(p) > remain {
			b.buf.Write(p[:remain])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Spawn launches the process described by spec, wiring output capture, the
// optional log file, and the optional PID file.
func Spawn(spec SpawnSpec) (*Process, error) {
	cmd := NewJobCmd(spec.Binary, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}

	env := os.Environ()
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Cmd.Env = env

	capture := &outputBuffer{}
	var sink io.Writer = capture
	if spec.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(spec.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(spec.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		sink = io.MultiWriter(capture, f)
	}
	cmd.Cmd.Stdout = sink
	cmd.Cmd.Stderr = sink

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", spec.Binary, err)
	}

	if spec.PIDFile != "" {
		if err := writePIDFile(spec.PIDFile, cmd.Process.Pid); err != nil {
			log.Warn().Err(err).Str("pid_file", spec.PIDFile).Msg("Failed to write PID file")
		}
	}

	// Reap the child when it exits so it never lingers as a zombie while
	// this invocation is still alive.
	proc := &Process{cmd: cmd, out: capture}
	go func() {
		_ = cmd.Wait()
		proc.mu.Lock()
		proc.exited = true
		proc.mu.Unlock()
	}()

	log.Debug().
		Str("binary", spec.Binary).
		Int("pid", cmd.Process.Pid).
		Msg("Spawned server process")

	return proc, nil
}

// IsPortLive reports whether something accepts TCP connections on addr. This
// is the primary liveness signal for server engines.
func IsPortLive(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, liveCheckTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// IsPIDLive reports whether the PID recorded in pidFile refers to a live
// process whose command line still matches signature. The signature guard
// protects against the OS handing a recycled PID to an unrelated process
// after a crash left a stale PID file behind.
func IsPIDLive(pidFile, signature string) bool {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return false
	}
	if !processAlive(pid) {
		return false
	}
	if signature == "" {
		return true
	}
	return strings.Contains(processCommandLine(pid), signature)
}

// Terminate stops the process recorded in pidFile, verifying the signature
// first so a recycled PID belonging to someone else is never killed. It
// escalates to a forced kill if the process survives the grace window, then
// removes the PID file. Terminating an already-stopped process is a no-op.
func Terminate(pidFile, signature string, grace time.Duration) error {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return nil
	}
	if !processAlive(pid) {
		_ = os.Remove(pidFile)
		return nil
	}
	if signature != "" && !strings.Contains(processCommandLine(pid), signature) {
		// Stale file, live stranger. Drop the file, leave the process.
		_ = os.Remove(pidFile)
		return nil
	}

	if err := terminateProcess(pid, false); err != nil {
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			_ = os.Remove(pidFile)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := terminateProcess(pid, true); err != nil {
		return fmt.Errorf("failed to kill pid %d: %w", pid, err)
	}
	_ = os.Remove(pidFile)
	return nil
}

func writePIDFile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644)
}

func readPIDFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("malformed PID file %s: %w", path, err)
	}
	return pid, nil
}
