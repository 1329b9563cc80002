//go:build !windows

package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// JobCmd wraps exec.Cmd for spawning server processes that must outlive the
// CLI invocation that started them.
type JobCmd struct {
	*exec.Cmd
}

// NewJobCmd builds a JobCmd for the given binary and arguments.
func NewJobCmd(name string, arg ...string) *JobCmd {
	return &JobCmd{Cmd: exec.Command(name, arg...)}
}

// Start launches the process in its own process group, detaching it from the
// CLI's controlling terminal so an interrupt aimed at the CLI does not take
// the server down with it. Terminate signals the whole group, catching helper
// children the server forks.
func (j *JobCmd) Start() error {
	if j.Cmd.SysProcAttr == nil {
		j.Cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	j.Cmd.SysProcAttr.Setpgid = true
	return j.Cmd.Start()
}

// signalGroup sends sig to the process group rooted at pid.
func signalGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}

// terminateProcess asks the process group for a graceful shutdown first and
// escalates to SIGKILL through the caller's retry loop.
func terminateProcess(pid int, force bool) error {
	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	if err := signalGroup(pid, sig); err != nil {
		// Fall back to the single process when the group is already gone.
		return syscall.Kill(pid, sig)
	}
	return nil
}

// processAlive reports whether pid refers to a live process. Signal 0
// performs the existence check without delivering anything.
func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

// processCommandLine returns the command line of pid, used to guard against
// the OS reusing a stale PID for an unrelated process. Reads /proc where it
// exists (Linux) and falls back to ps (macOS, BSDs).
func processCommandLine(pid int) string {
	if raw, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid)); err == nil {
		return strings.ReplaceAll(string(raw), "\x00", " ")
	}
	out, err := exec.Command("ps", "-o", "command=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
