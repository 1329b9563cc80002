//go:build windows

package supervisor

import (
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

// Start launches the process in a new process group detached from the CLI's
// console, so closing the console or interrupting the CLI does not take the
// server down with it.
func (j *JobCmd) Start() error {
	if j.Cmd.SysProcAttr == nil {
		j.Cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	j.Cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
	return j.Cmd.Start()
}

// terminateProcess kills the process. Windows has no graceful TERM signal for
// arbitrary console processes, so force and non-force behave the same.
func terminateProcess(pid int, _ bool) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

// processAlive reports whether pid refers to a live process.
func processAlive(pid int) bool {
	h, err := syscall.OpenProcess(syscall.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer syscall.CloseHandle(h)
	var code uint32
	if err := syscall.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	const stillActive = 259
	return code == stillActive
}

// processCommandLine returns the command line of pid via tasklist, used to
// guard against the OS reusing a stale PID for an unrelated process.
func processCommandLine(pid int) string {
	out, err := exec.Command("tasklist", "/FI", "PID eq "+strconv.Itoa(pid), "/FO", "CSV", "/NH").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
