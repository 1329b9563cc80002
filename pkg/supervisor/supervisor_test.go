package supervisor

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "server.pid")

	if err := writePIDFile(path, 4423); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if pid != 4423 {
		t.Errorf("pid = %d, want 4423", pid)
	}
}

func TestReadPIDFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pid")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error for malformed PID file")
	}
}

func TestIsPIDLive(t *testing.T) {
	dir := t.TempDir()

	// Missing file: not live.
	if IsPIDLive(filepath.Join(dir, "absent.pid"), "") {
		t.Error("missing PID file reported live")
	}

	// Our own PID without a signature guard: live.
	own := filepath.Join(dir, "own.pid")
	if err := writePIDFile(own, os.Getpid()); err != nil {
		t.Fatal(err)
	}
	if !IsPIDLive(own, "") {
		t.Error("own process reported dead")
	}

	// Our own PID with a signature no test binary carries: the recycled-PID
	// guard must refuse it.
	if IsPIDLive(own, "definitely-not-in-a-test-command-line") {
		t.Error("signature mismatch reported live")
	}

	// A PID that cannot exist.
	stale := filepath.Join(dir, "stale.pid")
	if err := writePIDFile(stale, 1<<30); err != nil {
		t.Fatal(err)
	}
	if IsPIDLive(stale, "") {
		t.Error("impossible PID reported live")
	}
}

func TestTerminateStale(t *testing.T) {
	dir := t.TempDir()

	// No PID file: nothing to do.
	if err := Terminate(filepath.Join(dir, "absent.pid"), "", time.Second); err != nil {
		t.Errorf("terminate on missing file failed: %v", err)
	}

	// Dead PID: the stale file is cleaned up.
	stale := filepath.Join(dir, "stale.pid")
	if err := writePIDFile(stale, 1<<30); err != nil {
		t.Fatal(err)
	}
	if err := Terminate(stale, "", time.Second); err != nil {
		t.Fatalf("terminate failed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale PID file not removed")
	}

	// Live stranger: the file goes, the process stays.
	stranger := filepath.Join(dir, "stranger.pid")
	if err := writePIDFile(stranger, os.Getpid()); err != nil {
		t.Fatal(err)
	}
	if err := Terminate(stranger, "definitely-not-in-a-test-command-line", time.Second); err != nil {
		t.Fatalf("terminate failed: %v", err)
	}
	if _, err := os.Stat(stranger); !os.IsNotExist(err) {
		t.Error("stranger PID file not removed")
	}
}

func TestIsPortLive(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("cannot bind: %v", err)
	}
	defer l.Close()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	if !IsPortLive(l.Addr().String()) {
		t.Errorf("listening port %s reported dead", l.Addr())
	}
}

func TestOutputBufferBounded(t *testing.T) {
	b := &outputBuffer{}

	chunk := strings.Repeat("x", 10*1024)
	for i := 0; i < 10; i++ {
		n, err := b.Write([]byte(chunk))
		if err != nil {
			t.Fatalf("write failed: %v", err)
		}
		// Writers always see success so the process never blocks on us.
		if n != len(chunk) {
			t.Fatalf("short write reported: %d", n)
		}
	}

	if got := len(b.String()); got != outputCaptureLimit {
		t.Errorf("capture length = %d, want %d", got, outputCaptureLimit)
	}
}
