package supervisor

import (
	"strings"
	"testing"
)

func TestDetectLibraryError(t *testing.T) {
	tests := []struct {
		name         string
		output       string
		wantMatch    bool
		wantContains string
	}{
		{
			name:         "dyld missing library with pid",
			output:       "dyld[4423]: Library not loaded: @rpath/libssl.3.dylib\n  Referenced from: /opt/pgsql/bin/postgres",
			wantMatch:    true,
			wantContains: "brew install openssl@3",
		},
		{
			name:         "dyld missing library without pid",
			output:       "dyld: Library not loaded: /usr/local/opt/openssl/lib/libcrypto.dylib",
			wantMatch:    true,
			wantContains: "shared library is missing",
		},
		{
			name:         "glibc version miss",
			output:       "/lib/x86_64-linux-gnu/libc.so.6: version `GLIBC_2.32' not found (required by ./mongod)",
			wantMatch:    true,
			wantContains: "GLIBC_2.32",
		},
		{
			name:         "glibc TLS miss",
			output:       "./clickhouse: /lib/libc.so.6: unsupported, TLS block required",
			wantMatch:    true,
			wantContains: "TLS support",
		},
		{
			name:         "generic shared object miss",
			output:       "error while loading shared libraries: libaio.so.1: cannot open shared object file: No such file or directory",
			wantMatch:    true,
			wantContains: "libaio.so.1",
		},
		{
			name:      "ordinary startup log",
			output:    "2026-01-29 14:30:52 * Ready to accept connections tcp",
			wantMatch: false,
		},
		{
			name:      "port already in use",
			output:    "FATAL: could not bind IPv4 address \"127.0.0.1\": Address already in use",
			wantMatch: false,
		},
		{
			name:      "empty output",
			output:    "",
			wantMatch: false,
		},
		{
			name:      "mentions a library without failing on it",
			output:    "loaded module libssl.so.3 successfully",
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := DetectLibraryError(tt.output, "postgres")
			if ok != tt.wantMatch {
				t.Fatalf("DetectLibraryError match = %v, want %v (msg: %q)", ok, tt.wantMatch, msg)
			}
			if ok && tt.wantContains != "" && !strings.Contains(msg, tt.wantContains) {
				t.Errorf("remediation %q missing %q", msg, tt.wantContains)
			}
		})
	}
}

func TestSuggestPackage(t *testing.T) {
	tests := []struct {
		lib  string
		want string
	}{
		{"@rpath/libssl.3.dylib", "openssl@3"},
		{"/usr/local/opt/openssl/lib/libcrypto.dylib", "openssl"},
		{"libzstd.1.dylib", "libzstd.1"},
	}

	for _, tt := range tests {
		if got := suggestPackage(tt.lib); got != tt.want {
			t.Errorf("suggestPackage(%q) = %q, want %q", tt.lib, got, tt.want)
		}
	}
}

func TestLibraryEnvEmptyDir(t *testing.T) {
	if _, _, ok := LibraryEnv(""); ok {
		t.Error("LibraryEnv must not apply without a binary directory")
	}
}
