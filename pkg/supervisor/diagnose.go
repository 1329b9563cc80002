package supervisor

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

// Known dynamic-linker failure shapes in captured server output. These must
// stay narrow enough to never match ordinary startup logs ("Ready to accept
// connections") or unrelated failures such as a port already in use.
var (
	// macOS dyld, with or without a bracketed PID prefix:
	//   dyld[4423]: Library not loaded: @rpath/libssl.3.dylib
	//   dyld: Library not loaded: /usr/local/opt/openssl/lib/libcrypto.dylib
	dyldNotLoadedRe = regexp.MustCompile(`dyld(\[\d+\])?: Library not loaded: (\S+)`)

	// glibc symbol-version misses, quoting the literal symbol:
	//   /lib/x86_64-linux-gnu/libc.so.6: version 'GLIBC_2.32' not found
	glibcVersionRe = regexp.MustCompile("version `(GLIBC[_A-Z]*[0-9.]*)' not found")

	// Bare references to the C runtime wanting a TLS feature newer than the
	// installed one, without the version-quote form above.
	glibcTLSRe = regexp.MustCompile(`libc\.so\.\d+.*\bTLS\b`)

	// Generic ELF loader miss, naming the object file:
	//   error while loading shared libraries: libaio.so.1: cannot open shared object file
	sharedObjectRe = regexp.MustCompile(`([\w.+-]+\.so[\w.]*): cannot open shared object file`)
)

// DetectLibraryError pattern-matches captured process output against known
// dynamic-library startup failures and returns an actionable remediation for
// engineLabel. The second return is false when no known pattern matches, in
// which case the caller surfaces the raw output instead.
func DetectLibraryError(output, engineLabel string) (string, bool) {
	if output == "" {
		return "", false
	}

	if m := dyldNotLoadedRe.FindStringSubmatch(output); m != nil {
		lib := m[2]
		return fmt.Sprintf(
			"%s failed to start because a required shared library is missing (%s). "+
				"Install the missing dependency, e.g. via Homebrew: brew install %s",
			engineLabel, lib, suggestPackage(lib)), true
	}

	if m := glibcVersionRe.FindStringSubmatch(output); m != nil {
		return fmt.Sprintf(
			"%s requires a newer C runtime: %s is not provided by the installed glibc. "+
				"Upgrade your distribution's glibc or use a build of %s targeting this system.",
			engineLabel, m[1], engineLabel), true
	}

	if glibcTLSRe.MatchString(output) {
		return fmt.Sprintf(
			"%s requires TLS support from the C runtime (libc.so) that the installed glibc does not provide. "+
				"Upgrade your distribution's glibc or use a build of %s targeting this system.",
			engineLabel, engineLabel), true
	}

	if m := sharedObjectRe.FindStringSubmatch(output); m != nil {
		return fmt.Sprintf(
			"%s failed to start because the shared library %s could not be opened. "+
				"Install the package providing %s using your system package manager.",
			engineLabel, m[1], m[1]), true
	}

	return "", false
}

// suggestPackage maps a missing dylib name to the package most likely to
// provide it. OpenSSL is by far the most common miss for bundled database
// binaries; anything else falls back to the library's base name.
func suggestPackage(lib string) string {
	base := lib
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	switch {
	case strings.HasPrefix(base, "libssl.3"), strings.HasPrefix(base, "libcrypto.3"):
		return "openssl@3"
	case strings.HasPrefix(base, "libssl"), strings.HasPrefix(base, "libcrypto"):
		return "openssl"
	default:
		return strings.TrimSuffix(strings.TrimSuffix(base, ".dylib"), ".so")
	}
}

// LibraryEnv computes the dynamic-linker search-path override for a bundled
// binary carrying private shared libraries under <binaryDir>/lib. It returns
// the platform's variable name and value, or ok=false on platforms where the
// concept does not apply, so callers can merge it into a spawn environment
// without platform conditionals of their own.
func LibraryEnv(binaryDir string) (key, value string, ok bool) {
	if binaryDir == "" {
		return "", "", false
	}
	switch runtime.GOOS {
	case "linux":
		return "LD_LIBRARY_PATH", binaryDir + "/lib", true
	case "darwin":
		return "DYLD_LIBRARY_PATH", binaryDir + "/lib", true
	default:
		return "", "", false
	}
}
