// Package supervisor owns the OS processes backing managed database
// instances: spawning native server binaries with platform-appropriate
// lifetime guards, answering liveness authoritatively, terminating with a
// PID-reuse guard, and translating opaque dynamic-linker failures in captured
// process output into actionable remediation hints.
//
// The package works on plain values (addresses, PID files, binary paths) and
// has no knowledge of engine kinds; the engine adapters sit on top of it.
package supervisor
