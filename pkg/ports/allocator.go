// Package ports finds and validates free TCP ports for managed instances.
package ports

import (
	"fmt"
	"net"
	"strconv"
)

const (
	// DefaultRangeStart is the first port considered for allocation.
	DefaultRangeStart = 5400

	// DefaultRangeEnd is the last port considered for allocation.
	DefaultRangeEnd = 5999
)

// Allocator picks unused TCP ports from a configured range.
type Allocator struct {
	// Start and End bound the allocation range, inclusive.
	Start int
	End   int
}

// NewAllocator returns an allocator over the default range.
func NewAllocator() *Allocator {
	return &Allocator{Start: DefaultRangeStart, End: DefaultRangeEnd}
}

// IsAvailable reports whether port can be bound right now. The answer can go
// stale: callers re-check immediately before a start attempt, never at
// config-read time, since external processes can take a port between
// invocations.
func IsAvailable(port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

// Find returns the first bindable port in the range that is not in reserved.
// Reserved carries the ports persisted by other managed containers even when
// they are not currently live, which keeps stopped containers from churning
// each other's ports on restart.
func (a *Allocator) Find(reserved map[int]bool) (int, error) {
	for port := a.Start; port <= a.End; port++ {
		if reserved[port] {
			continue
		}
		if IsAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port in range %d-%d", a.Start, a.End)
}
