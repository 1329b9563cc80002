package engine

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	// DefaultReadyAttempts is the default bound on readiness polls.
	DefaultReadyAttempts = 30

	// ReadyPollInterval is the fixed delay between readiness polls.
	ReadyPollInterval = 500 * time.Millisecond

	probeDialTimeout = 2 * time.Second
)

// Probe is an engine-supplied readiness predicate. A probe answers whether a
// started instance can actually serve requests, which is a stronger signal
// than the process existing or the port being bound.
type Probe interface {
	// Check performs one readiness attempt.
	Check(ctx context.Context) bool

	// Describe returns a short label for logging.
	Describe() string
}

// TCPProbe reports ready once a TCP connection to Addr succeeds.
type TCPProbe struct {
	Addr string
}

func (p TCPProbe) Check(_ context.Context) bool {
	conn, err := net.DialTimeout("tcp", p.Addr, probeDialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (p TCPProbe) Describe() string {
	return fmt.Sprintf("tcp connect %s", p.Addr)
}

// HTTPProbe reports ready once GET URL answers with a 2xx status.
type HTTPProbe struct {
	URL string
}

func (p HTTPProbe) Check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false
	}
	client := &http.Client{Timeout: probeDialTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (p HTTPProbe) Describe() string {
	return fmt.Sprintf("http get %s", p.URL)
}

// CommandProbe reports ready once a client-binary no-op command (such as a
// ping) exits zero.
type CommandProbe struct {
	Run   func(ctx context.Context) bool
	Label string
}

func (p CommandProbe) Check(ctx context.Context) bool {
	return p.Run(ctx)
}

func (p CommandProbe) Describe() string {
	return p.Label
}

// FileProbe reports ready when the backing file exists. Used by file-based
// engines, which have no server process to wait on.
type FileProbe struct {
	Path string
}

func (p FileProbe) Check(_ context.Context) bool {
	return fileExists(p.Path)
}

func (p FileProbe) Describe() string {
	return fmt.Sprintf("file exists %s", p.Path)
}

// WaitForReady polls probe at a fixed interval until it reports ready or
// maxAttempts is exhausted. It returns false on exhaustion rather than an
// error; the caller decides whether a timeout is fatal. Context cancellation
// also returns false.
func WaitForReady(ctx context.Context, probe Probe, maxAttempts int) bool {
	if maxAttempts <= 0 {
		maxAttempts = DefaultReadyAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(ReadyPollInterval):
			}
		}
		if probe.Check(ctx) {
			return true
		}
	}
	return false
}
