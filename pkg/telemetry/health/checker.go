// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// CheckFunc reports whether a component is usable. It returns nil when it is.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of a single check.
type CheckResult struct {
	// Status is "ok" or "unhealthy".
	Status string `json:"status"`

	// Message explains an unhealthy status.
	Message string `json:"message,omitempty"`

	// DurationMs is how long the check took.
	DurationMs float64 `json:"duration_ms"`
}

// Status is the aggregated probe response.
type Status struct {
	// Status is "ok" for liveness, "ready" or "degraded" for readiness.
	Status string `json:"status"`

	// Checks holds per-component results for readiness.
	Checks map[string]CheckResult `json:"checks,omitempty"`

	// Timestamp is when the probe ran.
	Timestamp time.Time `json:"timestamp"`
}

// Checker holds the registered readiness checks. The relay registers one
// for the credential source and one for the audit store.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// New creates a checker. A zero timeout bounds every check at 5 seconds.
func New(timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{checks: map[string]CheckFunc{}, timeout: timeout}
}

// RegisterCheck adds a named check, replacing any with the same name.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	c.checks[name] = check
	c.mu.Unlock()
}

// ListChecks returns the registered names, sorted.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Liveness reports that the process is serving. It runs no checks.
func (c *Checker) Liveness() Status {
	return Status{Status: "ok", Timestamp: time.Now().UTC()}
}

type namedResult struct {
	name   string
	result CheckResult
}

// Readiness runs every check concurrently. The status is "degraded" when
// any of them fails or exceeds the timeout.
func (c *Checker) Readiness(ctx context.Context) Status {
	c.mu.RLock()
	pending := len(c.checks)
	results := make(chan namedResult, pending)
	for name, check := range c.checks {
		go func() {
			results <- namedResult{name: name, result: c.run(ctx, check)}
		}()
	}
	c.mu.RUnlock()

	status := Status{Status: "ready", Checks: make(map[string]CheckResult, pending)}
	for range pending {
		r := <-results
		status.Checks[r.name] = r.result
		if r.result.Status != "ok" {
			status.Status = "degraded"
		}
	}
	status.Timestamp = time.Now().UTC()
	return status
}

// run executes one check. A check ignoring its context is abandoned when
// the timeout fires; its goroutine finishes on its own.
func (c *Checker) run(ctx context.Context, check CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- check(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = errors.New("health check timeout")
	}

	result := CheckResult{Status: "ok", DurationMs: float64(time.Since(start).Microseconds()) / 1000}
	if err != nil {
		result.Status = "unhealthy"
		result.Message = err.Error()
	}
	return result
}
