// Package health serves liveness and readiness checks for the storefront
// backend.
//
// Every check runs on its own ticker. A check flips to failing only after
// FailureThreshold consecutive errors and back after SuccessThreshold
// consecutive successes, so a single slow ping does not flap the check.
//
// Besides liveness and readiness there are advisory checks: they are
// reported in the readiness body under "degraded" but never fail readiness.
// The cart keeps working on its local fallback while the remote API is down,
// so an open circuit breaker is advisory, not a reason to stop traffic.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc reports a problem with a component, or nil when it is healthy.
type CheckFunc func(ctx context.Context) error

type kind int

const (
	kindLiveness kind = iota
	kindReadiness
	kindAdvisory
)

// Thresholds control how many consecutive results flip a check.
type Thresholds struct {
	Failure int
	Success int
}

// DefaultThresholds trip after three failures and recover after one success.
var DefaultThresholds = Thresholds{Failure: 3, Success: 1}

type check struct {
	name       string
	kind       kind
	timeout    time.Duration
	fn         CheckFunc
	thresholds Thresholds

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// Only touched by the goroutine running the check.
	fails, oks int
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)
	if err != nil {
		c.oks = 0
		c.fails++
		if c.fails >= c.thresholds.Failure {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	c.oks++
	if c.oks >= c.thresholds.Success {
		c.healthy.Store(true)
	}
}

func (c *check) failure() string {
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error()
	}
	return "check is unhealthy"
}

// Health holds the registered checks and the manual readiness switch.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

func (h *Health) add(name string, k kind, timeout time.Duration, fn CheckFunc, t Thresholds) {
	if t.Failure < 1 {
		t.Failure = DefaultThresholds.Failure
	}
	if t.Success < 1 {
		t.Success = DefaultThresholds.Success
	}
	c := &check{name: name, kind: k, timeout: timeout, fn: fn, thresholds: t}
	c.healthy.Store(true)

	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// AddLivenessCheck registers a check that fails /livez.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(name, kindLiveness, timeout, fn, DefaultThresholds)
}

// AddReadinessCheck registers a check that fails /readyz.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(name, kindReadiness, timeout, fn, DefaultThresholds)
}

// AddAdvisoryCheck registers a check that is reported by /readyz without
// failing it.
func (h *Health) AddAdvisoryCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(name, kindAdvisory, timeout, fn, Thresholds{Failure: 1, Success: 1})
}

// Start runs every registered check immediately and then every interval
// until ctx is done or Stop is called.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := slices.Clone(h.checks)
	h.mu.Unlock()

	for _, c := range checks {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			c.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.run(ctx)
				}
			}
		}()
	}
}

// Stop halts the background checks. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness switch. It is turned off first during
// graceful shutdown so load balancers drain the instance.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the switch is on and every readiness check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	return len(h.failures(kindReadiness)) == 0
}

func (h *Health) failures(k kind) map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]string)
	for _, c := range h.checks {
		if c.kind == k && !c.healthy.Load() {
			out[c.name] = c.failure()
		}
	}
	return out
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(kindLiveness), nil)
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(kindReadiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures, h.failures(kindAdvisory))
}

func writeStatus(w http.ResponseWriter, failures, degraded map[string]string) {
	status, text := http.StatusOK, "ok"
	switch {
	case len(failures) > 0:
		status, text = http.StatusServiceUnavailable, "unhealthy"
	case len(degraded) > 0:
		text = "degraded"
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(text) })
		writeMap(e, "checks", failures)
		writeMap(e, "degraded", degraded)
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeMap(e *jx.Encoder, field string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)

	e.Field(field, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			for _, name := range names {
				e.Field(name, func(e *jx.Encoder) { e.Str(m[name]) })
			}
		})
	})
}
