// Package health provides readiness state tracking and HTTP health check handlers.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// State constants for the readiness state machine.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 2 * time.Second

// DependencyCheck reports whether a dependency is usable.
type DependencyCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check DependencyCheck
}

// Checker tracks the readiness state of the service and the dependencies
// it needs to serve. It is safe for concurrent use.
type Checker struct {
	state atomic.Int32

	mu     sync.RWMutex
	checks []namedCheck
}

// NewChecker creates a Checker in the Starting state.
func NewChecker() *Checker {
	return &Checker{}
}

// SetReady transitions to the Ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// AddCheck registers a dependency check evaluated on every readiness
// request while the state is Ready.
func (c *Checker) AddCheck(name string, check DependencyCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, namedCheck{name: name, check: check})
}

// Check runs every check and returns the failures keyed by check name.
func (c *Checker) Check(ctx context.Context) map[string]string {
	c.mu.RLock()
	checks := append([]namedCheck(nil), c.checks...)
	c.mu.RUnlock()

	failed := map[string]string{}
	for _, p := range checks {
		pctx, cancel := context.WithTimeout(ctx, checkTimeout)
		if err := p.check(pctx); err != nil {
			failed[p.name] = err.Error()
		}
		cancel()
	}
	return failed
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// healthResponse is the JSON body returned by health endpoints.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler returns an http.HandlerFunc that always responds 200 OK.
// Use this for Kubernetes liveness checks (/healthz).
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler returns an http.HandlerFunc that responds 200 when ready
// and every check passes, and 503 otherwise.
// Use this for Kubernetes readiness checks (/readyz).
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.IsReady() {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: c.State()})
			return
		}
		if failed := c.Check(r.Context()); len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Checks: failed})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: c.State()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
