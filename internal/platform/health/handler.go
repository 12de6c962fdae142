// Package health serves the liveness, readiness and status probes. These
// routes are tenant-agnostic and never pass through tenant resolution.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"tenantgate/pkg/platform/httputil"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DefaultCheckTimeout bounds one readiness probe, all checks included.
const DefaultCheckTimeout = 2 * time.Second

const (
	statusUp       = "up"
	statusReady    = "ready"
	statusNotReady = "not_ready"
)

// CheckFunc returns nil when the dependency is usable.
type CheckFunc func(ctx context.Context) error

// GroupFunc checks a set of dependencies that changes at runtime, such as
// one pool per tenant, and returns one result per member.
type GroupFunc func(ctx context.Context) map[string]error

type Handler struct {
	started      time.Time
	environment  string
	checkTimeout time.Duration

	mu     sync.RWMutex
	checks map[string]CheckFunc
	groups map[string]GroupFunc
}

func New(environment string) *Handler {
	return &Handler{
		started:      time.Now(),
		environment:  environment,
		checkTimeout: DefaultCheckTimeout,
		checks:       map[string]CheckFunc{},
		groups:       map[string]GroupFunc{},
	}
}

// RegisterCheck adds a named readiness check, replacing any with the same name.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	h.checks[name] = check
	h.mu.Unlock()
}

// RegisterGroup adds a check whose members are reported as "<name>:<member>".
func (h *Handler) RegisterGroup(name string, group GroupFunc) {
	h.mu.Lock()
	h.groups[name] = group
	h.mu.Unlock()
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

type LivenessResponse struct {
	Status string `json:"status"`
}

// HandleLiveness answers 200 while the process can serve HTTP at all.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{Status: "alive"})
}

type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleReadiness runs every check and group concurrently under one deadline
// and answers 503 when any of them reports a failure.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.checkTimeout)
	defer cancel()

	results := h.runChecks(ctx)

	resp := ReadinessResponse{Status: statusReady, Checks: make(map[string]string, len(results))}
	for name, err := range results {
		if err != nil {
			resp.Checks[name] = "down: " + err.Error()
			resp.Status = statusNotReady
			continue
		}
		resp.Checks[name] = statusUp
	}

	status := http.StatusOK
	if resp.Status == statusNotReady {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *Handler) runChecks(ctx context.Context) map[string]error {
	var (
		mu      sync.Mutex
		results = map[string]error{}
		g       errgroup.Group
	)
	set := func(name string, err error) {
		mu.Lock()
		results[name] = err
		mu.Unlock()
	}

	h.mu.RLock()
	for name, check := range h.checks {
		g.Go(func() error {
			set(name, check(ctx))
			return nil
		})
	}
	for name, group := range h.groups {
		g.Go(func() error {
			for member, err := range group(ctx) {
				set(name+":"+member, err)
			}
			return nil
		})
	}
	h.mu.RUnlock()

	_ = g.Wait()
	return results
}

type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}
