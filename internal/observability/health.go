package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// ComponentStatus represents the health status of a component
type ComponentStatus string

const (
	StatusHealthy   ComponentStatus = "healthy"
	StatusDegraded  ComponentStatus = "degraded"
	StatusUnhealthy ComponentStatus = "unhealthy"
	StatusUnknown   ComponentStatus = "unknown"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status    ComponentStatus   `json:"status"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	LastCheck time.Time         `json:"last_check"`
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status     ComponentStatus            `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// HealthCheckFunc checks one component. A nil error means healthy.
type HealthCheckFunc func(ctx context.Context) error

// StatusCheckFunc reports a component status directly.
type StatusCheckFunc func(ctx context.Context) (ComponentStatus, string)

// DetailsFunc reports extra state for a component, such as circuit breaker states.
type DetailsFunc func() map[string]string

// HealthChecker tracks component health.
//
// Degraded components (an upstream with an open circuit, for example) keep the
// service ready since every upstream failure degrades to partial data.
// Unhealthy and unknown components make it not ready.
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	checks     map[string]StatusCheckFunc
	details    map[string]DetailsFunc
	logger     *slog.Logger
	now        func() time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(logger *slog.Logger) *HealthChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthChecker{
		components: make(map[string]ComponentHealth),
		checks:     make(map[string]StatusCheckFunc),
		details:    make(map[string]DetailsFunc),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RegisterComponent registers a component with unknown status.
func (h *HealthChecker) RegisterComponent(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = ComponentHealth{
		Status:    StatusUnknown,
		LastCheck: h.now(),
	}
}

// AddCheck registers a component together with the check run by Run.
func (h *HealthChecker) AddCheck(name string, check HealthCheckFunc) {
	h.AddStatusCheck(name, func(ctx context.Context) (ComponentStatus, string) {
		if err := check(ctx); err != nil {
			return StatusUnhealthy, err.Error()
		}
		return StatusHealthy, ""
	})
}

// AddStatusCheck is AddCheck for checks that can report a degraded status.
func (h *HealthChecker) AddStatusCheck(name string, check StatusCheckFunc) {
	h.RegisterComponent(name)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// AddDetails attaches a details reporter to a component.
func (h *HealthChecker) AddDetails(name string, fn DetailsFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.details[name] = fn
}

// UpdateComponentHealth updates the health status of a component
func (h *HealthChecker) UpdateComponentHealth(name string, status ComponentStatus, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		LastCheck: h.now(),
	}
}

// GetHealth returns a snapshot of all components and the overall status.
func (h *HealthChecker) GetHealth() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(h.components))
	overall := StatusHealthy

	for name, health := range h.components {
		if fn, ok := h.details[name]; ok {
			health.Details = fn()
		}
		components[name] = health

		switch health.Status {
		case StatusHealthy:
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		default:
			overall = StatusUnhealthy
		}
	}

	return HealthStatus{
		Status:     overall,
		Components: components,
		Timestamp:  h.now(),
	}
}

// CheckComponent runs a health check function and updates the component status
func (h *HealthChecker) CheckComponent(ctx context.Context, name string, checkFunc HealthCheckFunc) {
	if err := checkFunc(ctx); err != nil {
		h.UpdateComponentHealth(name, StatusUnhealthy, err.Error())
		h.logger.Warn("component health check failed",
			"component", name,
			"error", err.Error())
		return
	}
	h.UpdateComponentHealth(name, StatusHealthy, "")
}

// RunChecks runs every registered check once, in name order.
func (h *HealthChecker) RunChecks(ctx context.Context) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	for _, name := range names {
		h.mu.RLock()
		check := h.checks[name]
		h.mu.RUnlock()

		status, message := check(ctx)
		if status != StatusHealthy {
			h.logger.Warn("component not healthy",
				"component", name,
				"status", string(status),
				"message", message)
		}
		h.UpdateComponentHealth(name, status, message)
	}
}

// Run runs the registered checks immediately and then every interval until ctx is done.
func (h *HealthChecker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.RunChecks(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.RunChecks(ctx)
		}
	}
}

// HealthHandler returns an HTTP handler for the health endpoint
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		h.writeJSON(w, code, health)
	}
}

// ReadyHandler returns an HTTP handler for the readiness endpoint
func (h *HealthChecker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		if health.Status == StatusUnhealthy {
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (h *HealthChecker) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode health response",
			"error", err.Error())
	}
}

// BreakerStatus derives a component status from circuit breaker states:
// degraded when any breaker is open, healthy otherwise.
func BreakerStatus(states map[string]string) ComponentStatus {
	for _, state := range states {
		if state == "open" {
			return StatusDegraded
		}
	}
	return StatusHealthy
}
