package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type ESHealthChecker interface {
	HealthCheck(ctx context.Context) (string, error)
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

const (
	statusHealthy     = "healthy"
	statusUnhealthy   = "unhealthy"
	statusDegraded    = "degraded"
	statusUnavailable = "unavailable"
)

type registeredCheck struct {
	checker  HealthChecker
	critical bool
}

// HealthHandler reports readiness. Search fails open when the cache or the
// analytics store is down, so those only degrade readiness; the catalog
// source is critical and takes the instance out of rotation.
type HealthHandler struct {
	checks  map[string]registeredCheck
	esCheck ESHealthChecker
	logger  *zap.Logger
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks: make(map[string]registeredCheck),
		logger: logger,
	}
}

// Register adds a dependency the service can run without.
func (h *HealthHandler) Register(name string, checker HealthChecker) {
	h.checks[name] = registeredCheck{checker: checker}
}

// RegisterCritical adds a dependency search cannot serve without.
func (h *HealthHandler) RegisterCritical(name string, checker HealthChecker) {
	h.checks[name] = registeredCheck{checker: checker, critical: true}
}

// RegisterES adds the Elasticsearch catalog, which is critical.
func (h *HealthHandler) RegisterES(checker ESHealthChecker) {
	h.esCheck = checker
}

type componentHealth struct {
	Status   string `json:"status"`
	Critical bool   `json:"critical"`
	Latency  string `json:"latency,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (ch componentHealth) failed() bool {
	return ch.Status == statusUnhealthy || ch.Status == "red"
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	results := h.checkAll(ctx)

	code := http.StatusOK
	overall := statusHealthy
	for name, ch := range results {
		if !ch.failed() {
			continue
		}
		if ch.Critical {
			code = http.StatusServiceUnavailable
			overall = statusUnavailable
			h.logger.Warn("critical dependency unhealthy", zap.String("component", name), zap.String("error", ch.Error))
			break
		}
		overall = statusDegraded
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":     overall,
		"components": results,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) checkAll(ctx context.Context) map[string]componentHealth {
	results := make(map[string]componentHealth, len(h.checks)+1)
	var mu sync.Mutex
	var wg sync.WaitGroup

	record := func(name string, ch componentHealth) {
		mu.Lock()
		results[name] = ch
		mu.Unlock()
	}

	for name, rc := range h.checks {
		wg.Add(1)
		go func(name string, rc registeredCheck) {
			defer wg.Done()
			start := time.Now()
			err := rc.checker.HealthCheck(ctx)
			ch := componentHealth{
				Status:   statusHealthy,
				Critical: rc.critical,
				Latency:  time.Since(start).String(),
			}
			if err != nil {
				ch.Status = statusUnhealthy
				ch.Error = err.Error()
			}
			record(name, ch)
		}(name, rc)
	}

	if h.esCheck != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			status, err := h.esCheck.HealthCheck(ctx)
			ch := componentHealth{
				Status:   status,
				Critical: true,
				Latency:  time.Since(start).String(),
			}
			if err != nil {
				if ch.Status == "" {
					ch.Status = statusUnhealthy
				}
				ch.Error = err.Error()
			}
			record("elasticsearch", ch)
		}()
	}

	wg.Wait()
	return results
}
