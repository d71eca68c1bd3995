package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
)

// HealthChecker bundles liveness and readiness endpoints.
type HealthChecker struct {
	handler healthcheck.Handler
}

// NewHealthChecker creates the handler with a goroutine-count liveness
// check.
func NewHealthChecker() *HealthChecker {
	handler := healthcheck.NewHandler()
	handler.AddLivenessCheck("goroutine-count", healthcheck.GoroutineCountCheck(500))
	return &HealthChecker{handler: handler}
}

// AddStoreCheck wires the conversation store into readiness.
func (h *HealthChecker) AddStoreCheck(health func() error) {
	h.handler.AddReadinessCheck("store", healthcheck.Check(health))
}

// AddRedisCheck wires Redis into readiness.
func (h *HealthChecker) AddRedisCheck(ping func(ctx context.Context) error) {
	h.handler.AddReadinessCheck("redis", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return ping(ctx)
	})
}

// LiveEndpoint serves the liveness probe.
func (h *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	h.handler.LiveEndpoint(w, r)
}

// ReadyEndpoint serves the readiness probe.
func (h *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	h.handler.ReadyEndpoint(w, r)
}
