package inbound

// HealthChecker reports service health for liveness and readiness probes.
type HealthChecker interface {
	// IsReady reports whether the service has completed startup and is
	// serving traffic.
	IsReady() bool

	// IsHealthy reports whether the service is operating normally.
	IsHealthy() bool
}
