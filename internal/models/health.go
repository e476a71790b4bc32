package models

import "time"

// HealthStatus grades a component or the whole service.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is the verdict for one dependency.
type HealthCheck struct {
	Status  HealthStatus `json:"status"`
	Detail  string       `json:"detail,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthReport is the /healthz payload.
type HealthReport struct {
	Status    HealthStatus           `json:"status"`
	Checks    map[string]HealthCheck `json:"checks"`
	CheckedAt time.Time              `json:"checked_at"`
}
