package observability

// HealthStatus is the state of a service or one of its dependencies.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health describes one dependency, typically a transcription backend.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ServiceHealth aggregates dependency health.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// NewServiceHealth creates a ServiceHealth that is up until a component
// says otherwise.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{Service: service, Status: HealthStatusUp, Version: version}
}

// AddComponent appends ch. A down dependency only degrades the service
// unless critical is set, because routing works around unavailable
// backends.
func (sh *ServiceHealth) AddComponent(ch Health, critical bool) {
	sh.Components = append(sh.Components, ch)
	switch {
	case ch.Status == HealthStatusDown && critical:
		sh.Status = HealthStatusDown
	case ch.Status != HealthStatusUp && sh.Status == HealthStatusUp:
		sh.Status = HealthStatusDegraded
	}
}
