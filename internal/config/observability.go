package config

import "time"

// ObservabilityConfig configures the side server that exposes metrics and probes.
type ObservabilityConfig struct {
	Port string `envconfig:"PORT" default:"9090"`

	// Timeout bounds reads, writes and idle connections on the server.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"min=1s"`

	LivenessPath  string `envconfig:"LIVENESS_PATH" default:"/healthz"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/readyz"`
	MetricsPath   string `envconfig:"METRICS_PATH" default:"/metrics"`
}

// Address returns the listen address.
func (o *ObservabilityConfig) Address() string {
	return ":" + o.Port
}

// Validate checks ObservabilityConfig fields for correctness.
func (o *ObservabilityConfig) Validate() error {
	return validatePort(o.Port, "observability")
}
