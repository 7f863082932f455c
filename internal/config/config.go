// Package config provides configuration loading from environment variables
// and YAML run manifests.
package config

import (
	"time"
)

// ServiceConfig holds coordinator-level settings sourced from the environment.
// Per-run settings come from the manifest; these are the deployment knobs.
type ServiceConfig struct {
	MetricsPort    string        // Prometheus endpoint port (empty to disable)
	DefaultTimeout time.Duration // per-job budget when the manifest sets none
	Grace          time.Duration // extra wait for a worker to honor an expired deadline
	KeepStaging    bool          // keep staged copies of failed jobs for debugging
}

// LoadServiceConfig loads coordinator configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		MetricsPort:    GetEnv("METRICS_PORT", ""),
		DefaultTimeout: GetDurationEnv("DEFAULT_JOB_TIMEOUT", 8*time.Hour),
		Grace:          GetDurationEnv("JOB_GRACE_PERIOD", 30*time.Second),
		KeepStaging:    GetBoolEnv("KEEP_STAGING", false),
	}
}
