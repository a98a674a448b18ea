package instrumentation

import (
	"fmt"
	"os"
)

// Config holds instrumentation configuration.
type Config struct {
	// Enabled turns instrumentation on. When false, no providers are
	// created and recorders are no-ops.
	Enabled bool

	// ServiceName identifies this service in exported telemetry.
	ServiceName string

	// ServiceVersion is the version reported with telemetry.
	ServiceVersion string

	// ServiceInstanceID distinguishes replicas. Defaults to the hostname.
	ServiceInstanceID string
}

// DefaultConfig returns the default instrumentation configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "calendar-mcp",
		ServiceVersion: "dev",
	}
}

// FromEnv overlays environment variables onto the config.
func (c Config) FromEnv() Config {
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("OTEL_SERVICE_INSTANCE_ID"); v != "" {
		c.ServiceInstanceID = v
	}
	return c
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Enabled && c.ServiceName == "" {
		return fmt.Errorf("service name is required when instrumentation is enabled")
	}
	return nil
}
