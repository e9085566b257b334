package galaxie

import (
	"time"

	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/coordinator"
)

// DiscoveryMessage announces a device and its entities to the host.
// Topic: graylogic/discovery/galaxie/{device_id}
// QoS: 1, Retained: Yes
type DiscoveryMessage struct {
	DeviceID     string    `json:"device_id"`
	Timestamp    time.Time `json:"timestamp"`
	Name         string    `json:"name"`
	Kind         string    `json:"kind"`
	Manufacturer string    `json:"manufacturer"`
	Model        string    `json:"model"`
	SWVersion    string    `json:"sw_version,omitempty"`
	Series       string    `json:"series,omitempty"`
	RunID        string    `json:"run_id,omitempty"`

	// Entities lists the entity keys the device publishes in its state.
	Entities []string `json:"entities"`
}

// StateMessage carries the current entity values of a device.
// Topic: graylogic/state/galaxie/{device_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string         `json:"device_id"`
	Timestamp time.Time      `json:"timestamp"`
	State     map[string]any `json:"state"`
}

// CommandMessage is the optional body of a command.
// Topic: graylogic/command/galaxie/{command}
type CommandMessage struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source,omitempty"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates every feed's last attempt succeeded.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates MQTT is down or at least one feed is failing.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: graylogic/health/galaxie
// QoS: 1, Retained: Yes
// Interval: Every 30 seconds
type HealthMessage struct {
	Bridge          string                  `json:"bridge"`
	Timestamp       time.Time               `json:"timestamp"`
	Status          HealthStatus            `json:"status"`
	Version         string                  `json:"version"`
	UptimeSeconds   int64                   `json:"uptime_seconds"`
	DevicesManaged  int                     `json:"devices_managed"`
	LiveRuns        int                     `json:"live_runs"`
	StreamConnected bool                    `json:"stream_connected"`
	Feeds           []coordinator.FeedStats `json:"feeds,omitempty"`
	Reason          string                  `json:"reason,omitempty"`
}
