package device

import (
	"strings"
	"time"
)

// Kind classifies a Galaxie device.
type Kind string

// Device kinds.
const (
	KindPreviousRace Kind = "previous_race"
	KindNextRace     Kind = "next_race"
	KindLiveRace     Kind = "live_race"
	KindLiveStatus   Kind = "live_status"
)

// AllKinds returns all valid device kinds.
func AllKinds() []Kind {
	return []Kind{KindPreviousRace, KindNextRace, KindLiveRace, KindLiveStatus}
}

// DefaultManufacturer is recorded when a device does not name one.
const DefaultManufacturer = "Galaxie"

// Device is one device announced to the host platform.
// This matches the devices table in migrations/20261019_120000_devices.up.sql.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// Metadata
	Manufacturer string  `json:"manufacturer"`
	Model        string  `json:"model"`
	SWVersion    *string `json:"sw_version,omitempty"`

	// Source binding: the series of a fixed race device or the run of a
	// live race device.
	Series *string `json:"series,omitempty"`
	RunID  *string `json:"run_id,omitempty"`

	// Current entity values keyed by entity key. A nil value is unknown.
	State          State      `json:"state"`
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State holds the current entity values of a device.
//
// Examples:
//   - Live race: {"flag": "Green", "lap_number": 112, "caution_count": 3}
//   - Live status: {"live_race_status": true, "backend_version": "2.4.1"}
type State map[string]any

// DeepCopy creates a complete independent copy of the Device.
// The state map is cloned so modifications to the copy do not affect the
// original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.State = deepCopyMap(d.State)

	// Pointer fields (*string, *time.Time) don't need deep copy
	// because strings and time.Time are immutable in Go

	return &cpy
}

// IsLiveRace reports whether the device tracks a live run.
func (d *Device) IsLiveRace() bool {
	return d.Kind == KindLiveRace || strings.HasPrefix(d.ID, string(KindLiveRace)+"_")
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
