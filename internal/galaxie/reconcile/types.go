package reconcile

import (
	"context"

	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/model"
)

// DeviceKind groups host devices by what they describe.
type DeviceKind string

// Device kinds.
const (
	KindPreviousRace DeviceKind = "previous_race"
	KindNextRace     DeviceKind = "next_race"
	KindLiveRace     DeviceKind = "live_race"
	KindLiveStatus   DeviceKind = "live_status"
)

// Device metadata shown by the host platform.
const (
	Manufacturer      = "Galaxie"
	ModelPreviousRace = "NASCAR Previous Race"
	ModelNextRace     = "NASCAR Next Race"
	ModelLiveRace     = "NASCAR Live Race"
	ModelLiveStatus   = "Galaxie Live Status"
)

// LiveStatusID is the id of the device carrying the live_race_status sensor.
const LiveStatusID = "live_status"

// State is the entity values of one device keyed by entity key. A nil value
// means unknown.
type State map[string]any

// Device describes a device to create on the host.
type Device struct {
	ID        string       `json:"id"`
	Kind      DeviceKind   `json:"kind"`
	Name      string       `json:"name"`
	Model     string       `json:"model"`
	Series    model.Series `json:"series,omitempty"`
	RunID     string       `json:"run_id,omitempty"`
	SWVersion string       `json:"sw_version,omitempty"`
	State     State        `json:"state"`
}

// Host is the entity platform the reconciler drives.
type Host interface {
	// CreateDevice registers a device and its initial state.
	CreateDevice(ctx context.Context, d Device) error

	// UpdateDevice replaces the state of an existing device. It returns an
	// error matching ErrUnknownDevice when the host has no such device.
	UpdateDevice(ctx context.Context, id string, state State) error

	// RemoveDevice unregisters a device and its entities.
	RemoveDevice(ctx context.Context, id string) error
}

// Action is the kind of change an instruction makes.
type Action string

// Instruction actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionRemove Action = "remove"
)

// Instruction is one host change. State is set for creates and updates.
// Device is set for creates and updates; an update whose device the host no
// longer has is applied as a create of Device. RunID is set for live race
// devices.
type Instruction struct {
	Action   Action
	DeviceID string
	RunID    string
	Device   *Device
	State    State
}

// Failure records an instruction the host rejected.
type Failure struct {
	Action   Action `json:"action"`
	DeviceID string `json:"device_id"`
	Error    string `json:"error"`
}

// Result summarises one OnSnapshot call.
type Result struct {
	Seq      uint64    `json:"seq"`
	Skipped  bool      `json:"skipped"`
	Created  []string  `json:"created"`
	Updated  []string  `json:"updated"`
	Removed  []string  `json:"removed"`
	Failures []Failure `json:"failures,omitempty"`
	Live     bool      `json:"live"`
}
