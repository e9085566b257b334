package galaxie

import "errors"

// Domain errors for the Galaxie bridge package.
var (
	// ErrNotConnected is returned when a publish is attempted while the
	// MQTT client is disconnected.
	ErrNotConnected = errors.New("galaxie: mqtt not connected")

	// ErrAlreadyStarted is returned by Start on a running bridge.
	ErrAlreadyStarted = errors.New("galaxie: bridge already started")

	// ErrUnknownCommand is returned for a command topic the bridge does not handle.
	ErrUnknownCommand = errors.New("galaxie: unknown command")
)
