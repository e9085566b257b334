package device

import (
	"fmt"
	"regexp"
)

// Validation constants.
const (
	maxNameLength = 100
	maxIDLength   = 100
	idPattern     = `^[a-z0-9_\-]+$`

	// Size limits for the state map to prevent memory exhaustion from an
	// oversized upstream payload.
	maxStateKeys      = 100
	maxStringValueLen = 1024
)

var idRegex = regexp.MustCompile(idPattern)

var validKinds map[Kind]struct{}

func init() {
	validKinds = make(map[Kind]struct{}, len(AllKinds()))
	for _, k := range AllKinds() {
		validKinds[k] = struct{}{}
	}
}

// ValidateDevice validates a device before it is persisted.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}
	if err := ValidateID(d.ID); err != nil {
		return err
	}
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if !ValidKind(d.Kind) {
		return fmt.Errorf("%w: %q", ErrInvalidKind, d.Kind)
	}
	if d.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidDevice)
	}
	return ValidateState(d.State)
}

// ValidateID checks a device ID is lowercase letters, digits, '_' or '-'.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidID)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidID, maxIDLength)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// ValidateName checks if a device name is valid.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidKind reports whether k is a known device kind.
func ValidKind(k Kind) bool {
	_, ok := validKinds[k]
	return ok
}

// ValidateState checks the size of a state map.
func ValidateState(state State) error {
	if len(state) > maxStateKeys {
		return fmt.Errorf("%w: %d keys exceeds limit of %d", ErrInvalidState, len(state), maxStateKeys)
	}
	for k, v := range state {
		if s, ok := v.(string); ok && len(s) > maxStringValueLen {
			return fmt.Errorf("%w: value of %q exceeds %d characters", ErrInvalidState, k, maxStringValueLen)
		}
	}
	return nil
}
