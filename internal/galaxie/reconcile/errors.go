package reconcile

import "errors"

// ErrUnknownDevice is matched by Host errors for a device the host does not
// have. The reconciler then creates the device instead of updating it.
var ErrUnknownDevice = errors.New("reconcile: unknown device")
