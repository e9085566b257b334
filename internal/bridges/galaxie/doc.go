// Package galaxie connects the Galaxie reconciler to the Gray Logic host.
//
// The Bridge implements reconcile.Host: every device the reconciler creates,
// updates or removes is persisted in the device registry and announced over
// MQTT.
//
// # Topics
//
//	graylogic/discovery/galaxie/{device_id}   retained device description
//	graylogic/state/galaxie/{device_id}       retained entity values
//	graylogic/command/galaxie/refresh         triggers an immediate poll
//	graylogic/health/galaxie                  retained bridge health
//
// Removing a device clears both of its retained topics so a restarted host
// does not resurrect a finished run.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. The reconciler calls
// the Host methods from both polling loops.
package galaxie
