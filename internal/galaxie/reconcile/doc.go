// Package reconcile turns coordinator snapshots into host entity changes.
//
// The host platform sees three groups of devices:
//   - six fixed race devices, previous_race_{series} and next_race_{series},
//     created once at Bootstrap and never removed
//   - one live_race_{run-id} device per live run, created and removed as
//     runs appear and disappear from the live feed
//   - the live_status device carrying the live_race_status binary sensor
//
// Plan is a pure function from (known runs, last applied states, snapshot)
// to an ordered instruction list. Reconciler applies plans against a Host,
// tracking which runs the host currently knows about.
//
// Thread Safety: Reconciler methods are safe for concurrent use; calls are
// serialised internally.
package reconcile
