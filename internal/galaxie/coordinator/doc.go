// Package coordinator polls the Galaxie feeds and publishes merged snapshots.
//
// Two loops run concurrently:
//   - the fast loop (every 15s) fetches the live feed, refreshes per-run
//     weather and manages the push stream
//   - the slow loop (every 15min) fetches the previous and next race feeds
//     and, at most hourly, the backend config
//
// Both loops run a cycle immediately on Start. The next tick is scheduled
// only after the current cycle has published, so a loop never overlaps
// itself. Refresh asks both loops for an immediate cycle.
//
// The merged Snapshot lives behind an atomic pointer. Each writer clones
// the current snapshot, replaces only the fields it owns and swaps the
// pointer with compare-and-swap, so published snapshots are never mutated.
//
// Fetch failures never reach subscribers: the failed feed keeps its last
// successful payload in the Store and the snapshot is published regardless.
package coordinator
