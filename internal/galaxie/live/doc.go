// Package live follows the Galaxie per-run WebSocket push stream.
//
// The stream at /ws/runs/{id}/ delivers JSON envelopes of the form
// {"type": "...", "data": ...}. Two types are understood:
//   - run_detail: a live run record carrying fresher values than the last poll
//   - vehicle_list: the running order of the run
//
// Other types are ignored. A Streamer follows at most one run at a time and
// reconnects with jittered exponential backoff until told to stop.
package live
