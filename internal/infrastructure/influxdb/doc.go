// Package influxdb records poll telemetry for the Galaxie bridge in InfluxDB.
//
// Every upstream fetch writes one galaxie_fetch point (feed, outcome,
// duration) and every fast cycle writes one galaxie_live point with the
// number of live runs. Writes are non-blocking and batched by the
// influxdb-client-go write API; asynchronous write failures are delivered
// to the SetOnError callback.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.RecordFetch("live", "ok", 120*time.Millisecond)
package influxdb
