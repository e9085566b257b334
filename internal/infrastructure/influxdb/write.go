package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementFetch = "galaxie_fetch"
	MeasurementLive  = "galaxie_live"
)

// RecordFetch writes the outcome and latency of one upstream fetch.
// outcome is "ok" or a short failure class such as "transport".
func (c *Client) RecordFetch(feed, outcome string, duration time.Duration) {
	c.WritePoint(MeasurementFetch,
		map[string]string{
			"feed":    feed,
			"outcome": outcome,
		},
		map[string]interface{}{
			"duration_ms": float64(duration) / float64(time.Millisecond),
			"ok":          outcome == "ok",
		},
	)
}

// RecordLiveRuns writes the number of live runs seen by a fast cycle.
func (c *Client) RecordLiveRuns(count int) {
	c.WritePoint(MeasurementLive, nil, map[string]interface{}{
		"runs": count,
	})
}

// WritePoint writes a point stamped with the current time.
// Silently dropped when the client is not connected.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
