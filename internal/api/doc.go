// Package api implements the HTTP API and WebSocket server of the Galaxie bridge.
//
// This package provides:
//   - Read endpoints for the merged snapshot, its live runs and the host devices
//   - A refresh endpoint that triggers an immediate poll of every feed
//   - Health and metrics endpoints for monitoring
//   - A WebSocket hub broadcasting snapshot and entity change events
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Events
//
// WebSocket clients subscribe to channels:
//
//	{"type": "subscribe", "id": "1", "payload": {"channels": ["snapshot.updated"]}}
//
// "snapshot.updated" is broadcast for every snapshot the coordinator
// publishes. "entity.changed" relays the retained state messages the bridge
// publishes over MQTT.
//
// # Graceful Degradation
//
// The server operates without MQTT; only entity.changed events stop.
package api
