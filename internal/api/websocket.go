package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-galaxie/internal/bridges/galaxie"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/model"
)

// Event channels.
const (
	ChannelSnapshotUpdated = "snapshot.updated"
	ChannelEntityChanged   = "entity.changed"
)

// stateTopicPattern matches every device state the bridge publishes.
var stateTopicPattern = galaxie.StateTopic("+")

// SnapshotEvent is the payload of a snapshot.updated event.
type SnapshotEvent struct {
	Seq               uint64    `json:"seq"`
	UpdatedAt         time.Time `json:"updated_at"`
	LiveRuns          []string  `json:"live_runs"`
	PreviousAvailable bool      `json:"previous_available"`
	NextAvailable     bool      `json:"next_available"`
	LiveAvailable     bool      `json:"live_available"`
}

// broadcastSnapshot is the coordinator subscriber that announces every
// published snapshot to WebSocket clients.
func (s *Server) broadcastSnapshot(snap *model.Snapshot) error {
	s.hub.Broadcast(ChannelSnapshotUpdated, SnapshotEvent{
		Seq:               snap.Seq,
		UpdatedAt:         snap.UpdatedAt,
		LiveRuns:          snap.LiveIDs(),
		PreviousAvailable: snap.PreviousAvailable,
		NextAvailable:     snap.NextAvailable,
		LiveAvailable:     snap.LiveAvailable,
	})
	return nil
}

// subscribeStateUpdates relays the bridge's retained state messages to
// WebSocket clients subscribed to "entity.changed".
func (s *Server) subscribeStateUpdates() error {
	if s.mqtt == nil {
		return nil // MQTT not configured; entity events disabled
	}
	s.logger.Info("subscribing to state updates for WebSocket relay", "topic", stateTopicPattern)
	return s.mqtt.Subscribe(stateTopicPattern, 1, s.relayState)
}

// relayState handles one state message. Empty payloads clear a removed
// device's retained topic and are broadcast as a removal.
func (s *Server) relayState(topic string, payload []byte) error {
	if len(payload) == 0 {
		id := topic[strings.LastIndex(topic, "/")+1:]
		s.hub.Broadcast(ChannelEntityChanged, map[string]any{"device_id": id, "removed": true})
		return nil
	}

	var msg galaxie.StateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("failed to parse state message for WebSocket broadcast", "topic", topic, "error", err)
		return nil
	}

	s.logger.Debug("broadcasting state to WebSocket", "topic", topic, "device_id", msg.DeviceID)
	s.hub.Broadcast(ChannelEntityChanged, msg)
	return nil
}

// handleWebSocket upgrades the connection and hands it to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(w, r)
}
