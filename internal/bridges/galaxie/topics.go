package galaxie

import (
	"strings"

	"github.com/nerrad567/gray-logic-galaxie/internal/infrastructure/mqtt"
)

// BridgeID names this bridge in every topic.
const BridgeID = "galaxie"

// CommandRefresh is the command that triggers an immediate poll.
const CommandRefresh = "refresh"

var topics mqtt.Topics

// StateTopic returns the retained state topic for a device.
func StateTopic(deviceID string) string {
	return topics.BridgeState(BridgeID, deviceID)
}

// DiscoveryTopic returns the retained discovery topic for a device.
func DiscoveryTopic(deviceID string) string {
	return topics.BridgeDiscovery(BridgeID, deviceID)
}

// HealthTopic returns the retained bridge health topic.
func HealthTopic() string {
	return topics.BridgeHealth(BridgeID)
}

// CommandTopic returns the topic for one bridge command.
func CommandTopic(command string) string {
	return topics.BridgeCommand(BridgeID, command)
}

// CommandSubscription matches every command addressed to the bridge.
func CommandSubscription() string {
	return topics.AllBridgeCommands(BridgeID)
}

// commandFromTopic extracts the command name from a command topic.
func commandFromTopic(topic string) (string, bool) {
	prefix := CommandTopic("")
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	cmd := strings.TrimPrefix(topic, prefix)
	if cmd == "" || strings.Contains(cmd, "/") {
		return "", false
	}
	return cmd, true
}
