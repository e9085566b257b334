package mqtt

import "fmt"

// TopicPrefix is the root of every Gray Logic topic.
const TopicPrefix = "graylogic"

// Topics provides builders for the topics the bridge uses.
//
// Bridge topics follow the flat scheme graylogic/{category}/{bridge}/{id}:
//
//	mqtt.Topics{}.BridgeState("galaxie", "previous_race_cup")
//	// graylogic/state/galaxie/previous_race_cup
type Topics struct{}

// BridgeState returns the retained state topic for a device.
func (Topics) BridgeState(bridge, deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, bridge, deviceID)
}

// BridgeDiscovery returns the retained discovery topic for a device.
func (Topics) BridgeDiscovery(bridge, deviceID string) string {
	return fmt.Sprintf("%s/discovery/%s/%s", TopicPrefix, bridge, deviceID)
}

// BridgeCommand returns the topic for a command addressed to a bridge.
func (Topics) BridgeCommand(bridge, command string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, bridge, command)
}

// BridgeHealth returns the retained health topic for a bridge.
func (Topics) BridgeHealth(bridge string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, bridge)
}

// AllBridgeCommands returns a pattern matching every command for a bridge.
//
// Pattern: graylogic/command/{bridge}/+
func (Topics) AllBridgeCommands(bridge string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, bridge)
}

// SystemStatus returns the online/offline status topic for a service.
//
// Example: graylogic/system/galaxie/status
func (Topics) SystemStatus(service string) string {
	return fmt.Sprintf("%s/system/%s/status", TopicPrefix, service)
}
