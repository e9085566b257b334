// Package mqtt provides the MQTT connection the Galaxie bridge uses to talk
// to the Gray Logic host platform.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and retained-message support
//   - Subscriptions that are restored after a reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// The bridge publishes entity discovery, entity state and health, and
// listens for refresh commands:
//
//	graylogic/discovery/galaxie/{device_id}   retained device + entity metadata
//	graylogic/state/galaxie/{device_id}       retained entity state
//	graylogic/command/galaxie/{command}       inbound commands (refresh)
//	graylogic/health/galaxie                  retained bridge health
//	graylogic/system/galaxie/status           online / offline (LWT)
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.BridgeState("galaxie", "live_status")
//	err = client.PublishRetained(topic, payload)
package mqtt
