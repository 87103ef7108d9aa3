// Package mqtt provides the MQTT publisher used to broadcast
// authentication events from demo-security.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and payload limits
//   - A retained service status topic with Last Will and Testament
//
// # Topics
//
//	<prefix>/system/status            retained online/offline status
//	<prefix>/auth/events/<kind>       one message per auth event
//
// # Security Considerations
//
//   - Event payloads carry subjects and outcomes, never tokens or passwords
//   - Enable TLS (cfg.Broker.TLS) outside local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(client.Topics().AuthEvent("logged_out"), evt)
package mqtt
