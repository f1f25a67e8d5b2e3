// Package mqtt publishes Gatekeeper events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// Topics live under a configurable prefix:
//
//	<prefix>/auth/events    one JSON message per authentication attempt
//	<prefix>/admin/events   rank and account changes
//	<prefix>/system/status  retained online/offline status
//
// # Security Considerations
//
//   - TLS should be enabled in production (cfg.Broker.TLS=true)
//   - Event payloads never contain passwords, hashes or salts
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.PublishEvent(client.Topics().AuthEvents(), event)
package mqtt
