// Package mqtt provides MQTT client connectivity for the VLX bridge.
//
// This package manages:
//   - Bounded connection retry at startup (ConnectWithRetry)
//   - Auto-reconnect after the first successful connection
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after every reconnect
//   - Last Will and Testament (LWT) on the bridge status topic
//
// # Architecture
//
//	KLF-200 gateway ↔ vlxbridge ↔ MQTT Broker ↔ Home Assistant
//
// Message handlers run on paho's delivery goroutines. Anything that
// touches gateway state must be handed to the gateway loop; handlers
// must not block on long operations.
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is not on localhost
//   - Credentials should come from VLXBRIDGE_MQTT_USERNAME/PASSWORD
//
// # Usage
//
//	client, err := mqtt.ConnectWithRetry(ctx, cfg.MQTT, nil)
//	if err != nil {
//	    return err // fatal: attempts exhausted
//	}
//	defer client.Close()
//
//	err = client.Subscribe("vlx-kitchen-window/set", 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("command %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
