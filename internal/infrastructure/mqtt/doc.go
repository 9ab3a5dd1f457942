// Package mqtt connects the Android TV bridge to the Gray Logic message bus.
//
// The client wraps paho.mqtt.golang and adds:
//   - auto-reconnect with subscriptions restored after every reconnect
//   - a Last Will so Core sees the bridge go offline on a crash
//   - input validation and panic recovery around message handlers
//   - topic builders for the flat graylogic/{category}/{protocol}/{id} scheme
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, &mqtt.Will{Topic: lwtTopic, Payload: lwtPayload})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{Protocol: "androidtv"}
//	err = client.Subscribe(topics.CommandSubscribe(), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
package mqtt
