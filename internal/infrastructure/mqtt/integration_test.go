//go:build integration

package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/config"
)

// These tests need a broker at 127.0.0.1:1883.
//
//	go test -tags=integration -count=1 ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	client, err := Connect(context.Background(), integrationConfig("graylogic-atv-int-sub"), nil)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := Topics{Protocol: "androidtv-int"}
	subs := []string{topics.CommandSubscribe(), topics.RequestSubscribe(), topics.State("tv1")}
	for _, topic := range subs {
		if err := client.Subscribe(topic, 1, func(string, []byte) error { return nil }); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if client.SubscriptionCount() != len(subs) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(subs))
	}

	if err := client.Unsubscribe(subs[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(subs[0]) {
		t.Errorf("HasSubscription(%s) = true after unsubscribe", subs[0])
	}
}

func TestIntegration_CommandRoundtrip(t *testing.T) {
	pub, err := Connect(context.Background(), integrationConfig("graylogic-atv-int-pub"), nil)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close()

	sub, err := Connect(context.Background(), integrationConfig("graylogic-atv-int-sub2"), nil)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close()

	topics := Topics{Protocol: "androidtv-int"}
	received := make(chan string, 1)
	var once sync.Once

	err = sub.Subscribe(topics.CommandSubscribe(), 1, func(topic string, payload []byte) error {
		once.Do(func() { received <- topic + " " + string(payload) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := pub.Publish(topics.Command("tv1"), []byte(`{"command":"play"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		want := topics.Command("tv1") + ` {"command":"play"}`
		if msg != want {
			t.Errorf("received %q, want %q", msg, want)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}
}
