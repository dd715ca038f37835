package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mqttv2 "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/sirupsen/logrus"
)

// DecisionTopic carries the latest decision as a retained message.
const DecisionTopic = "immersion/decision"

// Broker is an embedded MQTT broker that local consumers can subscribe to.
type Broker struct {
	server *mqttv2.Server
}

// Start serves the broker on address until ctx is done.
func Start(ctx context.Context, wg *sync.WaitGroup, address string) (*Broker, error) {
	server := mqttv2.New(&mqttv2.Options{
		InlineClient: true,
	})

	// Allow all connections.
	_ = server.AddHook(new(auth.AllowHook), nil)

	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: address})
	err := server.AddListener(tcp)
	if err != nil {
		return nil, fmt.Errorf("error adding mqtt listener on %s: %w", address, err)
	}

	err = server.Serve()
	if err != nil {
		return nil, err
	}
	logrus.Infof("mqtt: listening on %s", address)

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		err := server.Close()
		if err != nil {
			logrus.Errorf("mqtt: error closing broker: %s", err)
		}
	}()
	return &Broker{server: server}, nil
}

// Publish sends v as json. Messages are retained so new subscribers get the last value.
func (b *Broker) Publish(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.server.Publish(topic, payload, true, 0)
}

// Subscribe registers an inline subscription on the broker.
func (b *Broker) Subscribe(filter string, id int, fn func(topic string, payload []byte)) error {
	return b.server.Subscribe(filter, id, func(cl *mqttv2.Client, sub packets.Subscription, pk packets.Packet) {
		fn(pk.TopicName, pk.Payload)
	})
}
