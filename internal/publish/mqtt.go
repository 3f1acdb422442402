package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/forceplate.report/internal/forceplate/realtime"
	"github.com/banshee-data/forceplate.report/internal/monitoring"
)

// MQTTClient is the subset of mqtt.Client the publisher uses.
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// MQTTPublisher writes each output as JSON to <prefix>/<type>. Snapshots
// are retained so a dashboard that connects mid-session sees the latest
// state immediately.
type MQTTPublisher struct {
	client  MQTTClient
	prefix  string
	qos     byte
	timeout time.Duration
}

// NewMQTTPublisher publishes through an already connected client.
func NewMQTTPublisher(client MQTTClient, prefix string) *MQTTPublisher {
	return &MQTTPublisher{
		client:  client,
		prefix:  strings.TrimSuffix(prefix, "/"),
		timeout: 2 * time.Second,
	}
}

// DialMQTT connects to broker and returns a publisher on it.
func DialMQTT(broker, clientID, prefix string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	monitoring.Logf("connected to MQTT broker %s as %s", broker, clientID)
	return NewMQTTPublisher(client, prefix), nil
}

// Topic returns the full topic for a message type.
func (p *MQTTPublisher) Topic(kind string) string { return p.prefix + "/" + kind }

func (p *MQTTPublisher) publish(kind string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	token := p.client.Publish(p.Topic(kind), p.qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s: timed out after %s", p.Topic(kind), p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", p.Topic(kind), err)
	}
	return nil
}

func (p *MQTTPublisher) Snapshot(s realtime.Snapshot) error {
	return p.publish(TypeSnapshot, true, s)
}

func (p *MQTTPublisher) Feedback(f realtime.Feedback) error {
	return p.publish(TypeFeedback, false, f)
}

func (p *MQTTPublisher) Quality(q realtime.QualityAssessment) error {
	return p.publish(TypeQuality, false, q)
}

func (p *MQTTPublisher) Trial(t realtime.TrialResult) error {
	return p.publish(TypeTrial, false, t)
}

// SubscribeCorrections applies every JSON correction published to
// <prefix>/correction until ctx is done.
func (p *MQTTPublisher) SubscribeCorrections(ctx context.Context, apply ApplyFunc) error {
	topic := p.Topic(TypeCorrection)
	token := p.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var c realtime.Correction
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			monitoring.Logf("mqtt %s: bad correction: %v", topic, err)
			return
		}
		if err := apply(ctx, c); err != nil {
			monitoring.Logf("mqtt %s: correction %s rejected: %v", topic, c.Kind, err)
		}
	})
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("subscribe %s: timed out", topic)
	}
	return token.Error()
}

// Close disconnects the client if it is a full mqtt.Client.
func (p *MQTTPublisher) Close() error {
	if c, ok := p.client.(mqtt.Client); ok {
		c.Disconnect(250)
	}
	return nil
}
