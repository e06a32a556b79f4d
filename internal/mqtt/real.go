package mqtt

import (
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/doorbell-sensor/internal/event"
)

// outboxLimit is how many messages are kept while the broker is unreachable.
const outboxLimit = 256

// publishTimeout bounds how long a background publish is awaited for logging.
const publishTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker. Publishing never blocks
// the caller: messages are handed to paho, or buffered while disconnected
// and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topic  string
	log    *slog.Logger

	pending *outbox
}

// NewRealPublisher creates a publisher for the given broker. The connection
// is established in the background.
func NewRealPublisher(broker, clientID string, log *slog.Logger) *RealPublisher {
	p := &RealPublisher{
		topic:   Topic,
		log:     log,
		pending: newOutbox(outboxLimit),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn("mqtt connection lost", "error", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Warn("mqtt connect", "broker", broker, "error", err)
		}
	}()
	return p
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish sends a doorbell report to the MQTT broker.
func (p *RealPublisher) Publish(r event.Report) error {
	payload, err := FormatPayload(r, uuid.NewString())
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	p.send(outboxMsg{topic: p.topic, payload: payload})
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	p.send(outboxMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
	return nil
}

func (p *RealPublisher) send(msg outboxMsg) {
	offline := func() bool { return !p.client.IsConnectionOpen() }
	if held, dropped := p.pending.holdIf(offline, msg); held {
		if dropped {
			p.log.Warn("mqtt outbox full, dropping oldest", "limit", outboxLimit)
		}
		return
	}
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	go func() {
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			p.log.Warn("mqtt publish", "topic", msg.topic, "error", token.Error())
		}
	}()
}

func (p *RealPublisher) onConnect(c paho.Client) {
	pending := p.pending.take()
	p.log.Info("mqtt connected", "replaying", len(pending), "dropped_total", p.pending.droppedTotal())
	for _, msg := range pending {
		c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	}
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
