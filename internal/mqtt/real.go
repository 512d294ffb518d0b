package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/traffic-light/internal/logic"
)

// bufferCapacity bounds the messages kept while the broker is unreachable.
const bufferCapacity = 100

// RealPublisher publishes to an actual MQTT broker. It never blocks the
// caller on the network: while disconnected, messages are kept in a bounded
// outbox and replayed in order once the connection comes back. Messages
// published during a replay join the outbox so they follow older ones.
type RealPublisher struct {
	client paho.Client
	log    *zap.SugaredLogger

	mu        sync.Mutex
	queue     *outbox
	connected bool
	replaying bool
	everUp    bool
}

// willPayload is the retained message the broker publishes when the
// connection drops without a clean disconnect. It carries no timestamp
// since it is registered long before the broker sends it.
func willPayload() ([]byte, error) {
	return FormatSystemPayload(SystemEvent{Event: "SHUTDOWN", Reason: "MQTT_DISCONNECT"})
}

// NewRealPublisher creates a publisher for the given broker. The connection
// is established in the background and retried until it succeeds.
func NewRealPublisher(broker string, log *zap.SugaredLogger) *RealPublisher {
	p := &RealPublisher{
		log:   log,
		queue: newOutbox(bufferCapacity, log),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("traffic-light").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)
	if will, err := willPayload(); err != nil {
		log.Errorw("no last will registered", "error", err)
	} else {
		opts.SetWill(TopicSystem, string(will), 1, true)
	}

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.everUp
	p.connected = true
	p.replaying = true
	p.everUp = true
	p.mu.Unlock()

	if reconnect {
		if payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err == nil {
			p.send(TopicSystem, payload, 1, false)
		}
	}

	replayed, evicted := 0, 0
	for {
		p.mu.Lock()
		pending, n := p.queue.take()
		if len(pending) == 0 {
			p.replaying = false
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()

		evicted += n
		for _, m := range pending {
			p.send(m.topic, m.payload, m.qos, m.retained)
		}
		replayed += len(pending)
	}

	if reconnect {
		p.log.Infow("reconnected to broker", "replayed", replayed, "evicted", evicted)
	} else {
		p.log.Infow("connected to broker", "replayed", replayed)
	}
}

func (p *RealPublisher) onConnectionLost(c paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.log.Warnw("connection to broker lost", "error", err)
}

// publish sends the message now, or queues it while disconnected or
// while a replay is in progress.
func (p *RealPublisher) publish(topic string, payload []byte, qos byte, retained bool) {
	p.mu.Lock()
	if !p.connected || p.replaying {
		p.queue.add(pendingMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.send(topic, payload, qos, retained)
}

// send hands the message to the client and reports failures in the background.
func (p *RealPublisher) send(topic string, payload []byte, qos byte, retained bool) {
	token := p.client.Publish(topic, qos, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			p.log.Warnw("publish timeout", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			p.log.Warnw("publish failed", "topic", topic, "error", err)
		}
	}()
}

// Publish sends a controller event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	p.publish(Topic, payload, 0, false)
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	p.publish(TopicSystem, payload, 1, event.Retained)
	return nil
}

// PublishSystemSync sends a system event and waits for the broker to
// acknowledge it. Used for SHUTDOWN, where the process exits right after.
func (p *RealPublisher) PublishSystemSync(event SystemEvent, timeout time.Duration) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	if !p.IsConnected() {
		return fmt.Errorf("publish system: not connected")
	}
	token := p.client.Publish(TopicSystem, 1, event.Retained, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
