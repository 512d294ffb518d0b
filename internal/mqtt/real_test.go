package mqtt

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/traffic-light/internal/logic"
)

// doneToken is a paho token that has already completed.
type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type sentMsg struct {
	topic   string
	payload string
}

// recordingClient records publishes in the order the client receives them.
// Methods other than Publish are not used by RealPublisher's send path.
type recordingClient struct {
	paho.Client

	mu        sync.Mutex
	sent      []sentMsg
	onPublish func(n int)
}

func (c *recordingClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	c.sent = append(c.sent, sentMsg{topic: topic, payload: string(payload.([]byte))})
	n := len(c.sent)
	hook := c.onPublish
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return doneToken{}
}

func (c *recordingClient) messages() []sentMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMsg(nil), c.sent...)
}

func newTestPublisher() (*RealPublisher, *recordingClient) {
	client := &recordingClient{}
	p := &RealPublisher{client: client, log: zap.NewNop().Sugar(), queue: newOutbox(bufferCapacity, nil)}
	return p, client
}

func phaseEvent(p logic.Phase, cycle int) logic.Event {
	return logic.Event{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 0, 0, time.UTC),
		Type:      logic.EventPhase,
		Phase:     p,
		Duration:  5 * time.Second,
		Cycle:     cycle,
	}
}

func phaseOf(t *testing.T, m sentMsg) string {
	t.Helper()
	var parsed Payload
	if err := json.Unmarshal([]byte(m.payload), &parsed); err != nil {
		t.Fatalf("invalid payload %q: %v", m.payload, err)
	}
	return parsed.Traffic.Phase
}

func TestRealPublisherQueuesWhileDisconnected(t *testing.T) {
	p, client := newTestPublisher()

	if err := p.Publish(phaseEvent(logic.PhaseGreenRight, 1)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := len(client.messages()); got != 0 {
		t.Errorf("sent while disconnected: %d", got)
	}
	if got := p.Buffered(); got != 1 {
		t.Errorf("buffered: got %d, want 1", got)
	}

	p.onConnect(client)

	msgs := client.messages()
	if len(msgs) != 1 || phaseOf(t, msgs[0]) != "GREEN_RIGHT" {
		t.Fatalf("replay: got %+v", msgs)
	}
	if p.Buffered() != 0 {
		t.Errorf("outbox not drained: %d", p.Buffered())
	}
}

func TestRealPublisherReplayKeepsOrder(t *testing.T) {
	p, client := newTestPublisher()
	p.Publish(phaseEvent(logic.PhaseGreenRight, 1))
	p.Publish(phaseEvent(logic.PhaseYellowRight, 1))

	// The main loop publishes while the first queued message is going out.
	client.onPublish = func(n int) {
		if n == 1 {
			p.Publish(phaseEvent(logic.PhaseGreenLeft, 1))
		}
	}
	p.onConnect(client)

	msgs := client.messages()
	if len(msgs) != 3 {
		t.Fatalf("sent: got %d messages, want 3", len(msgs))
	}
	want := []string{"GREEN_RIGHT", "YELLOW_RIGHT", "GREEN_LEFT"}
	for i, w := range want {
		if got := phaseOf(t, msgs[i]); got != w {
			t.Errorf("message %d: got %s, want %s", i, got, w)
		}
	}

	// Replay finished, so publishing goes straight out again.
	client.onPublish = nil
	p.Publish(phaseEvent(logic.PhaseYellowLeft, 1))
	if got := len(client.messages()); got != 4 {
		t.Errorf("direct publish after replay: got %d messages, want 4", got)
	}
}

func TestRealPublisherReconnectAnnounces(t *testing.T) {
	p, client := newTestPublisher()
	p.onConnect(client)
	p.onConnectionLost(client, nil)
	p.Publish(phaseEvent(logic.PhaseGreenLeft, 2))

	p.onConnect(client)

	msgs := client.messages()
	if len(msgs) != 2 {
		t.Fatalf("sent: got %+v", msgs)
	}
	if msgs[0].topic != TopicSystem {
		t.Errorf("first message topic: got %s, want %s", msgs[0].topic, TopicSystem)
	}
	var sys SystemPayload
	if err := json.Unmarshal([]byte(msgs[0].payload), &sys); err != nil || sys.System.Event != "RECONNECTED" {
		t.Errorf("reconnect event: got %s (%v)", msgs[0].payload, err)
	}
	if msgs[1].topic != Topic || phaseOf(t, msgs[1]) != "GREEN_LEFT" {
		t.Errorf("replayed event: got %+v", msgs[1])
	}
}

func TestWillPayloadHasNoTimestamp(t *testing.T) {
	got, err := willPayload()
	if err != nil {
		t.Fatalf("will payload: %v", err)
	}
	want := `{"system":{"event":"SHUTDOWN","reason":"MQTT_DISCONNECT"}}`
	if string(got) != want {
		t.Errorf("will: got %s, want %s", got, want)
	}
}
