package mqtt

import "go.uber.org/zap"

// pendingMsg is a serialized message waiting for the broker.
type pendingMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while disconnected. When full, the
// oldest message is evicted so a long outage keeps the most recent
// phase and intensity history. Callers hold RealPublisher.mu.
type outbox struct {
	slots   []pendingMsg
	next    int // slot the next message is written to
	size    int
	dropped int // evicted since the last take
	log     *zap.SugaredLogger
}

func newOutbox(capacity int, log *zap.SugaredLogger) *outbox {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &outbox{slots: make([]pendingMsg, capacity), log: log}
}

func (o *outbox) add(msg pendingMsg) {
	o.slots[o.next] = msg
	o.next = (o.next + 1) % len(o.slots)
	if o.size < len(o.slots) {
		o.size++
		return
	}
	if o.dropped == 0 {
		o.log.Warnw("outbox full, evicting oldest", "capacity", len(o.slots))
	}
	o.dropped++
}

// take empties the outbox and returns its messages oldest first, along
// with the number evicted while they were queued.
func (o *outbox) take() ([]pendingMsg, int) {
	if o.size == 0 {
		return nil, 0
	}
	out := make([]pendingMsg, 0, o.size)
	first := o.next - o.size
	if first < 0 {
		first += len(o.slots)
	}
	for i := 0; i < o.size; i++ {
		out = append(out, o.slots[(first+i)%len(o.slots)])
	}
	dropped := o.dropped
	for i := range o.slots {
		o.slots[i] = pendingMsg{}
	}
	o.next, o.size, o.dropped = 0, 0, 0
	return out, dropped
}

func (o *outbox) len() int { return o.size }
