package main

import (
	"encoding/json"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sweeney/traffic-light/internal/config"
	"github.com/sweeney/traffic-light/internal/controller"
	"github.com/sweeney/traffic-light/internal/gpio"
	"github.com/sweeney/traffic-light/internal/logging"
	"github.com/sweeney/traffic-light/internal/mqtt"
	"github.com/sweeney/traffic-light/internal/serial"
	"github.com/sweeney/traffic-light/internal/status"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type daemonRig struct {
	pins    *gpio.FakePins
	port    *serial.FakePort
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	core    *controller.Core
	ctl     *controller.Controller
}

func newDaemonRig(t *testing.T, opts controller.Options) *daemonRig {
	t.Helper()
	r := &daemonRig{
		pins:    gpio.NewFakePins(),
		port:    serial.NewFakePort(),
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(epoch, status.Config{Broker: "tcp://localhost:1883"}),
	}
	r.core = controller.NewCore(r.pins, gpio.DefaultLayout(), 1000)
	r.ctl = controller.New(r.core, r.port, r.pub, r.tracker, controller.NewFakeClock(epoch), logging.Nop(), opts)
	return r
}

func (r *daemonRig) run(t *testing.T, sig <-chan os.Signal) {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- runDaemon(r.core, r.ctl, r.port, r.pub, r.tracker, time.Millisecond, sig, func() time.Time { return epoch })
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runDaemon returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runDaemon did not return")
	}
}

func shutdownEvents(pub *mqtt.FakePublisher) []mqtt.SystemEvent {
	var out []mqtt.SystemEvent
	for _, se := range pub.SystemEvents {
		if se.Event == "SHUTDOWN" {
			out = append(out, se)
		}
	}
	return out
}

func TestRunDaemonShutdownSIGTERM(t *testing.T) {
	r := newDaemonRig(t, controller.Options{})
	sig := make(chan os.Signal, 1)
	sig <- syscall.SIGTERM

	r.run(t, sig)

	se := shutdownEvents(r.pub)
	if len(se) != 1 {
		t.Fatalf("expected 1 SHUTDOWN event, got %d", len(se))
	}
	if se[0].Reason != "SIGTERM" {
		t.Errorf("reason: got %q, want SIGTERM", se[0].Reason)
	}
	if !se[0].Retained {
		t.Error("expected Retained=true for SHUTDOWN")
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(se[0].RawPayload, &sj); err != nil {
		t.Fatalf("invalid SHUTDOWN payload: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" || sj.Status.Reason != "SIGTERM" {
		t.Errorf("payload event/reason: %q/%q", sj.Status.Event, sj.Status.Reason)
	}
}

func TestRunDaemonShutdownSIGINT(t *testing.T) {
	r := newDaemonRig(t, controller.Options{})
	sig := make(chan os.Signal, 1)
	sig <- syscall.SIGINT

	r.run(t, sig)

	se := shutdownEvents(r.pub)
	if len(se) != 1 || se[0].Reason != "SIGINT" {
		t.Fatalf("expected one SHUTDOWN with SIGINT, got %+v", se)
	}
}

func TestRunDaemonStopsAfterCycles(t *testing.T) {
	r := newDaemonRig(t, controller.Options{Cycles: 2})

	r.run(t, make(chan os.Signal))

	if got := len(r.pub.EventsOfType("PHASE")); got != 8 {
		t.Errorf("phase events: got %d, want 8", got)
	}
	se := shutdownEvents(r.pub)
	if len(se) != 1 || se[0].Reason != "STOPPED" {
		t.Fatalf("expected one SHUTDOWN with STOPPED, got %+v", se)
	}
}

func TestRunDaemonShutdownPublishError(t *testing.T) {
	r := newDaemonRig(t, controller.Options{Cycles: 1})
	r.pub.PublishSystemError = errors.New("broker unavailable")

	// Publish failure is logged, never returned.
	r.run(t, make(chan os.Signal))

	if len(r.pub.SystemEvents) != 0 {
		t.Errorf("expected no recorded system events, got %d", len(r.pub.SystemEvents))
	}
}

func TestPublishShutdownWithoutTracker(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	publishShutdown(pub, nil, "SIGTERM", func() time.Time { return epoch })

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	want := `{"system":{"timestamp":"2026-01-01T00:00:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if got := string(pub.SystemPayloads[0]); got != want {
		t.Errorf("payload:\ngot:  %s\nwant: %s", got, want)
	}
}

func TestPublishShutdownRecordsConnection(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	tracker := status.NewTracker(epoch, status.Config{})

	publishShutdown(pub, tracker, "SIGINT", func() time.Time { return epoch })

	if !tracker.Snapshot().MQTTConnected {
		t.Error("tracker should record the publisher connection")
	}
}

// queuedFake is a fake publisher that still holds undelivered events.
type queuedFake struct {
	*mqtt.FakePublisher
	queued int
}

func (q queuedFake) Buffered() int { return q.queued }

func TestPublishShutdownReportsQueuedEvents(t *testing.T) {
	zc, logs := observer.New(zap.WarnLevel)
	prev := logger
	logger = zap.New(zc).Sugar()
	defer func() { logger = prev }()

	pub := queuedFake{FakePublisher: mqtt.NewFakePublisher(), queued: 3}
	publishShutdown(pub, nil, "SIGTERM", func() time.Time { return epoch })

	entries := logs.FilterMessage("events never reached the broker").All()
	if len(entries) != 1 {
		t.Fatalf("log entries: got %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["queued"]; got != int64(3) {
		t.Errorf("queued: got %v, want 3", got)
	}
	if len(pub.SystemEvents) != 1 {
		t.Errorf("shutdown still published: got %d system events", len(pub.SystemEvents))
	}
}

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v): got %q, want %q", tt.sig, got, tt.want)
		}
	}
}

func TestResolveWSBroker(t *testing.T) {
	tests := []struct {
		ws, broker, want string
	}{
		{"=broker", "tcp://192.168.1.200:1883", "ws://192.168.1.200:9001"},
		{"=broker", "tcp://mqtt.local:1883", "ws://mqtt.local:9001"},
		{"off", "tcp://192.168.1.200:1883", ""},
		{"ws://other:8080/mqtt", "tcp://192.168.1.200:1883", "ws://other:8080/mqtt"},
		{"=broker", "://bad", ""},
	}
	for _, tt := range tests {
		if got := resolveWSBroker(tt.ws, tt.broker); got != tt.want {
			t.Errorf("resolveWSBroker(%q, %q): got %q, want %q", tt.ws, tt.broker, got, tt.want)
		}
	}
}

func TestStatusConfig(t *testing.T) {
	cfg := config.Config{
		Tick:      100 * time.Millisecond,
		Debounce:  250 * time.Millisecond,
		Heartbeat: 15 * time.Minute,
		Scale:     2,
		Broker:    "tcp://b:1883",
		Serial:    "/dev/ttyAMA0",
		HTTPAddr:  ":8080",
		WSBroker:  "ws://b:9001",
	}
	sc := statusConfig(cfg)
	if sc.TickMs != 100 || sc.DebounceMs != 250 || sc.HeartbeatMs != 900000 {
		t.Errorf("durations: %+v", sc)
	}
	if sc.Scale != 2 || sc.Serial != "/dev/ttyAMA0" || sc.WSBroker != "ws://b:9001" {
		t.Errorf("fields: %+v", sc)
	}
}

func TestOpenPortStdio(t *testing.T) {
	port, err := openPort(config.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := port.(*serial.StdioPort); !ok {
		t.Errorf("expected stdio port, got %T", port)
	}
}

func TestLevelString(t *testing.T) {
	if levelString(true) != "HIGH" || levelString(false) != "LOW" {
		t.Error("unexpected level strings")
	}
}
