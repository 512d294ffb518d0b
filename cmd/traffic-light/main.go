// Command traffic-light runs a two-direction traffic signal on GPIO lines,
// adapting green times to sensed intensity and accepting serial commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sweeney/traffic-light/internal/config"
	"github.com/sweeney/traffic-light/internal/controller"
	"github.com/sweeney/traffic-light/internal/gpio"
	"github.com/sweeney/traffic-light/internal/logging"
	"github.com/sweeney/traffic-light/internal/mqtt"
	"github.com/sweeney/traffic-light/internal/serial"
	"github.com/sweeney/traffic-light/internal/status"
	"github.com/sweeney/traffic-light/internal/web"
)

var logger = logging.New("main")

func main() {
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalw("unreadable environment", "error", err)
	}

	flag.StringVar(&cfg.Chip, "chip", cfg.Chip, "GPIO chip name")
	flag.DurationVar(&cfg.Tick, "tick", cfg.Tick, "Indicator tick period")
	flag.DurationVar(&cfg.Debounce, "debounce", cfg.Debounce, "Minimum spacing of sense edges")
	flag.IntVar(&cfg.Scale, "scale", cfg.Scale, "Divide every phase duration by this factor")
	flag.StringVar(&cfg.Serial, "serial", cfg.Serial, "Serial device for commands (empty for stdin/stdout)")
	flag.IntVar(&cfg.Baud, "baud", cfg.Baud, "Serial baud rate")
	flag.StringVar(&cfg.Broker, "broker", cfg.Broker, "MQTT broker address")
	flag.DurationVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "Heartbeat interval (0 to disable)")
	flag.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP status address (empty to disable)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log levels, e.g. "debug" or "info,mqtt=debug"`)
	flag.StringVar(&cfg.WSBroker, "ws-broker", cfg.WSBroker, `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	flag.IntVar(&cfg.PinLeftSense, "pin-left-sense", cfg.PinLeftSense, "BCM pin of the left intensity sensor")
	flag.IntVar(&cfg.PinRightSense, "pin-right-sense", cfg.PinRightSense, "BCM pin of the right intensity sensor")
	printPins := flag.Bool("print-pins", false, "Print the sense inputs and exit")

	flag.Parse()

	if err := cfg.Validate(); err != nil {
		logger.Fatalw("invalid configuration", "error", err)
	}
	if err := logging.Configure(cfg.LogLevel); err != nil {
		logger.Fatalw("invalid configuration", "error", err)
	}
	cfg.WSBroker = resolveWSBroker(cfg.WSBroker, cfg.Broker)

	if err := run(cfg, *printPins); err != nil {
		logger.Fatalw("fatal", "error", err)
	}
}

func run(cfg config.Config, printPins bool) error {
	pins, err := gpio.NewRealPins(cfg.Chip, cfg.Layout())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pins.Close()

	if printPins {
		left, right, err := pins.ReadSense()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("Left: %s, Right: %s\n", levelString(left), levelString(right))
		return nil
	}

	port, err := openPort(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	publisher := mqtt.NewRealPublisher(cfg.Broker, logging.New("mqtt"))
	defer publisher.Close()

	// Tracker exists before STARTUP so the event carries a snapshot.
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := config.LoadNetwork(); net != nil {
		tracker.SetNetwork(net)
	}

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		logger.Warnw("failed to publish startup event", "error", err)
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorw("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Infow("http status server listening", "addr", cfg.HTTPAddr)
	}

	core := controller.NewCore(pins, cfg.Layout(), cfg.DebounceThreshold())
	if err := pins.WatchEdges(core.Edge); err != nil {
		return fmt.Errorf("watch sense inputs: %w", err)
	}

	ctl := controller.New(core, port, publisher, tracker, controller.RealClock{}, logging.New("controller"), controller.Options{
		Scale:     cfg.Scale,
		Heartbeat: cfg.Heartbeat,
		Greet:     true,
		Network:   config.LoadNetwork,
	})

	logger.Infow("started",
		"tick", cfg.Tick, "debounce", cfg.Debounce, "scale", cfg.Scale,
		"serial", cfg.Serial, "broker", cfg.Broker, "heartbeat", cfg.Heartbeat)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runDaemon(core, ctl, port, publisher, tracker, cfg.Tick, sigCh, time.Now)
}

// runDaemon starts the tick and receive contexts, runs the phase cycle until
// a signal arrives, then publishes SHUTDOWN.
func runDaemon(core *controller.Core, ctl *controller.Controller, rx io.Reader, pub mqtt.Publisher, tracker *status.Tracker, tick time.Duration, sig <-chan os.Signal, now func() time.Time) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reasons := make(chan string, 1)
	go func() {
		select {
		case s := <-sig:
			logger.Infow("received signal, shutting down", "signal", s.String())
			reasons <- signalName(s)
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tickLoop(ctx, tick, core.Tick)
	}()

	// The receiver is not waited for: a read on stdin cannot be interrupted.
	go func() {
		if err := serial.Pump(ctx, rx, core.Receive); err != nil {
			logger.Errorw("serial receive failed", "error", err)
			return
		}
		if ctx.Err() == nil {
			logger.Infow("serial input closed")
		}
	}()

	err := ctl.Run(ctx)
	cancel()
	wg.Wait()

	reason := "STOPPED"
	select {
	case reason = <-reasons:
	default:
	}
	publishShutdown(pub, tracker, reason, now)
	return err
}

// tickLoop calls fn once per period until ctx is done.
func tickLoop(ctx context.Context, period time.Duration, fn func()) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// syncPublisher is implemented by publishers that can wait for the broker.
type syncPublisher interface {
	PublishSystemSync(event mqtt.SystemEvent, timeout time.Duration) error
}

// queuedPublisher reports messages still waiting for a broker connection.
type queuedPublisher interface {
	Buffered() int
}

func publishShutdown(pub mqtt.Publisher, tracker *status.Tracker, reason string, now func() time.Time) {
	if qp, ok := pub.(queuedPublisher); ok {
		if n := qp.Buffered(); n > 0 {
			logger.Warnw("events never reached the broker", "queued", n)
		}
	}

	event := mqtt.SystemEvent{
		Timestamp: now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if tracker != nil {
		if cs, ok := pub.(mqtt.ConnectionStatus); ok {
			tracker.SetMQTTConnected(cs.IsConnected())
		}
		event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", reason)
	}

	var err error
	if sp, ok := pub.(syncPublisher); ok {
		err = sp.PublishSystemSync(event, 2*time.Second)
	} else {
		err = pub.PublishSystem(event)
	}
	if err != nil {
		logger.Warnw("failed to publish shutdown event", "error", err)
		return
	}
	logger.Infow("published shutdown event", "reason", reason)
}

func openPort(cfg config.Config) (serial.Port, error) {
	if cfg.Serial == "" {
		return serial.NewStdioPort(), nil
	}
	sc := serial.DefaultConfig(cfg.Serial)
	sc.Baud = cfg.Baud
	port, err := serial.Open(sc)
	if err != nil {
		return nil, fmt.Errorf("open serial: %w", err)
	}
	return port, nil
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		TickMs:      cfg.Tick.Milliseconds(),
		DebounceMs:  cfg.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Scale:       cfg.Scale,
		Broker:      cfg.Broker,
		Serial:      cfg.Serial,
		HTTPAddr:    cfg.HTTPAddr,
		WSBroker:    cfg.WSBroker,
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		logger.Warnw("ws-broker: cannot parse broker address", "broker", broker, "error", err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
