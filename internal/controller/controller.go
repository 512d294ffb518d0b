package controller

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/traffic-light/internal/command"
	"github.com/sweeney/traffic-light/internal/gpio"
	"github.com/sweeney/traffic-light/internal/logic"
	"github.com/sweeney/traffic-light/internal/mqtt"
	"github.com/sweeney/traffic-light/internal/status"
)

// Greeting is written to the serial line when the controller starts.
const Greeting = "Traffic light controller ready" + command.LineEnding +
	"Type 'help' for a list of commands" + command.LineEnding

// Options tunes a Controller.
type Options struct {
	// Scale divides every phase duration. Values below 1 mean 1.
	Scale int
	// Heartbeat is the interval between HEARTBEAT system events (0 disables).
	Heartbeat time.Duration
	// Cycles stops Run after this many complete cycles (0 runs until ctx is done).
	Cycles int
	// Greet writes Greeting to the serial line on start.
	Greet bool
	// Network, if set, is polled for network info on every heartbeat.
	Network func() *status.NetworkInfo
}

// Controller is the main loop: it steps through the four phases, adapting
// the green times to the current levels, and services serial commands while
// it waits.
type Controller struct {
	core    *Core
	interp  *command.Interpreter
	port    io.Writer
	pub     mqtt.Publisher
	tracker *status.Tracker
	clock   Clock
	log     *zap.SugaredLogger
	opts    Options

	phase     logic.Phase
	cycle     int
	durations [logic.NumPhases]time.Duration
	deadline  time.Time
	running   bool
	left      logic.Level
	right     logic.Level
	counts    logic.EventCounts
	heartbeat *logic.Heartbeat
	discarded int
	pinErrors int // last failure count reported in the log
}

// New creates a Controller. tracker may be nil.
func New(core *Core, port io.Writer, pub mqtt.Publisher, tracker *status.Tracker, clock Clock, log *zap.SugaredLogger, opts Options) *Controller {
	return &Controller{
		core:    core,
		interp:  command.New(core),
		port:    port,
		pub:     pub,
		tracker: tracker,
		clock:   clock,
		log:     log,
		opts:    opts,
		cycle:   1,
	}
}

// Run cycles the phases until ctx is done or the configured number of cycles
// has completed. It returns nil on a normal stop.
func (c *Controller) Run(ctx context.Context) error {
	c.heartbeat = logic.NewHeartbeat(c.clock.Now())
	c.left, c.right = c.core.Levels()
	if c.opts.Greet {
		c.reply(Greeting)
	}

	p := logic.PhaseGreenRight
	for {
		c.observeLevels()
		// Green times are re-read at the start of each half cycle.
		if p == logic.PhaseGreenRight || p == logic.PhaseGreenLeft {
			c.durations = logic.Durations(c.left, c.right, c.opts.Scale)
		}
		c.enter(p)
		if err := c.delay(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.log.Infow("phase cycle stopped", "phase", p.String(), "cycle", c.cycle)
				return nil
			}
			return err
		}
		if p = p.Next(); p != logic.PhaseGreenRight {
			continue
		}
		c.counts.Cycles++
		if c.opts.Cycles > 0 && c.counts.Cycles >= c.opts.Cycles {
			c.update()
			return nil
		}
		c.cycle++
	}
}

// enter switches the lamps to phase p and publishes the phase event.
func (c *Controller) enter(p logic.Phase) {
	c.phase = p
	c.running = true
	d := c.durations[p]
	c.deadline = c.clock.Now().Add(d)

	pins, layout := c.core.Pins()
	if err := gpio.ApplyLights(pins, layout, logic.LightsFor(p)); err != nil {
		c.log.Errorw("failed to set lights", "phase", p.String(), "error", err)
	}
	c.counts.Phases++

	c.log.Infow("phase", "phase", p.String(), "duration", d, "left", c.left.String(), "right", c.right.String(), "cycle", c.cycle)
	c.publish(logic.Event{
		Timestamp: c.clock.Now(),
		Type:      logic.EventPhase,
		Phase:     p,
		Duration:  d,
		Left:      c.left,
		Right:     c.right,
		Cycle:     c.cycle,
	})
	c.update()
}

// delay blocks until the current phase deadline, servicing command lines
// whenever the line buffer signals.
func (c *Controller) delay(ctx context.Context) error {
	wake := c.core.Lines().Ready()
	for {
		remaining := c.deadline.Sub(c.clock.Now())
		if remaining <= 0 {
			return nil
		}
		woken, err := c.clock.Sleep(ctx, remaining, wake)
		if err != nil {
			return err
		}
		if woken {
			c.serviceLines()
		}
		c.observeLevels()
		c.checkPinErrors()
		c.checkHeartbeat()
		c.update()
	}
}

// checkPinErrors logs indicator writes that failed in the tick or edge
// handlers since the last check.
func (c *Controller) checkPinErrors() {
	n := c.core.PinErrors()
	if n == c.pinErrors {
		return
	}
	c.log.Errorw("indicator write failed", "failures", n-c.pinErrors, "total", n)
	c.pinErrors = n
}

// serviceLines executes every complete buffered line.
func (c *Controller) serviceLines() {
	lines := c.core.Lines()
	for {
		line, ok := lines.TakeLine()
		if !ok {
			break
		}
		if len(line) == 0 {
			// Second half of a CRLF pair, or a bare terminator.
			continue
		}
		reply := c.interp.Execute(string(line))
		c.log.Infow("command", "line", string(line), "reply", strings.TrimSuffix(reply, command.LineEnding))
		c.reply(reply)
	}

	// A full buffer without a terminator can never yield a line.
	if lines.Full() && !lines.LineAvailable() {
		n := lines.Discard()
		c.discarded += n
		c.log.Warnw("discarded unterminated input", "bytes", n)
	}
}

func (c *Controller) reply(s string) {
	if c.port == nil {
		return
	}
	if _, err := io.WriteString(c.port, s); err != nil {
		c.log.Warnw("serial write failed", "error", err)
	}
}

// observeLevels publishes an event when either level changed since the last look.
func (c *Controller) observeLevels() {
	left, right := c.core.Levels()
	if left == c.left && right == c.right {
		return
	}
	c.left, c.right = left, right
	c.counts.Intensity++
	c.log.Infow("intensity changed", "left", left.String(), "right", right.String())
	c.publish(logic.Event{
		Timestamp: c.clock.Now(),
		Type:      logic.EventIntensity,
		Phase:     c.phase,
		Left:      left,
		Right:     right,
		Cycle:     c.cycle,
	})
}

func (c *Controller) publish(e logic.Event) {
	if c.pub == nil {
		return
	}
	if err := c.pub.Publish(e); err != nil {
		// Publishing never interrupts the phase cycle.
		c.log.Warnw("publish failed", "event", string(e.Type), "error", err)
	}
}

func (c *Controller) checkHeartbeat() {
	hb := c.heartbeat.Check(c.clock.Now(), c.opts.Heartbeat, c.Counts())
	if hb == nil {
		return
	}
	c.log.Infow("heartbeat", "uptime", hb.Uptime, "phases", hb.Counts.Phases, "cycles", hb.Counts.Cycles, "commands", hb.Counts.Commands)
	if c.pub == nil {
		return
	}

	event := mqtt.SystemEvent{Timestamp: hb.Timestamp, Event: "HEARTBEAT"}
	if c.tracker != nil {
		if c.opts.Network != nil {
			if net := c.opts.Network(); net != nil {
				c.tracker.SetNetwork(net)
			}
		}
		c.update()
		event.RawPayload = status.FormatStatusEvent(c.tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := c.pub.PublishSystem(event); err != nil {
		c.log.Warnw("heartbeat publish failed", "error", err)
	}
}

// Counts returns the event counters since startup.
func (c *Controller) Counts() logic.EventCounts {
	counts := c.counts
	counts.EdgesOK, counts.EdgesDenied = c.core.EdgeCounts()
	counts.Commands, counts.Unknown = c.interp.Counts()
	counts.Dropped = c.core.Lines().Dropped() + c.discarded
	counts.PinErrors = c.core.PinErrors()
	return counts
}

// State returns the controller state as shown by the status tracker.
func (c *Controller) State() status.State {
	remaining := c.deadline.Sub(c.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return status.State{
		Left:      c.left,
		Right:     c.right,
		LeftOn:    c.core.IndicatorOn(logic.Left),
		RightOn:   c.core.IndicatorOn(logic.Right),
		Phase:     c.phase,
		Remaining: remaining,
		Cycle:     c.cycle,
		Running:   c.running,
		Counts:    c.Counts(),
	}
}

func (c *Controller) update() {
	if c.tracker == nil {
		return
	}
	c.tracker.Update(c.State())
	if cs, ok := c.pub.(mqtt.ConnectionStatus); ok {
		c.tracker.SetMQTTConnected(cs.IsConnected())
	}
}
