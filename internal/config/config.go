// Package config loads daemon settings from the environment.
// Command-line flags in cmd/traffic-light default to these values.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env"

	"github.com/sweeney/traffic-light/internal/gpio"
	"github.com/sweeney/traffic-light/internal/logic"
	"github.com/sweeney/traffic-light/internal/status"
)

// Config holds every tunable of the daemon.
type Config struct {
	Chip      string        `env:"TRAFFIC_GPIO_CHIP" envDefault:"gpiochip0"`
	Tick      time.Duration `env:"TRAFFIC_TICK" envDefault:"100ms"`
	Debounce  time.Duration `env:"TRAFFIC_DEBOUNCE" envDefault:"200ms"`
	Scale     int           `env:"TRAFFIC_SCALE" envDefault:"1"`
	Serial    string        `env:"TRAFFIC_SERIAL"`
	Baud      int           `env:"TRAFFIC_BAUD" envDefault:"9600"`
	Broker    string        `env:"TRAFFIC_BROKER" envDefault:"tcp://localhost:1883"`
	Heartbeat time.Duration `env:"TRAFFIC_HEARTBEAT" envDefault:"15m"`
	HTTPAddr  string        `env:"TRAFFIC_HTTP" envDefault:":8080"`
	WSBroker  string        `env:"TRAFFIC_WS_BROKER" envDefault:"=broker"`
	LogLevel  string        `env:"TRAFFIC_LOG_LEVEL" envDefault:"info"`

	PinRedLeft        int `env:"TRAFFIC_PIN_RED_LEFT" envDefault:"9"`
	PinYellowLeft     int `env:"TRAFFIC_PIN_YELLOW_LEFT" envDefault:"8"`
	PinGreenLeft      int `env:"TRAFFIC_PIN_GREEN_LEFT" envDefault:"10"`
	PinRedRight       int `env:"TRAFFIC_PIN_RED_RIGHT" envDefault:"12"`
	PinYellowRight    int `env:"TRAFFIC_PIN_YELLOW_RIGHT" envDefault:"11"`
	PinGreenRight     int `env:"TRAFFIC_PIN_GREEN_RIGHT" envDefault:"6"`
	PinLeftSense      int `env:"TRAFFIC_PIN_LEFT_SENSE" envDefault:"4"`
	PinRightSense     int `env:"TRAFFIC_PIN_RIGHT_SENSE" envDefault:"7"`
	PinLeftIndicator  int `env:"TRAFFIC_PIN_LEFT_INDICATOR" envDefault:"5"`
	PinRightIndicator int `env:"TRAFFIC_PIN_RIGHT_INDICATOR" envDefault:"15"`
}

// Load parses Config from the environment. It only fails on values that do
// not parse; call Validate once any overrides have been applied.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return c, nil
}

// Validate rejects settings the controller cannot run with.
func (c Config) Validate() error {
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %v", c.Tick)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %v", c.Debounce)
	}
	// The edge counter is 32-bit microseconds.
	if c.Debounce.Microseconds() > int64(^uint32(0)) {
		return fmt.Errorf("debounce %v exceeds the edge counter range", c.Debounce)
	}
	if c.Scale < 1 {
		return fmt.Errorf("scale must be at least 1, got %d", c.Scale)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat)
	}
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}

	seen := make(map[gpio.Pin]bool)
	l := c.Layout()
	for _, p := range append(l.Outputs(), l.Sense[logic.Left], l.Sense[logic.Right]) {
		if p < 0 {
			return fmt.Errorf("pin %d is negative", p)
		}
		if seen[p] {
			return fmt.Errorf("pin %d assigned twice", p)
		}
		seen[p] = true
	}
	return nil
}

// DebounceThreshold converts Debounce to edge-counter units.
func (c Config) DebounceThreshold() uint32 {
	return uint32(c.Debounce.Microseconds())
}

// Layout returns the configured pin assignment.
func (c Config) Layout() gpio.Layout {
	return gpio.Layout{
		RedLeft:     gpio.Pin(c.PinRedLeft),
		YellowLeft:  gpio.Pin(c.PinYellowLeft),
		GreenLeft:   gpio.Pin(c.PinGreenLeft),
		RedRight:    gpio.Pin(c.PinRedRight),
		YellowRight: gpio.Pin(c.PinYellowRight),
		GreenRight:  gpio.Pin(c.PinGreenRight),
		Sense:       [2]gpio.Pin{gpio.Pin(c.PinLeftSense), gpio.Pin(c.PinRightSense)},
		Indicator:   [2]gpio.Pin{gpio.Pin(c.PinLeftIndicator), gpio.Pin(c.PinRightIndicator)},
	}
}

// Network mirrors the variables pi-helper writes to /run/pi-helper.env.
type Network struct {
	Type       string `env:"NETWORK_TYPE"`
	IP         string `env:"NETWORK_IP"`
	Status     string `env:"NETWORK_STATUS"`
	Gateway    string `env:"NETWORK_GATEWAY"`
	WifiStatus string `env:"NETWORK_WIFI_STATUS"`
	SSID       string `env:"NETWORK_WIFI_SSID"`
}

// LoadNetwork returns the current network info, or nil when pi-helper has not
// published any.
func LoadNetwork() *status.NetworkInfo {
	var n Network
	if err := env.Parse(&n); err != nil || n.Status == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       n.Type,
		IP:         n.IP,
		Status:     n.Status,
		Gateway:    n.Gateway,
		WifiStatus: n.WifiStatus,
		SSID:       n.SSID,
	}
}
