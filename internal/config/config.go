// Package config loads daemon configuration from a TOML file.
// Every field has a default, so an empty or missing file section is valid.
package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/switch-sensor/internal/gpio"
	"github.com/sweeney/switch-sensor/internal/logic"
)

// Defaults.
const (
	DefaultName        = "button"
	DefaultPollMs      = 5
	DefaultHeartbeatMs = 15 * 60 * 1000
	DefaultHTTPAddr    = ":80"
	DefaultLogLevel    = "info"

	DefaultBroker      = "tcp://192.168.1.200:1883"
	DefaultClientID    = "switch-sensor"
	DefaultTopicPrefix = "home/switch"
	DefaultBufferSize  = 100
)

// Config is the full daemon configuration.
type Config struct {
	// Name identifies the switch in MQTT topics and the status page.
	Name string `toml:"name"`
	// Mode is "momentary" or "toggle".
	Mode string `toml:"mode"`

	Chip      string `toml:"chip"`
	Pin       int    `toml:"pin"`
	ActiveLow bool   `toml:"active_low"`

	PollMs        int64  `toml:"poll_ms"`
	LongPressMs   uint32 `toml:"long_press_ms"`
	DoublePressMs uint32 `toml:"double_press_ms"`
	ChatterMs     uint32 `toml:"chatter_ms"`
	HeartbeatMs   int64  `toml:"heartbeat_ms"`

	HTTPAddr string `toml:"http_addr"`
	LogLevel string `toml:"log_level"`

	MQTT MQTT `toml:"mqtt"`
}

// MQTT holds broker settings.
type MQTT struct {
	Broker      string `toml:"broker"`
	ClientID    string `toml:"client_id"`
	TopicPrefix string `toml:"topic_prefix"`
	// BufferSize is how many messages are kept while the broker is unreachable.
	BufferSize int `toml:"buffer_size"`
}

// Default returns the built-in configuration.
func Default() Config {
	th := logic.DefaultThresholds()
	return Config{
		Name:          DefaultName,
		Mode:          logic.ModeMomentary.String(),
		Chip:          gpio.DefaultChip,
		Pin:           gpio.DefaultPin,
		ActiveLow:     true,
		PollMs:        DefaultPollMs,
		LongPressMs:   th.LongPress,
		DoublePressMs: th.DoublePress,
		ChatterMs:     th.Chatter,
		HeartbeatMs:   DefaultHeartbeatMs,
		HTTPAddr:      DefaultHTTPAddr,
		LogLevel:      DefaultLogLevel,
		MQTT: MQTT{
			Broker:      DefaultBroker,
			ClientID:    DefaultClientID,
			TopicPrefix: DefaultTopicPrefix,
			BufferSize:  DefaultBufferSize,
		},
	}
}

// Load reads the TOML file at path over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		log.Warnf("config: unknown key %q in %s", key.String(), path)
	}
	return cfg, nil
}

// Decode reads TOML from r over the defaults.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Encode writes cfg as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Name == "" {
		return errors.New("name must not be empty")
	}
	if _, err := logic.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Pin < 0 {
		return fmt.Errorf("invalid pin %d", c.Pin)
	}
	if c.PollMs <= 0 {
		return fmt.Errorf("poll_ms must be positive, got %d", c.PollMs)
	}
	if c.ChatterMs > logic.MaxChatterMs {
		return fmt.Errorf("chatter_ms must be at most %d, got %d", logic.MaxChatterMs, c.ChatterMs)
	}
	if c.HeartbeatMs < 0 {
		return fmt.Errorf("heartbeat_ms must not be negative, got %d", c.HeartbeatMs)
	}
	if c.MQTT.Broker == "" {
		return errors.New("mqtt.broker must not be empty")
	}
	if c.MQTT.BufferSize <= 0 {
		return fmt.Errorf("mqtt.buffer_size must be positive, got %d", c.MQTT.BufferSize)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// SwitchMode returns the parsed mode. Call Validate first.
func (c Config) SwitchMode() logic.Mode {
	m, _ := logic.ParseMode(c.Mode)
	return m
}

// Thresholds returns the timing windows for the switch.
func (c Config) Thresholds() logic.Thresholds {
	return logic.Thresholds{
		LongPress:   c.LongPressMs,
		DoublePress: c.DoublePressMs,
		Chatter:     c.ChatterMs,
	}
}

// Poll returns the GPIO polling interval.
func (c Config) Poll() time.Duration {
	return time.Duration(c.PollMs) * time.Millisecond
}

// Heartbeat returns the heartbeat interval; zero disables heartbeats.
func (c Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatMs) * time.Millisecond
}

// EventsTopic is where gesture events are published.
func (c Config) EventsTopic() string {
	return c.MQTT.TopicPrefix + "/" + c.Name + "/events"
}

// SystemTopic is where lifecycle events are published.
func (c Config) SystemTopic() string {
	return c.MQTT.TopicPrefix + "/" + c.Name + "/system"
}
