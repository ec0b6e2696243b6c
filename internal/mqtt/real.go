package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/switch-sensor/internal/logic"
)

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	Name        string // switch name carried in every gesture payload
	EventsTopic string
	SystemTopic string
	BufferSize  int
}

// RealPublisher publishes to an actual MQTT broker. While the connection is
// down, messages are kept in a ring buffer and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	opts   Options
	now    func() time.Time

	mu          sync.Mutex
	buffer      *ringBuffer
	replaying   bool      // onConnect is draining buffer
	connectedAt time.Time // zero until the first successful connection
}

func newPublisher(opts Options) *RealPublisher {
	return &RealPublisher{
		opts:   opts,
		now:    time.Now,
		buffer: newRingBuffer(opts.BufferSize),
	}
}

// NewRealPublisher creates a publisher for the given broker. If the broker is
// not reachable within the connect timeout, the publisher is still returned
// and keeps retrying in the background.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	p := newPublisher(opts)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: p.now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(opts.SystemTopic, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.WithField("broker", opts.Broker).Warn("mqtt: broker not reachable yet, buffering until connected")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect runs on every successful (re)connection. After the first, it
// announces the reconnect, then replays anything buffered while offline.
// paho marks the connection open before calling this, so publish keeps
// buffering until the replay has emptied the buffer.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := !p.connectedAt.IsZero()
	p.connectedAt = p.now()
	p.replaying = true
	pending := p.buffer.len()
	p.mu.Unlock()

	log.WithFields(log.Fields{
		"broker":   p.opts.Broker,
		"buffered": pending,
	}).Info("mqtt: connected")

	if reconnect {
		p.announceReconnect()
	}

	replayed, dropped := 0, 0
	for {
		p.mu.Lock()
		if !p.client.IsConnectionOpen() {
			// Lost again mid-replay; the next onConnect picks up the rest.
			p.replaying = false
			p.mu.Unlock()
			return
		}
		msgs, d := p.buffer.drainAll()
		dropped += d
		if len(msgs) == 0 {
			p.replaying = false
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()

		for _, m := range msgs {
			if err := p.send(m); err != nil {
				log.WithError(err).WithField("topic", m.topic).Warn("mqtt: replay buffered message")
			}
		}
		replayed += len(msgs)
	}

	if replayed > 0 || dropped > 0 {
		log.WithFields(log.Fields{
			"replayed": replayed,
			"dropped":  dropped,
		}).Info("mqtt: buffer replayed")
	}
}

// announceReconnect sends RECONNECTED ahead of any replayed messages.
func (p *RealPublisher) announceReconnect() {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
	if err == nil {
		err = p.send(bufferedMsg{topic: p.opts.SystemTopic, payload: payload, qos: 1})
	}
	if err != nil {
		log.WithError(err).Warn("mqtt: publish reconnect event")
	}
}

func (p *RealPublisher) onConnectionLost(c paho.Client, err error) {
	log.WithError(err).Warn("mqtt: connection lost, buffering")
}

// Publish sends a gesture event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(p.opts.Name, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: p.opts.EventsTopic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(bufferedMsg{
		topic:    p.opts.SystemTopic,
		payload:  payload,
		qos:      1,
		retained: event.Retained,
	})
}

// publish sends m now, or buffers it if the connection is down or older
// messages are still waiting to be replayed.
func (p *RealPublisher) publish(m bufferedMsg) error {
	p.mu.Lock()
	if p.replaying || p.buffer.len() > 0 || !p.client.IsConnectionOpen() {
		p.buffer.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(m)
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// IsConnected reports whether the broker connection is currently open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}
