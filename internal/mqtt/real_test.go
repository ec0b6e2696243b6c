package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/switch-sensor/internal/logic"
)

// fakeToken is an already-completed paho token.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeClient records publishes. Methods not overridden panic via the nil
// embedded interface, which keeps the publisher honest about what it uses.
type fakeClient struct {
	paho.Client
	open         bool
	publishErr   error
	published    []bufferedMsg
	disconnected bool
	onPublish    func() // runs after each recorded publish
}

func (c *fakeClient) IsConnectionOpen() bool { return c.open }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	if c.publishErr == nil {
		c.published = append(c.published, bufferedMsg{
			topic:    topic,
			payload:  payload.([]byte),
			qos:      qos,
			retained: retained,
		})
		if c.onPublish != nil {
			c.onPublish()
		}
	}
	return &fakeToken{err: c.publishErr}
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.open = false
	c.disconnected = true
}

func newTestPublisher(open bool) (*RealPublisher, *fakeClient) {
	p := newPublisher(Options{
		Broker:      "tcp://test:1883",
		ClientID:    "test",
		Name:        "button",
		EventsTopic: "home/switch/button/events",
		SystemTopic: "home/switch/button/system",
		BufferSize:  3,
	})
	p.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	c := &fakeClient{open: open}
	p.client = c
	return p, c
}

func TestRealPublisherPublishConnected(t *testing.T) {
	p, c := newTestPublisher(true)

	err := p.Publish(logic.Event{Timestamp: time.Now(), From: logic.Idle, To: logic.SinglePress})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(c.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(c.published))
	}
	m := c.published[0]
	if m.topic != "home/switch/button/events" {
		t.Errorf("topic: got %s", m.topic)
	}
	if m.qos != 0 || m.retained {
		t.Errorf("gesture events should be QoS 0 not retained, got qos=%d retained=%v", m.qos, m.retained)
	}

	var parsed Payload
	if err := json.Unmarshal(m.payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Switch.Event != "SINGLE_PRESS" || parsed.Switch.Name != "button" {
		t.Errorf("unexpected payload: %s", m.payload)
	}
}

func TestRealPublisherPublishSystemConnected(t *testing.T) {
	p, c := newTestPublisher(true)

	if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := c.published[0]
	if m.topic != "home/switch/button/system" {
		t.Errorf("topic: got %s", m.topic)
	}
	if m.qos != 1 || !m.retained {
		t.Errorf("system events should be QoS 1 and keep Retained, got qos=%d retained=%v", m.qos, m.retained)
	}
}

func TestRealPublisherPublishError(t *testing.T) {
	p, c := newTestPublisher(true)
	c.publishErr = errors.New("broker said no")

	if err := p.Publish(logic.Event{To: logic.SinglePress}); err == nil {
		t.Error("expected publish error")
	}
	if p.Buffered() != 0 {
		t.Errorf("failed live publish should not be buffered, got %d", p.Buffered())
	}
}

func TestRealPublisherBuffersWhileDisconnected(t *testing.T) {
	p, c := newTestPublisher(false)

	for _, to := range []logic.Classification{logic.SinglePress, logic.SingleRelease} {
		if err := p.Publish(logic.Event{To: to}); err != nil {
			t.Fatalf("buffered publish should not fail: %v", err)
		}
	}

	if len(c.published) != 0 {
		t.Fatalf("expected nothing sent while disconnected, got %d", len(c.published))
	}
	if p.Buffered() != 2 {
		t.Errorf("expected 2 buffered, got %d", p.Buffered())
	}
	if p.IsConnected() {
		t.Error("expected IsConnected=false")
	}
}

func TestRealPublisherFirstConnectFlushesBuffer(t *testing.T) {
	p, c := newTestPublisher(false)
	p.Publish(logic.Event{To: logic.SinglePress})
	p.Publish(logic.Event{To: logic.SingleRelease})

	c.open = true
	p.onConnect(c)

	if p.Buffered() != 0 {
		t.Errorf("expected buffer drained, got %d", p.Buffered())
	}
	// First connection: no RECONNECTED, just the two replays in order.
	if len(c.published) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(c.published))
	}
	for i, want := range []string{"SINGLE_PRESS", "SINGLE_RELEASE"} {
		var parsed Payload
		if err := json.Unmarshal(c.published[i].payload, &parsed); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if parsed.Switch.Event != want {
			t.Errorf("replay %d: got %s, want %s", i, parsed.Switch.Event, want)
		}
	}
}

func TestRealPublisherReconnectAnnouncesThenFlushes(t *testing.T) {
	p, c := newTestPublisher(true)
	p.onConnect(c) // initial connection

	c.open = false
	p.Publish(logic.Event{To: logic.LongPress})

	c.open = true
	p.onConnect(c)

	if len(c.published) != 2 {
		t.Fatalf("expected RECONNECTED plus 1 replay, got %d", len(c.published))
	}
	want := `{"system":{"timestamp":"2026-03-01T09:00:00Z","event":"RECONNECTED"}}`
	if string(c.published[0].payload) != want {
		t.Errorf("first publish:\ngot:  %s\nwant: %s", c.published[0].payload, want)
	}
	if c.published[1].topic != "home/switch/button/events" {
		t.Errorf("replay topic: got %s", c.published[1].topic)
	}
}

func publishedEvents(t *testing.T, msgs []bufferedMsg) []string {
	t.Helper()
	var out []string
	for _, m := range msgs {
		var parsed Payload
		if err := json.Unmarshal(m.payload, &parsed); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		out = append(out, parsed.Switch.Event)
	}
	return out
}

func TestRealPublisherHoldsNewEventsUntilReplayed(t *testing.T) {
	p, c := newTestPublisher(false)
	p.Publish(logic.Event{To: logic.SinglePress})

	// paho reports the connection open before OnConnect runs.
	c.open = true
	if err := p.Publish(logic.Event{To: logic.SingleRelease}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.published) != 0 {
		t.Fatalf("new event jumped ahead of the buffer: %d sent before replay", len(c.published))
	}

	p.onConnect(c)

	got := publishedEvents(t, c.published)
	want := []string{"SINGLE_PRESS", "SINGLE_RELEASE"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("send order: got %v, want %v", got, want)
	}
	if p.Buffered() != 0 {
		t.Errorf("expected buffer drained, got %d", p.Buffered())
	}

	// Once replayed, publishes go straight out again.
	p.Publish(logic.Event{To: logic.DoublePress})
	if len(c.published) != 3 || p.Buffered() != 0 {
		t.Errorf("expected direct send after replay, sent=%d buffered=%d", len(c.published), p.Buffered())
	}
}

func TestRealPublisherPublishDuringReplayIsSentAfter(t *testing.T) {
	p, c := newTestPublisher(false)
	p.Publish(logic.Event{To: logic.SinglePress})
	p.Publish(logic.Event{To: logic.SingleRelease})

	injected := false
	c.onPublish = func() {
		if !injected {
			injected = true
			p.Publish(logic.Event{To: logic.DoublePress})
		}
	}

	c.open = true
	p.onConnect(c)

	got := publishedEvents(t, c.published)
	want := "SINGLE_PRESS,SINGLE_RELEASE,DOUBLE_PRESS"
	if strings.Join(got, ",") != want {
		t.Errorf("send order: got %v, want %s", got, want)
	}
	if p.Buffered() != 0 {
		t.Errorf("message left behind in buffer: %d", p.Buffered())
	}
}

func TestRealPublisherConnectionLostMidReplayKeepsRest(t *testing.T) {
	p, c := newTestPublisher(false)
	p.Publish(logic.Event{To: logic.SinglePress})

	c.onPublish = func() {
		if c.open {
			c.open = false
			p.Publish(logic.Event{To: logic.SingleRelease})
		}
	}
	c.open = true
	p.onConnect(c)

	if len(c.published) != 1 {
		t.Fatalf("expected 1 send before the drop, got %d", len(c.published))
	}
	if p.Buffered() != 1 {
		t.Fatalf("expected the newer event kept for the next connection, got %d", p.Buffered())
	}

	c.onPublish = nil
	c.open = true
	p.onConnect(c)

	got := publishedEvents(t, c.published[1:])
	// RECONNECTED goes first on the second connection, then the replay.
	if len(got) != 2 || got[1] != "SINGLE_RELEASE" {
		t.Errorf("second connection sends: got %v", got)
	}
}

func TestRealPublisherBufferOverflowKeepsNewest(t *testing.T) {
	p, c := newTestPublisher(false)
	for _, to := range []logic.Classification{
		logic.SinglePress, logic.SingleRelease, logic.DoublePress, logic.DoubleRelease,
	} {
		p.Publish(logic.Event{To: to})
	}
	if p.Buffered() != 3 {
		t.Fatalf("expected buffer capped at 3, got %d", p.Buffered())
	}

	c.open = true
	p.onConnect(c)

	var parsed Payload
	if err := json.Unmarshal(c.published[0].payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Switch.Event != "SINGLE_RELEASE" {
		t.Errorf("oldest message should have been dropped, first replay is %s", parsed.Switch.Event)
	}
}

func TestRealPublisherClose(t *testing.T) {
	p, c := newTestPublisher(true)
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.disconnected {
		t.Error("expected Disconnect to be called")
	}
}
