package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/dcorrigan/room-monitor/internal/faults"
)

const (
	defaultBufferSize = 64
	connectWait       = 10 * time.Second
	publishWait       = 5 * time.Second
)

var errPublishTimeout = errors.New("publish timeout")

// Config describes the companion broker session.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string // the app's auth token

	OverrideTopic    string
	TemperatureTopic string
	ClipTopic        string
	StatusTopic      string

	// BufferSize bounds clip and status messages held while disconnected.
	BufferSize int

	// OnOverride is called from the paho goroutine for each button press.
	OnOverride func()

	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.ClientID == "" {
		c.ClientID = "room-monitor"
	}
	if c.OverrideTopic == "" {
		c.OverrideTopic = DefaultOverrideTopic
	}
	if c.TemperatureTopic == "" {
		c.TemperatureTopic = DefaultTemperatureTopic
	}
	if c.ClipTopic == "" {
		c.ClipTopic = DefaultClipTopic
	}
	if c.StatusTopic == "" {
		c.StatusTopic = DefaultStatusTopic
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.OnOverride == nil {
		c.OnOverride = func() {}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RealChannel is a Channel backed by a paho client. The client reconnects on
// its own; the override subscription is renewed on every connect.
type RealChannel struct {
	client paho.Client
	cfg    Config
	log    *slog.Logger

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealChannel starts a session with the broker. A broker that is not
// reachable within the connect wait is not an error: paho keeps retrying in
// the background and buffered messages go out once it connects.
func NewRealChannel(cfg Config) (*RealChannel, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	cfg.setDefaults()

	c := &RealChannel{
		cfg: cfg,
		log: cfg.Logger.With("component", "companion"),
		buf: newRingBuffer(cfg.BufferSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.log.Warn("connection lost", "error", err)
		})

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectWait) {
		c.log.Warn("broker not reachable yet, retrying in background", "broker", cfg.Broker)
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

func (c *RealChannel) onConnect(client paho.Client) {
	c.log.Info("connected", "broker", c.cfg.Broker)

	token := client.Subscribe(c.cfg.OverrideTopic, 1, c.handleOverride)
	if token.WaitTimeout(publishWait) && token.Error() != nil {
		c.log.Error("subscribe override", "topic", c.cfg.OverrideTopic, "error", token.Error())
	}

	c.mu.Lock()
	pending := c.buf.drainAll()
	c.mu.Unlock()
	for _, m := range pending {
		client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	if len(pending) > 0 {
		c.log.Info("flushed buffered messages", "count", len(pending))
	}
}

// handleOverride receives the app's button writes on the override topic.
func (c *RealChannel) handleOverride(_ paho.Client, msg paho.Message) {
	if !IsOverrideRequest(msg.Payload()) {
		c.log.Debug("override payload ignored", "topic", msg.Topic(), "payload", string(msg.Payload()))
		return
	}
	c.log.Info("manual video requested")
	if c.cfg.OnOverride != nil {
		c.cfg.OnOverride()
	}
}

// PublishTemperature sends the current temperature, QoS 0. A stale reading
// is useless after reconnect, so nothing is buffered.
func (c *RealChannel) PublishTemperature(celsius float64) error {
	if !c.client.IsConnectionOpen() {
		return &faults.TransportError{Op: "companion temperature", Err: ErrNotConnected}
	}
	return c.send("companion temperature", c.cfg.TemperatureTopic, 0, false, FormatTemperature(celsius))
}

// PublishClip announces a clip URL, retained so the app shows the latest
// clip on open.
func (c *RealChannel) PublishClip(url string) error {
	return c.sendOrBuffer("companion clip", c.cfg.ClipTopic, 1, true, []byte(url))
}

// PublishSystem sends a lifecycle event to the status topic.
func (c *RealChannel) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return c.sendOrBuffer("companion system", c.cfg.StatusTopic, 1, event.Retained, payload)
}

func (c *RealChannel) sendOrBuffer(op, topic string, qos byte, retained bool, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		c.mu.Lock()
		dropped := c.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		c.mu.Unlock()
		if dropped {
			c.log.Warn("offline buffer full, dropping oldest", "capacity", c.cfg.BufferSize)
		}
		return nil
	}
	return c.send(op, topic, qos, retained, payload)
}

func (c *RealChannel) send(op, topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishWait) {
		return &faults.TransportError{Op: op, Err: errPublishTimeout}
	}
	if err := token.Error(); err != nil {
		return &faults.TransportError{Op: op, Err: err}
	}
	return nil
}

// IsConnected reports whether the client currently holds an open connection.
func (c *RealChannel) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (c *RealChannel) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
