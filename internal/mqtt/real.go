package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// DefaultBufferSize is how many messages are held while disconnected.
const DefaultBufferSize = 100

// ErrNotConnected is returned by Subscribe while the broker is unreachable.
// The registration is kept and applied on the next connect.
var ErrNotConnected = errors.New("mqtt: not connected")

// Options configures a RealClient.
type Options struct {
	// Broker is the broker URL, e.g. tcp://192.168.1.200:1883.
	// Ignored if Resolve is set.
	Broker string

	// Resolve, if set, is called once on the first Start to find the broker.
	Resolve func(ctx context.Context) (string, error)

	ClientID string
	Username string
	Password string

	// SystemTopic receives the Last Will; publishes on it use QoS 1.
	SystemTopic string
	WillPayload []byte

	BufferSize int

	// OnConnectionChange, if set, is called with the new state after every
	// connect and connection loss.
	OnConnectionChange func(connected bool)
}

// RealClient talks to an actual MQTT broker. Publishes made while the
// connection is down are buffered and replayed on connect; subscriptions
// are re-issued on every connect.
//
// Until the outbox has been replayed after a connect, new publishes are
// queued behind it, so the broker sees them in publish order.
type RealClient struct {
	opts Options

	mu        sync.Mutex
	client    paho.Client
	connected bool
	replaying bool
	up        chan struct{} // closed while connected
	subs      map[string]Receiver
	buf       *outbox
}

// NewRealClient creates a client. No connection is made until Start.
func NewRealClient(opts Options) *RealClient {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.ClientID == "" {
		opts.ClientID = DefaultClientID()
	}
	return &RealClient{
		opts: opts,
		up:   make(chan struct{}),
		subs: make(map[string]Receiver),
		buf:  newOutbox(opts.BufferSize),
	}
}

// Start connects on first use and blocks until the connection is up. Later
// calls wait for paho's automatic reconnection instead of dialing again.
func (c *RealClient) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.client == nil {
		broker := c.opts.Broker
		if c.opts.Resolve != nil {
			c.mu.Unlock()
			resolved, err := c.opts.Resolve(ctx)
			if err != nil {
				return fmt.Errorf("resolve broker: %w", err)
			}
			c.mu.Lock()
			broker = resolved
		}
		if c.client == nil {
			c.client = paho.NewClient(c.clientOptions(broker))
			logrus.Infof("mqtt: connecting to %s as %s", broker, c.opts.ClientID)
			token := c.client.Connect()
			go func() {
				if token.Wait() && token.Error() != nil {
					logrus.Errorf("mqtt: connect to broker: %v", token.Error())
				}
			}()
		}
	}
	up := c.up
	c.mu.Unlock()

	select {
	case <-up:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *RealClient) clientOptions(broker string) *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(c.opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if c.opts.Username != "" {
		opts.SetUsername(c.opts.Username)
		opts.SetPassword(c.opts.Password)
	}
	if c.opts.SystemTopic != "" && c.opts.WillPayload != nil {
		opts.SetBinaryWill(c.opts.SystemTopic, c.opts.WillPayload, 1, true)
	}
	return opts
}

func (c *RealClient) onConnect(client paho.Client) {
	c.mu.Lock()
	c.connected = true
	c.replaying = true
	close(c.up)
	subs := make(map[string]Receiver, len(c.subs))
	for topic, r := range c.subs {
		subs[topic] = r
	}
	c.mu.Unlock()

	logrus.Infof("mqtt: connected")
	if c.opts.OnConnectionChange != nil {
		c.opts.OnConnectionChange(true)
	}

	for topic, r := range subs {
		if err := c.subscribe(client, topic, r); err != nil {
			logrus.Warnf("mqtt: resubscribe %s: %v", topic, err)
		}
	}

	c.replay(client)
}

// replay sends the outbox until it stays empty. Publishes arriving
// meanwhile land in the outbox and go out in a later round. If the
// connection drops, whatever is still queued waits for the next connect.
func (c *RealClient) replay(client paho.Client) {
	for {
		c.mu.Lock()
		if !c.connected {
			c.replaying = false
			c.mu.Unlock()
			return
		}
		pending := c.buf.drain()
		if len(pending) == 0 {
			c.replaying = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		logrus.Infof("mqtt: replaying %d buffered messages", len(pending))
		for _, m := range pending {
			token := client.Publish(m.topic, m.qos, m.retained, m.payload)
			if !token.WaitTimeout(5 * time.Second) {
				logrus.Warnf("mqtt: replay to %s timed out", m.topic)
				continue
			}
			if err := token.Error(); err != nil {
				logrus.Warnf("mqtt: replay to %s: %v", m.topic, err)
			}
		}
	}
}

func (c *RealClient) onConnectionLost(_ paho.Client, err error) {
	c.mu.Lock()
	if c.connected {
		c.connected = false
		c.up = make(chan struct{})
	}
	c.mu.Unlock()

	logrus.Warnf("mqtt: connection lost: %v", err)
	if c.opts.OnConnectionChange != nil {
		c.opts.OnConnectionChange(false)
	}
}

// Subscribe registers r for topic and, if connected, subscribes at QoS 1.
func (c *RealClient) Subscribe(topic string, r Receiver) error {
	c.mu.Lock()
	c.subs[topic] = r
	client := c.client
	connected := c.connected
	c.mu.Unlock()

	if !connected || client == nil {
		return ErrNotConnected
	}
	return c.subscribe(client, topic, r)
}

func (c *RealClient) subscribe(client paho.Client, topic string, r Receiver) error {
	token := client.Subscribe(topic, 1, func(_ paho.Client, m paho.Message) {
		r.Receive(m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Publish sends payload, or buffers it while disconnected or while the
// outbox is being replayed.
// System events use QoS 1 (at-least-once); everything else QoS 0.
func (c *RealClient) Publish(topic string, payload []byte, retained bool) error {
	var qos byte
	if topic == c.opts.SystemTopic {
		qos = 1
	}

	c.mu.Lock()
	if !c.connected || c.replaying || c.client == nil {
		c.buf.push(queuedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		c.mu.Unlock()
		logrus.Debugf("mqtt: buffered message for %s", topic)
		return nil
	}
	client := c.client
	c.mu.Unlock()

	token := client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Buffered returns how many messages are waiting for a connection.
func (c *RealClient) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.len()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client != nil {
		client.Disconnect(1000) // 1 second timeout
	}
	return nil
}
