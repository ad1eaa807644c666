package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/pizza-service/internal/infrastructure/config"
)

// Logger receives connection and status publish failures.
// *logging.Logger and *slog.Logger satisfy it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client publishes order, menu and status events. It is safe for
// concurrent use; a zero Client reports not connected.
type Client struct {
	client   pahomqtt.Client
	clientID string
	qos      byte

	connected atomic.Bool

	mu           sync.RWMutex
	logger       Logger
	onConnect    func()
	onDisconnect func(err error)
}

// Connect dials the broker and waits for the first connection, giving up
// when ctx ends or after ten seconds. On every (re)connect the client
// publishes a retained online status.
func Connect(ctx context.Context, cfg config.MQTTConfig) (*Client, error) {
	c := &Client{clientID: cfg.Broker.ClientID, qos: byte(cfg.QoS)} // #nosec G115 -- validated 0..2

	opts := clientOptions(cfg).
		SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })
	c.client = pahomqtt.NewClient(opts)

	if err := wait(ctx, c.client.Connect(), connectTimeout); err != nil {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(cfg.Broker), err)
	}
	c.connected.Store(true)
	return c, nil
}

// wait blocks until tok completes, ctx ends or timeout passes.
func wait(ctx context.Context, tok pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timeout after %v", timeout)
	}
}

func (c *Client) handleConnect() {
	c.connected.Store(true)

	tok := c.client.Publish(Topics{}.SystemStatus(), c.qos, true, statusPayload(c.clientID, statusOnline, ""))
	if err := wait(context.Background(), tok, publishTimeout); err != nil {
		if l := c.getLogger(); l != nil {
			l.Error("publishing online status failed", "error", err)
		}
	}

	c.mu.RLock()
	fn := c.onConnect
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connected.Store(false)

	c.mu.RLock()
	l, fn := c.logger, c.onDisconnect
	c.mu.RUnlock()

	if l != nil {
		l.Warn("MQTT connection lost", "error", err)
	}
	if fn != nil {
		fn(err)
	}
}

// Close publishes a retained offline status and disconnects. It is safe to
// call on a client that never connected, and more than once.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.connected.Swap(false) && c.client.IsConnected() {
		tok := c.client.Publish(Topics{}.SystemStatus(), c.qos, true, statusPayload(c.clientID, statusOffline, reasonShutdown))
		tok.WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(disconnectQuiesce)
	return nil
}

// HealthCheck reports whether the broker connection is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback run after the first connect and every reconnect.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect sets a callback run when the connection drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger sets the logger for connection and status failures.
func (c *Client) SetLogger(l Logger) {
	c.mu.Lock()
	c.logger = l
	c.mu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}
