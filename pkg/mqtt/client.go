package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/seawatch-io/seawatch/pkg/log"
	"github.com/seawatch-io/seawatch/pkg/mqtt/topic"
)

var errNotStarted = errors.New("mqtt client not started")

const reconnectBackoff = 3 * time.Second

type subscription struct {
	filter  string
	qos     byte
	handler MessageHandler
}

type pahoClient struct {
	cfg    *ClientConfig
	cm     *autopaho.ConnectionManager
	logger log.Logger

	mu   sync.RWMutex
	subs map[string]subscription

	connected atomic.Bool
}

// NewClient creates a Client over paho's autopaho connection manager. The
// connection is opened by Start.
func NewClient(cfg *ClientConfig) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mqtt config is required")
	}

	setDefaultConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}

	return &pahoClient{
		cfg:    cfg,
		logger: log.WithName("mqtt").WithValues("clientID", cfg.ClientID),
		subs:   map[string]subscription{},
	}, nil
}

func (c *pahoClient) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(c.cfg.BrokerURL)
	if err != nil {
		return err
	}

	c.logger.Info("Connecting to MQTT broker", "broker", c.cfg.BrokerURL)
	cm, err := autopaho.NewConnection(ctx, autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		ReconnectBackoff:              autopaho.NewConstantBackoff(reconnectBackoff),
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ConnectUsername:               c.cfg.Username,
		ConnectPassword:               []byte(c.cfg.Password),
		TlsCfg:                        &tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify},
		WillMessage:                   c.willMessage(),
		OnConnectionUp:                c.onConnectionUp,
		OnConnectError:                c.onConnectError,
		ClientConfig: paho.ClientConfig{
			ClientID:           c.cfg.ClientID,
			OnClientError:      c.onClientError,
			OnServerDisconnect: c.onServerDisconnect,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(p paho.PublishReceived) (bool, error) {
					c.dispatch(p.Packet.Topic, p.Packet.Payload)
					return true, nil
				},
			},
		},
	})
	if err != nil {
		return err
	}
	c.cm = cm
	return nil
}

func (c *pahoClient) Disconnect(ctx context.Context) {
	if c.cm == nil {
		return
	}
	if err := c.cm.Disconnect(ctx); err != nil {
		c.logger.Warn("MQTT disconnect did not complete cleanly", "error", err.Error())
	}
	c.connected.Store(false)
	c.logger.Info("Disconnected from MQTT broker")
}

func (c *pahoClient) Publish(ctx context.Context, name string, qos int, retain bool, payload []byte) error {
	if c.cm == nil {
		return errNotStarted
	}
	_, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   name,
		QoS:     byte(qos),
		Retain:  retain,
		Payload: payload,
	})
	return err
}

// Subscribe records the handler first so that a subscription made while the
// link is down is sent by onConnectionUp.
func (c *pahoClient) Subscribe(ctx context.Context, filter string, qos int, handler MessageHandler) error {
	if c.cm == nil {
		return errNotStarted
	}

	c.mu.Lock()
	c.subs[filter] = subscription{filter: filter, qos: byte(qos), handler: handler}
	c.mu.Unlock()

	if !c.connected.Load() {
		c.logger.Info("Subscription deferred until connected", "topic", filter)
		return nil
	}
	if _, err := c.cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: filter, QoS: byte(qos)}},
	}); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", filter, err)
	}

	c.logger.Info("Subscribed", "topic", filter)
	return nil
}

func (c *pahoClient) Unsubscribe(ctx context.Context, filter string) error {
	if c.cm == nil {
		return errNotStarted
	}

	c.mu.Lock()
	delete(c.subs, filter)
	c.mu.Unlock()

	_, err := c.cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{filter}})
	return err
}

func (c *pahoClient) AwaitConnection(ctx context.Context) error {
	if c.cm == nil {
		return errNotStarted
	}
	return c.cm.AwaitConnection(ctx)
}

// IsConnected reports the state last observed by the connection callbacks.
func (c *pahoClient) IsConnected() bool {
	return c.connected.Load()
}

// snapshot returns the subscriptions ordered by filter.
func (c *pahoClient) snapshot() []subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]subscription, 0, len(c.subs))
	for _, s := range c.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].filter < out[j].filter })
	return out
}

// dispatch runs every handler whose filter matches topic. Handlers run
// inline on paho's receive goroutine, so messages on one topic keep their
// arrival order.
func (c *pahoClient) dispatch(name string, payload []byte) bool {
	matched := false
	for _, s := range c.snapshot() {
		if topicsMatch(topicFilter(s.filter), name) {
			s.handler(context.Background(), name, payload)
			matched = true
		}
	}
	if !matched {
		c.logger.Debug("Dropping message on unhandled topic", "topic", name)
	}
	return matched
}

// onConnectionUp restores every subscription in one SUBSCRIBE packet after
// a (re)connect.
func (c *pahoClient) onConnectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	c.connected.Store(true)
	c.logger.Info("Connected to MQTT broker")

	subs := c.snapshot()
	if len(subs) == 0 {
		return
	}
	req := &paho.Subscribe{Subscriptions: make([]paho.SubscribeOptions, 0, len(subs))}
	for _, s := range subs {
		req.Subscriptions = append(req.Subscriptions, paho.SubscribeOptions{Topic: s.filter, QoS: s.qos})
	}
	if _, err := cm.Subscribe(context.Background(), req); err != nil {
		c.logger.Error(err, "Failed to restore subscriptions", "count", len(subs))
		return
	}
	c.logger.Info("Subscriptions restored", "count", len(subs))
}

func (c *pahoClient) onConnectError(err error) {
	c.connected.Store(false)
	c.logger.Warn("MQTT connect failed, retrying", "error", err.Error(), "backoff", reconnectBackoff)
}

func (c *pahoClient) onClientError(err error) {
	c.connected.Store(false)
	c.logger.Error(err, "MQTT client error")
}

func (c *pahoClient) onServerDisconnect(d *paho.Disconnect) {
	c.connected.Store(false)
	reason := ""
	if d.Properties != nil {
		reason = d.Properties.ReasonString
	}
	c.logger.Warn("MQTT broker closed the connection", "reasonCode", d.ReasonCode, "reason", reason)
}

func (c *pahoClient) willMessage() *paho.WillMessage {
	if c.cfg.WillTopic == "" {
		return nil
	}
	return &paho.WillMessage{
		Topic:   c.cfg.WillTopic,
		Payload: c.cfg.WillPayload,
		QoS:     c.cfg.WillQoS,
		Retain:  c.cfg.WillRetain,
	}
}

// topicsMatch reports whether topic matches filter, honouring the + and #
// wildcards.
func topicsMatch(filter, name string) bool {
	if filter == name {
		return true
	}
	if !strings.ContainsAny(filter, topic.Wildcard+topic.MultiWildcard) {
		return false
	}

	fp := strings.Split(filter, "/")
	tp := strings.Split(name, "/")
	for i, part := range fp {
		switch {
		case part == topic.MultiWildcard:
			return true
		case i >= len(tp):
			return false
		case part != topic.Wildcard && part != tp[i]:
			return false
		}
	}
	return len(fp) == len(tp)
}

// topicFilter strips the $share/{group}/ prefix of a shared subscription.
func topicFilter(filter string) string {
	if !strings.HasPrefix(filter, "$share/") {
		return filter
	}
	if parts := strings.SplitN(filter, "/", 3); len(parts) == 3 {
		return parts[2]
	}
	return filter
}
