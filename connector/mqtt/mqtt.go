// Package mqtt publishes delivery payloads to MQTT brokers.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/xraph/conduit/connector"
)

const (
	// StatusAccepted is reported once the broker acknowledges the publish.
	StatusAccepted = 202

	// QoS is at-least-once, matching the pipeline's delivery guarantee.
	QoS byte = 1

	connectTimeout = 10 * time.Second
)

// Client is the subset of MQTT.Client the connector uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token
}

// ClientFactory connects to one broker.
type ClientFactory func(broker string) (Client, error)

// Dial connects a paho client to broker with a unique client id.
func Dial(broker string) (Client, error) {
	opts := MQTT.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("conduit-" + uuid.NewString())
	opts.SetAutoReconnect(true)

	client := MQTT.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt: connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", broker, err)
	}
	return client, nil
}

// Connector keeps one client per broker. Connects to one broker are
// shared by concurrent senders and never block sends to other brokers.
type Connector struct {
	dial  ClientFactory
	dials singleflight.Group

	mu      sync.Mutex
	clients map[string]Client
}

var _ connector.Connector = (*Connector)(nil)

// New creates a connector. A nil factory uses Dial.
func New(factory ClientFactory) *Connector {
	if factory == nil {
		factory = Dial
	}
	return &Connector{dial: factory, clients: make(map[string]Client)}
}

// Send publishes the JSON payload to the target topic and waits for the
// broker acknowledgement or ctx.
func (c *Connector) Send(ctx context.Context, req *connector.Request) (*connector.Response, error) {
	if req.Target.BaseURL == "" || req.Target.Topic == "" {
		return nil, errors.New("mqtt: target needs a broker in base_url and a topic")
	}

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("mqtt: marshal payload: %w", err)
	}

	client, err := c.client(ctx, req.Target.BaseURL)
	if err != nil {
		return nil, err
	}

	token := client.Publish(req.Target.Topic, QoS, false, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: publish to %s: %w", req.Target.Topic, err)
	}

	return &connector.Response{StatusCode: StatusAccepted}, nil
}

// Close disconnects every cached client.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for broker, cl := range c.clients {
		if d, ok := cl.(interface{ Disconnect(quiesce uint) }); ok {
			d.Disconnect(250)
		}
		delete(c.clients, broker)
	}
	return nil
}

func (c *Connector) client(ctx context.Context, broker string) (Client, error) {
	if cl, ok := c.cached(broker); ok {
		return cl, nil
	}

	ch := c.dials.DoChan(broker, func() (any, error) {
		if cl, ok := c.cached(broker); ok {
			return cl, nil
		}
		cl, err := c.dial(broker)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.clients[broker] = cl
		c.mu.Unlock()
		return cl, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Client), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Connector) cached(broker string) (Client, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.clients[broker]
	return cl, ok
}
