// Package kafka publishes delivery payloads to Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/xraph/conduit/connector"
)

// StatusAccepted is reported once the brokers acknowledge a message.
const StatusAccepted = 202

// Writer is the subset of *kafkago.Writer the connector uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// WriterFactory builds a writer for one broker list and topic.
type WriterFactory func(brokers []string, topic string) Writer

// NewWriter returns a hash-balanced writer so messages sharing a key land on
// one partition.
func NewWriter(brokers []string, topic string) Writer {
	return kafkago.NewWriter(kafkago.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafkago.Hash{},
	})
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Connector keeps one writer per broker list and topic.
type Connector struct {
	newWriter WriterFactory

	mu      sync.Mutex
	writers map[string]Writer
}

var _ connector.Connector = (*Connector)(nil)

// New creates a connector. A nil factory uses NewWriter.
func New(factory WriterFactory) *Connector {
	if factory == nil {
		factory = NewWriter
	}
	return &Connector{newWriter: factory, writers: make(map[string]Writer)}
}

// Send publishes the JSON payload keyed by the correlation id. Request
// headers travel as Kafka headers.
func (c *Connector) Send(ctx context.Context, req *connector.Request) (*connector.Response, error) {
	brokers := ParseBrokers(req.Target.BaseURL)
	if len(brokers) == 0 || req.Target.Topic == "" {
		return nil, errors.New("kafka: target needs brokers in base_url and a topic")
	}

	value, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("kafka: marshal payload: %w", err)
	}

	msg := kafkago.Message{
		Key:     []byte(req.CorrelationID),
		Value:   value,
		Headers: headers(req.Headers),
	}

	if err := c.writer(brokers, req.Target.Topic).WriteMessages(ctx, msg); err != nil {
		return nil, fmt.Errorf("kafka: write to %s: %w", req.Target.Topic, err)
	}

	return &connector.Response{StatusCode: StatusAccepted}, nil
}

// Close closes every cached writer.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for key, w := range c.writers {
		errs = append(errs, w.Close())
		delete(c.writers, key)
	}
	return errors.Join(errs...)
}

func (c *Connector) writer(brokers []string, topic string) Writer {
	key := strings.Join(brokers, ",") + "|" + topic

	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.writers[key]
	if !ok {
		w = c.newWriter(brokers, topic)
		c.writers[key] = w
	}
	return w
}

func headers(h map[string]string) []kafkago.Header {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]kafkago.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafkago.Header{Key: k, Value: []byte(h[k])})
	}
	return out
}
