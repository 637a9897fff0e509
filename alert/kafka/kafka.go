// Package kafka publishes alerts to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/xraph/conduit/alert"
	kafkaconn "github.com/xraph/conduit/connector/kafka"
)

// Notifier writes each alert as a JSON message keyed by its run id.
type Notifier struct {
	writer kafkaconn.Writer
}

var _ alert.Notifier = (*Notifier)(nil)

// New wraps an existing writer.
func New(w kafkaconn.Writer) *Notifier {
	return &Notifier{writer: w}
}

// Dial creates a notifier publishing to topic on a comma separated broker
// list.
func Dial(brokers, topic string) *Notifier {
	return New(kafkaconn.NewWriter(kafkaconn.ParseBrokers(brokers), topic))
}

// Notify publishes a.
func (n *Notifier) Notify(ctx context.Context, a alert.Alert) error {
	value, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("alert kafka: marshal: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(a.Metadata["run_id"]),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "alert-type", Value: []byte(a.Type)},
			{Key: "alert-priority", Value: []byte(a.Priority)},
		},
	}

	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("alert kafka: write: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (n *Notifier) Close() error {
	return n.writer.Close()
}
