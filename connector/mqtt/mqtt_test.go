package mqtt_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/xraph/conduit/connector"
	"github.com/xraph/conduit/connector/mqtt"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) MQTT.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return newToken(c.err)
}

func TestSendPublishes(t *testing.T) {
	client := &fakeClient{}
	dials := 0
	c := mqtt.New(func(broker string) (mqtt.Client, error) {
		dials++
		if broker != "tcp://broker:1883" {
			t.Fatalf("broker = %q", broker)
		}
		return client, nil
	})

	req := &connector.Request{
		Target:  connector.Target{Protocol: connector.ProtocolMQTT, BaseURL: "tcp://broker:1883", Topic: "devices/alerts"},
		Payload: map[string]any{"level": "high"},
	}
	for i := 0; i < 2; i++ {
		resp, err := c.Send(context.Background(), req)
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if resp.StatusCode != mqtt.StatusAccepted {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	}

	if dials != 1 {
		t.Fatalf("dials = %d, want 1", dials)
	}
	if len(client.sent) != 2 || client.sent[0].topic != "devices/alerts" || client.sent[0].qos != mqtt.QoS {
		t.Fatalf("sent = %+v", client.sent)
	}
	if string(client.sent[0].payload) != `{"level":"high"}` {
		t.Fatalf("payload = %s", client.sent[0].payload)
	}
}

func TestSendPublishError(t *testing.T) {
	boom := errors.New("not connected")
	c := mqtt.New(func(string) (mqtt.Client, error) { return &fakeClient{err: boom}, nil })

	_, err := c.Send(context.Background(), &connector.Request{
		Target: connector.Target{BaseURL: "tcp://b:1883", Topic: "t"},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want publish error", err)
	}
}

func TestSendDialError(t *testing.T) {
	boom := errors.New("refused")
	c := mqtt.New(func(string) (mqtt.Client, error) { return nil, boom })

	_, err := c.Send(context.Background(), &connector.Request{
		Target: connector.Target{BaseURL: "tcp://b:1883", Topic: "t"},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want dial error", err)
	}
}

func target(broker string) *connector.Request {
	return &connector.Request{
		Target:  connector.Target{Protocol: connector.ProtocolMQTT, BaseURL: broker, Topic: "t"},
		Payload: map[string]any{"n": 1},
	}
}

func TestSlowBrokerDoesNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c := mqtt.New(func(broker string) (mqtt.Client, error) {
		if broker == "tcp://slow:1883" {
			<-release
		}
		return &fakeClient{}, nil
	})

	go func() { _, _ = c.Send(context.Background(), target("tcp://slow:1883")) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.Send(ctx, target("tcp://fast:1883")); err != nil {
		t.Fatalf("fast broker: %v", err)
	}
}

func TestSendGivesUpOnSlowConnect(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c := mqtt.New(func(string) (mqtt.Client, error) {
		<-release
		return &fakeClient{}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := c.Send(ctx, target("tcp://slow:1883")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestConcurrentSendsShareOneConnect(t *testing.T) {
	var dials atomic.Int32
	release := make(chan struct{})
	client := &fakeClient{}

	c := mqtt.New(func(string) (mqtt.Client, error) {
		dials.Add(1)
		<-release
		return client, nil
	})

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Send(context.Background(), target("tcp://b:1883")); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := dials.Load(); n != 1 {
		t.Errorf("dials = %d, want 1", n)
	}
	if len(client.sent) != 5 {
		t.Errorf("published %d messages, want 5", len(client.sent))
	}
}
