package conduit_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/alert"
	"github.com/xraph/conduit/circuit"
	"github.com/xraph/conduit/mapping"
	"github.com/xraph/conduit/retry"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/store/memory"
)

func ctx() context.Context { return context.Background() }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// alertRecorder collects alerts raised during a test.
type alertRecorder struct {
	mu     sync.Mutex
	alerts []alert.Alert
	err    error
}

func (r *alertRecorder) Notify(_ context.Context, a alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func (r *alertRecorder) All() []alert.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]alert.Alert(nil), r.alerts...)
}

// target is an httptest server that answers with a scripted status
// sequence; the last status repeats.
type target struct {
	*httptest.Server

	hits     atomic.Int32
	statuses []int

	mu      sync.Mutex
	bodies  []map[string]any
	headers []http.Header
}

func newTarget(t *testing.T, statuses ...int) *target {
	t.Helper()

	tg := &target{statuses: statuses}
	tg.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(tg.hits.Add(1)) - 1

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		tg.mu.Lock()
		tg.bodies = append(tg.bodies, body)
		tg.headers = append(tg.headers, r.Header.Clone())
		tg.mu.Unlock()

		status := tg.statuses[len(tg.statuses)-1]
		if n < len(tg.statuses) {
			status = tg.statuses[n]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status < 400 {
			_, _ = w.Write([]byte(`{"ok":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	t.Cleanup(tg.Close)
	return tg
}

func (tg *target) Hits() int { return int(tg.hits.Load()) }

func (tg *target) Last() (map[string]any, http.Header) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	return tg.bodies[len(tg.bodies)-1], tg.headers[len(tg.headers)-1]
}

func newConduit(t *testing.T, opts ...conduit.Option) (*conduit.Conduit, *alertRecorder) {
	t.Helper()

	rec := &alertRecorder{}
	base := []conduit.Option{
		conduit.WithStore(memory.New()),
		conduit.WithLogger(discardLogger()),
		conduit.WithNotifier(rec),
	}
	c, err := conduit.New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Stop(ctx()) })
	return c, rec
}

func createRoute(t *testing.T, c *conduit.Conduit, baseURL string, mutate func(*route.Input)) *route.Route {
	t.Helper()

	in := route.NewInput()
	in.Name = "orders to erp"
	in.Source.Name = "shop"
	in.Source.Event = "order.created"
	in.Target.Name = "erp"
	in.Target.BaseURL = baseURL
	in.Target.Path = "/orders"
	in.Mapping = []mapping.Rule{
		{Source: "id", Target: "order_id"},
		{Source: "qty", Target: "quantity", Transform: "to_int"},
	}
	in.Retry = retry.Policy{MaxAttempts: 3, BaseDelaySec: 0.01, MaxDelaySec: 0.01}
	in.Circuit = circuit.Config{FailureThreshold: 10, RecoveryTimeoutSec: 60}
	if mutate != nil {
		mutate(&in)
	}

	rt, err := c.Routes().Create(ctx(), in)
	if err != nil {
		t.Fatalf("create route: %v", err)
	}
	return rt
}

func TestNewRequiresStore(t *testing.T) {
	_, err := conduit.New()
	if !errors.Is(err, conduit.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestNewRejectsBadConcurrency(t *testing.T) {
	_, err := conduit.New(conduit.WithStore(memory.New()), conduit.WithConcurrency(0))
	if err == nil {
		t.Fatal("expected error for zero concurrency")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := conduit.DefaultConfig()
	if cfg.CallTimeout.Seconds() != 15 {
		t.Errorf("CallTimeout = %s, want 15s", cfg.CallTimeout)
	}
	if cfg.Concurrency <= 0 || cfg.ShutdownTimeout <= 0 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestAccessors(t *testing.T) {
	c, _ := newConduit(t)

	if c.Routes() == nil || c.DeadLetters() == nil || c.Store() == nil || c.Breaker() == nil || c.Credentials() == nil {
		t.Fatal("accessors must return wired services")
	}
	if s := c.Circuit("erp"); s.State != circuit.StateClosed {
		t.Errorf("fresh circuit state = %s", s.State)
	}
}
