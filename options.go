package conduit

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xraph/conduit/alert"
	"github.com/xraph/conduit/circuit"
	"github.com/xraph/conduit/connector"
	"github.com/xraph/conduit/credential"
	"github.com/xraph/conduit/deadletter"
	"github.com/xraph/conduit/delivery"
	"github.com/xraph/conduit/observability"
	"github.com/xraph/conduit/ratelimit"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/schema"
	"github.com/xraph/conduit/store"
)

// Conduit is the root event-delivery engine.
type Conduit struct {
	config      Config
	store       store.Store
	logger      *slog.Logger
	httpClient  *http.Client
	connectors  *connector.Registry
	breaker     *circuit.Breaker
	limiter     *ratelimit.Limiter
	credentials *credential.Resolver
	schemas     *schema.Validator
	notifier    alert.Notifier
	metrics     *observability.Metrics
	tracer      *observability.Tracer

	routeSvc      *route.Service
	deadLetterSvc *deadletter.Service
	delivery      *delivery.Client
	pool          *Pool
	replays       *keyedMutex
}

// Option configures a Conduit instance.
type Option func(*Conduit) error

// New creates a new Conduit with the given options.
func New(opts ...Option) (*Conduit, error) {
	c := &Conduit{
		config:     DefaultConfig(),
		logger:     slog.Default(),
		connectors: connector.NewRegistry(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.store == nil {
		return nil, ErrNoStore
	}
	c.wireServices()
	return c, nil
}

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(c *Conduit) error {
		c.store = s
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conduit) error {
		c.logger = logger
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Conduit) error {
		c.config = cfg
		return nil
	}
}

// WithConcurrency sets the number of asynchronous runs allowed at once.
func WithConcurrency(n int) Option {
	return func(c *Conduit) error {
		if n < 1 {
			return fmt.Errorf("conduit: concurrency must be positive, got %d", n)
		}
		c.config.Concurrency = n
		return nil
	}
}

// WithCallTimeout sets the timeout of a single delivery attempt.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Conduit) error {
		c.config.CallTimeout = d
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight runs on shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Conduit) error {
		c.config.ShutdownTimeout = d
		return nil
	}
}

// WithTokenTimeout bounds OAuth2 token exchanges made by the default
// credential resolver.
func WithTokenTimeout(d time.Duration) Option {
	return func(c *Conduit) error {
		c.config.TokenTimeout = d
		return nil
	}
}

// WithAlertTimeout bounds each failure alert.
func WithAlertTimeout(d time.Duration) Option {
	return func(c *Conduit) error {
		c.config.AlertTimeout = d
		return nil
	}
}

// WithHTTPClient sets the client used by the HTTP connector and for token
// exchanges.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Conduit) error {
		c.httpClient = hc
		return nil
	}
}

// WithConnector binds a connector to a protocol, replacing the default.
func WithConnector(p connector.Protocol, conn connector.Connector) Option {
	return func(c *Conduit) error {
		c.connectors.Register(p, conn)
		return nil
	}
}

// WithBreaker shares a circuit breaker registry.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Conduit) error {
		c.breaker = b
		return nil
	}
}

// WithCredentialResolver shares a credential resolver and its token cache.
func WithCredentialResolver(r *credential.Resolver) Option {
	return func(c *Conduit) error {
		c.credentials = r
		return nil
	}
}

// WithNotifier sets the failure alert notifier. The default logs alerts.
func WithNotifier(n alert.Notifier) Option {
	return func(c *Conduit) error {
		c.notifier = n
		return nil
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Conduit) error {
		c.metrics = m
		return nil
	}
}

// WithTracer enables OpenTelemetry spans.
func WithTracer(t *observability.Tracer) Option {
	return func(c *Conduit) error {
		c.tracer = t
		return nil
	}
}
