package conduit

import (
	"context"
	"net/http"

	"github.com/xraph/conduit/alert"
	"github.com/xraph/conduit/circuit"
	"github.com/xraph/conduit/connector"
	"github.com/xraph/conduit/connector/kafka"
	"github.com/xraph/conduit/connector/mqtt"
	"github.com/xraph/conduit/connector/rest"
	"github.com/xraph/conduit/credential"
	"github.com/xraph/conduit/deadletter"
	"github.com/xraph/conduit/delivery"
	"github.com/xraph/conduit/ratelimit"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/schema"
	"github.com/xraph/conduit/store"
)

// wireServices initializes the internal services after options have been applied.
func (c *Conduit) wireServices() {
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.breaker == nil {
		c.breaker = circuit.New()
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New()
	}
	if c.credentials == nil {
		c.credentials = credential.NewResolver(
			credential.WithHTTPClient(&http.Client{
				Transport: c.httpClient.Transport,
				Timeout:   c.config.TokenTimeout,
			}),
			credential.WithLogger(c.logger),
		)
	}
	if c.notifier == nil {
		c.notifier = alert.NewLogNotifier(c.logger)
	}

	c.registerDefaultConnector(connector.ProtocolHTTP, func() connector.Connector { return rest.New(c.httpClient) })
	c.registerDefaultConnector(connector.ProtocolKafka, func() connector.Connector { return kafka.New(nil) })
	c.registerDefaultConnector(connector.ProtocolMQTT, func() connector.Connector { return mqtt.New(nil) })

	c.schemas = schema.NewValidator()
	c.routeSvc = route.NewService(c.store, c.schemas, c.logger)
	c.deadLetterSvc = deadletter.NewService(c.store, c.logger)

	c.delivery = delivery.NewClient(c.connectors, c.breaker, c.limiter, delivery.Config{
		CallTimeout: c.config.CallTimeout,
		Metrics:     c.metrics,
		Tracer:      c.tracer,
	}, c.logger)

	c.pool = NewPool(c.config.Concurrency, c.logger)
	c.replays = newKeyedMutex()
}

func (c *Conduit) registerDefaultConnector(p connector.Protocol, build func() connector.Connector) {
	if _, err := c.connectors.Lookup(p); err != nil {
		c.connectors.Register(p, build())
	}
}

// Start binds the async worker pool to ctx.
func (c *Conduit) Start(ctx context.Context) {
	c.pool.Start(ctx)
}

// Stop waits for in-flight async runs, up to the shutdown timeout, then
// closes connector clients.
func (c *Conduit) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ShutdownTimeout)
	defer cancel()

	poolErr := c.pool.Stop(ctx)
	if err := c.connectors.Close(); err != nil {
		c.logger.WarnContext(ctx, "closing connectors", "error", err)
	}
	return poolErr
}

// Routes returns the route management service.
func (c *Conduit) Routes() *route.Service {
	return c.routeSvc
}

// DeadLetters returns the dead-letter service.
func (c *Conduit) DeadLetters() *deadletter.Service {
	return c.deadLetterSvc
}

// Store returns the underlying store.
func (c *Conduit) Store() store.Store {
	return c.store
}

// Breaker returns the circuit breaker registry.
func (c *Conduit) Breaker() *circuit.Breaker {
	return c.breaker
}

// Credentials returns the credential resolver.
func (c *Conduit) Credentials() *credential.Resolver {
	return c.credentials
}
