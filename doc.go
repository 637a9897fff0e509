// Package conduit provides a resilient event-delivery pipeline for Go.
//
// An inbound event is matched to a route, its payload is validated and
// reshaped by declarative mapping rules, and the result is delivered to a
// downstream HTTP, Kafka or MQTT target under retry and circuit-breaker
// protection. Runs that fail permanently land in a dead-letter store from
// which they can be replayed.
//
// Key features:
//   - Declarative, pure payload mapping with a closed set of transforms
//   - Exponential backoff retries and per-target circuit breakers
//   - API key, bearer and OAuth2 client-credentials authentication
//   - Composable store pattern (Postgres, SQLite, MongoDB, Redis, Memory)
//   - Idempotency keys, async submission and dead-letter replay
//
// Quick start:
//
//	c, err := conduit.New(
//	    conduit.WithStore(memory.New()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rt, err := c.Routes().Create(ctx, in)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r, err := c.Dispatch(ctx, rt.ID, payload, conduit.DispatchOpts{})
package conduit
