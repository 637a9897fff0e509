// Package store defines the composite Store interface for all Conduit
// persistence.
//
// Each subsystem defines its own store interface and the aggregate Store
// composes them.
package store

import (
	"context"

	"github.com/xraph/conduit/deadletter"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/run"
)

// Store is the aggregate persistence interface.
type Store interface {
	route.Store
	run.Store
	deadletter.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
