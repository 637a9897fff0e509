// Package extension mounts Conduit into a host application.
//
// The extension:
//   - builds the engine from a Config and a store
//   - runs store migrations on Init
//   - serves the API under a configurable prefix, either as an
//     http.Handler or on a Forge router with OpenAPI metadata
//   - starts the worker pool and stops it gracefully
//   - reports health via store.Ping
//
// Usage:
//
//	ext := extension.New(
//	    extension.WithStore(pgStore),
//	    extension.WithPrefix("/conduit"),
//	)
//	if err := ext.Init(ctx); err != nil { ... }
//	mux.Handle("/conduit/", ext.Handler())
//	ext.Start(ctx)
//	defer ext.Stop(ctx)
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xraph/forge"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/api"
	"github.com/xraph/conduit/store"
)

// ErrNotInitialized is returned when the extension is used before Init.
var ErrNotInitialized = errors.New("conduit extension: not initialized")

// Extension mounts a Conduit instance.
type Extension struct {
	config Config
	store  store.Store
	opts   []conduit.Option
	logger *slog.Logger

	conduit *conduit.Conduit
}

// New creates a new Conduit extension.
func New(opts ...ExtOption) *Extension {
	e := &Extension{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init migrates the store and builds the engine.
func (e *Extension) Init(ctx context.Context) error {
	if e.store == nil {
		return conduit.ErrNoStore
	}

	if !e.config.DisableMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", conduit.ErrMigrationFailed, err)
		}
	}

	opts := append([]conduit.Option{
		conduit.WithStore(e.store),
		conduit.WithLogger(e.logger),
	}, e.config.ToConduitOptions()...)
	opts = append(opts, e.opts...)

	c, err := conduit.New(opts...)
	if err != nil {
		return err
	}
	e.conduit = c

	e.logger.InfoContext(ctx, "conduit extension initialized", "base_path", e.Prefix())
	return nil
}

// Conduit returns the engine, or nil before Init.
func (e *Extension) Conduit() *conduit.Conduit { return e.conduit }

// Prefix returns the configured URL prefix without a trailing slash.
func (e *Extension) Prefix() string {
	return strings.TrimRight(e.config.BasePath, "/")
}

// Handler returns the API handler with the prefix stripped, ready to be
// mounted at Prefix()+"/".
func (e *Extension) Handler() http.Handler {
	if e.conduit == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, ErrNotInitialized.Error(), http.StatusServiceUnavailable)
		})
	}
	h := api.NewHandler(e.conduit, e.logger)
	if e.Prefix() == "" {
		return h
	}
	return http.StripPrefix(e.Prefix(), h)
}

// RegisterRoutes registers the API on a Forge router under the prefix.
func (e *Extension) RegisterRoutes(router forge.Router, log forge.Logger) error {
	if e.conduit == nil {
		return ErrNotInitialized
	}
	if e.config.DisableRoutes {
		return nil
	}
	api.NewForgeAPI(e.conduit, log).RegisterRoutes(router.Group(e.Prefix()))
	return nil
}

// Start starts the async worker pool.
func (e *Extension) Start(ctx context.Context) error {
	if e.conduit == nil {
		return ErrNotInitialized
	}
	e.conduit.Start(ctx)
	return nil
}

// Stop drains in-flight runs and closes the store.
func (e *Extension) Stop(ctx context.Context) error {
	if e.conduit == nil {
		return nil
	}
	stopErr := e.conduit.Stop(ctx)
	if err := e.store.Close(); err != nil {
		e.logger.WarnContext(ctx, "closing store", "error", err)
	}
	return stopErr
}

// Health reports store connectivity.
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return conduit.ErrNoStore
	}
	return e.store.Ping(ctx)
}
