package route

import (
	"context"

	"github.com/xraph/conduit/id"
)

// Store defines the persistence contract for routes.
type Store interface {
	// CreateRoute persists a new route.
	CreateRoute(ctx context.Context, r *Route) error

	// GetRoute returns a route by ID.
	GetRoute(ctx context.Context, routeID id.ID) (*Route, error)

	// UpdateRoute replaces an existing route.
	UpdateRoute(ctx context.Context, r *Route) error

	// DeleteRoute removes a route.
	DeleteRoute(ctx context.Context, routeID id.ID) error

	// ListRoutes returns routes ordered by creation time, oldest first.
	ListRoutes(ctx context.Context, opts ListOpts) ([]*Route, error)
}
