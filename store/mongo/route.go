package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/route"
)

// CreateRoute persists a new route.
func (s *Store) CreateRoute(ctx context.Context, r *route.Route) error {
	m, err := toRouteModel(r)
	if err != nil {
		return err
	}

	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("conduit/mongo: create route: %w", err)
	}

	return nil
}

// GetRoute returns a route by ID.
func (s *Store) GetRoute(ctx context.Context, routeID id.ID) (*route.Route, error) {
	var m routeModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": routeID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, conduit.ErrRouteNotFound
		}

		return nil, fmt.Errorf("conduit/mongo: get route: %w", err)
	}

	return fromRouteModel(&m)
}

// UpdateRoute replaces a route document.
func (s *Store) UpdateRoute(ctx context.Context, r *route.Route) error {
	m, err := toRouteModel(r)
	if err != nil {
		return err
	}

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("conduit/mongo: update route: %w", err)
	}

	if res.MatchedCount() == 0 {
		return conduit.ErrRouteNotFound
	}

	return nil
}

// DeleteRoute removes a route.
func (s *Store) DeleteRoute(ctx context.Context, routeID id.ID) error {
	res, err := s.mdb.NewDelete((*routeModel)(nil)).
		Filter(bson.M{"_id": routeID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("conduit/mongo: delete route: %w", err)
	}

	if res.DeletedCount() == 0 {
		return conduit.ErrRouteNotFound
	}

	return nil
}

// ListRoutes returns routes in creation order.
func (s *Store) ListRoutes(ctx context.Context, opts route.ListOpts) ([]*route.Route, error) {
	var models []routeModel

	filter := bson.M{}
	if opts.Enabled != nil {
		filter["enabled"] = *opts.Enabled
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("conduit/mongo: list routes: %w", err)
	}

	result := make([]*route.Route, 0, len(models))

	for i := range models {
		r, err := fromRouteModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, r)
	}

	return result, nil
}
